package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// Полные имена методов AuthService
const (
	ServiceName          = "portal.auth.v1.AuthService"
	MethodLogin          = "/" + ServiceName + "/Login"
	MethodVerifyToken    = "/" + ServiceName + "/VerifyToken"
	MethodGetProfile     = "/" + ServiceName + "/GetProfile"
	MethodChangePassword = "/" + ServiceName + "/ChangePassword"
)

// LoginRequest запрос входа
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginResponse выданный токен и учетная запись
type LoginResponse struct {
	Token     string    `json:"token"`
	Role      string    `json:"role"`
	ExpiresAt int64     `json:"expires_at"`
	User      *Identity `json:"user"`
}

// VerifyTokenRequest токен для проверки
type VerifyTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// VerifyTokenResponse claims проверенного токена
type VerifyTokenResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Email     string `json:"email,omitempty"`
	ExpiresAt int64  `json:"expires_at"`
}

// GetProfileRequest пуст: учетная запись берется из токена в метаданных
type GetProfileRequest struct{}

// ProfileResponse профиль владельца токена
type ProfileResponse struct {
	User *Identity `json:"user"`
}

// ChangePasswordRequest смена пароля владельца токена
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6,bcryptlen"`
}

// ChangePasswordResponse результат смены пароля
type ChangePasswordResponse struct {
	Message string `json:"message"`
}

// Identity общий вид учетной записи любой роли
type Identity struct {
	ID     string `json:"id"`
	Role   string `json:"role"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Status string `json:"status"`
}

// AuthServiceServer серверная часть AuthService
type AuthServiceServer interface {
	Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error)
	VerifyToken(ctx context.Context, req *VerifyTokenRequest) (*VerifyTokenResponse, error)
	GetProfile(ctx context.Context, req *GetProfileRequest) (*ProfileResponse, error)
	ChangePassword(ctx context.Context, req *ChangePasswordRequest) (*ChangePasswordResponse, error)
}

// unaryHandler адаптирует типизированный метод к grpc.MethodDesc
func unaryHandler[Req any, Resp any](fullMethod string, call func(AuthServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AuthServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AuthServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AuthServiceDesc описание сервиса для grpc.Server.RegisterService
var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Login",
			Handler:    unaryHandler(MethodLogin, AuthServiceServer.Login),
		},
		{
			MethodName: "VerifyToken",
			Handler:    unaryHandler(MethodVerifyToken, AuthServiceServer.VerifyToken),
		},
		{
			MethodName: "GetProfile",
			Handler:    unaryHandler(MethodGetProfile, AuthServiceServer.GetProfile),
		},
		{
			MethodName: "ChangePassword",
			Handler:    unaryHandler(MethodChangePassword, AuthServiceServer.ChangePassword),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "portal/auth/v1/auth",
}

// RegisterAuthServiceServer регистрирует реализацию сервиса
func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&AuthServiceDesc, srv)
}
