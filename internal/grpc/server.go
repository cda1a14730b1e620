// Package grpc реализует gRPC сервер AuthService: вход, проверка токена,
// профиль и смена пароля. Сообщения передаются в JSON кодеке.
package grpc

import (
	"context"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/Ultrahd-dev/assignment-portal/backend/internal/apperrors"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/auth"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/identity"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/jwt"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/logging"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/metrics"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/users"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/validation"
)

// Server реализует AuthService и владеет grpc.Server
type Server struct {
	resolver    *identity.Resolver
	jwtManager  *jwt.Manager
	userService *users.Service
	verifier    *auth.Verifier

	grpcServer *grpc.Server
	health     *health.Server
}

// NewServer создает новый gRPC сервер с зарегистрированными сервисами
func NewServer(resolver *identity.Resolver, jwtManager *jwt.Manager, userService *users.Service, verifier *auth.Verifier) *Server {
	s := &Server{
		resolver:    resolver,
		jwtManager:  jwtManager,
		userService: userService,
		verifier:    verifier,
		health:      health.NewServer(),
	}

	s.grpcServer = grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			loggingInterceptor,
			authInterceptor(verifier, methodAccess),
		),
	)

	RegisterAuthServiceServer(s.grpcServer, s)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	// Reflection API для grpcurl и других инструментов
	reflection.Register(s.grpcServer)

	return s
}

// Login выполняет вход пользователя в систему
func (s *Server) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, toStatus(err)
	}

	id, err := s.resolver.Resolve(ctx, req.Username, req.Password)
	if err != nil {
		return nil, toStatus(err)
	}

	token, claims, err := s.jwtManager.GenerateToken(id.ID, id.Role, id.Email)
	if err != nil {
		return nil, toStatus(apperrors.Wrap(apperrors.KindInternal, "failed to issue token", err))
	}

	return &LoginResponse{
		Token:     token,
		Role:      string(id.Role),
		ExpiresAt: claims.ExpiresAt.Unix(),
		User:      identityOf(id.Principal),
	}, nil
}

// VerifyToken проверяет токен, переданный в теле запроса
func (s *Server) VerifyToken(ctx context.Context, req *VerifyTokenRequest) (*VerifyTokenResponse, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, toStatus(err)
	}

	claims, err := s.verifier.Verify(ctx, req.Token)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &VerifyTokenResponse{
		ID:    claims.PrincipalID,
		Role:  string(claims.Role),
		Email: claims.Email,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Unix()
	}
	return resp, nil
}

// GetProfile возвращает профиль владельца токена
func (s *Server) GetProfile(ctx context.Context, _ *GetProfileRequest) (*ProfileResponse, error) {
	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		return nil, toStatus(apperrors.ErrUnauthenticated)
	}

	p, err := s.userService.Profile(ctx, claims.Role, claims.PrincipalID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ProfileResponse{User: identityOf(p)}, nil
}

// ChangePassword меняет пароль владельца токена
func (s *Server) ChangePassword(ctx context.Context, req *ChangePasswordRequest) (*ChangePasswordResponse, error) {
	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		return nil, toStatus(apperrors.ErrUnauthenticated)
	}
	if err := validation.ValidateStruct(req); err != nil {
		return nil, toStatus(err)
	}

	err := s.userService.ChangePassword(ctx, claims.Role, claims.PrincipalID, req.OldPassword, req.NewPassword)
	metrics.RecordPasswordChange(string(claims.Role), err)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ChangePasswordResponse{Message: "Password changed successfully"}, nil
}

func identityOf(p users.Principal) *Identity {
	return &Identity{
		ID:     p.PrincipalID(),
		Role:   string(p.Role()),
		Name:   p.DisplayName(),
		Email:  p.ContactEmail(),
		Status: p.AccountStatus().String(),
	}
}

// Serve обслуживает запросы на готовом слушателе
func (s *Server) Serve(lis net.Listener) error {
	logging.Info().Str("addr", lis.Addr().String()).Msg("gRPC server listening")
	if err := s.grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("ошибка запуска gRPC сервера: %w", err)
	}
	return nil
}

// Start запускает gRPC сервер на порту
func (s *Server) Start(port int) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("ошибка создания TCP слушателя: %w", err)
	}
	return s.Serve(lis)
}

// Shutdown переводит health в NOT_SERVING и ждет завершения вызовов.
// По истечении ctx оставшиеся вызовы прерываются.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.grpcServer.Stop()
		return fmt.Errorf("gRPC graceful stop: %w", ctx.Err())
	}
}
