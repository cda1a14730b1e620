package grpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/Ultrahd-dev/assignment-portal/backend/internal/apperrors"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/auth"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/logging"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/metrics"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/users"
)

// access правила доступа к методу
type access struct {
	public bool
	roles  []users.Role // пусто: любая аутентифицированная роль
}

// methodAccess таблица доступа методов AuthService.
// Метод AuthService без записи в таблице запрещен.
var methodAccess = map[string]access{
	MethodLogin:          {public: true},
	MethodVerifyToken:    {public: true},
	MethodGetProfile:     {},
	MethodChangePassword: {},
}

// errorKindKey ключ trailer с видом ошибки
const errorKindKey = "x-error-kind"

// kindError gRPC статус, который помнит вид исходной ошибки
type kindError struct {
	st   *status.Status
	kind apperrors.Kind
}

func (e *kindError) Error() string              { return e.st.Err().Error() }
func (e *kindError) GRPCStatus() *status.Status { return e.st }

// kindOf вид ошибки для trailer; статусы без вида считаются внутренними
func kindOf(err error) apperrors.Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return apperrors.KindOf(err)
}

// toStatus переводит ошибку таксономии в gRPC статус
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	kind := apperrors.KindOf(err)
	var code codes.Code
	switch kind {
	case apperrors.KindInvalidCredentials, apperrors.KindUnauthenticated:
		code = codes.Unauthenticated
	case apperrors.KindAccountSuspended, apperrors.KindForbidden:
		code = codes.PermissionDenied
	case apperrors.KindIncorrectPassword, apperrors.KindPasswordUnchanged, apperrors.KindValidation:
		code = codes.InvalidArgument
	case apperrors.KindNotFound:
		code = codes.NotFound
	case apperrors.KindConflict:
		code = codes.AlreadyExists
	case apperrors.KindRateLimited:
		code = codes.ResourceExhausted
	default:
		code = codes.Internal
	}
	return &kindError{st: status.New(code, apperrors.MessageOf(err)), kind: kind}
}

// tokenFromMetadata читает "authorization: Bearer <token>" из входящих метаданных
func tokenFromMetadata(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return "", false
	}
	return auth.BearerToken(values[0])
}

// authInterceptor проверяет токен и роль по таблице доступа
func authInterceptor(verifier *auth.Verifier, table map[string]access) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, "/"+ServiceName+"/") {
			// health и reflection
			return handler(ctx, req)
		}

		rule, ok := table[info.FullMethod]
		if !ok {
			return nil, toStatus(apperrors.ErrForbidden)
		}
		if rule.public {
			return handler(ctx, req)
		}

		token, ok := tokenFromMetadata(ctx)
		if !ok {
			metrics.RecordDenial(auth.DenyUnauthenticated.String())
			return nil, toStatus(apperrors.ErrUnauthenticated)
		}
		claims, err := verifier.Verify(ctx, token)
		if err != nil {
			return nil, toStatus(err)
		}

		if decision := auth.Authorize(claims, rule.roles...); decision != auth.Allow {
			metrics.RecordDenial(decision.String())
			return nil, toStatus(decision.Err())
		}

		return handler(auth.ContextWithClaims(ctx, claims), req)
	}
}

// loggingInterceptor присваивает request_id, пишет лог и метрики вызова
func loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()

	requestID := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get("x-request-id"); len(v) > 0 {
			requestID = v[0]
		}
	}
	if requestID == "" {
		requestID = logging.GenerateRequestID()
	}
	ctx = logging.ContextWithRequestID(ctx, requestID)

	resp, err := handler(ctx, req)

	code := status.Code(err)
	metrics.RecordGRPCRequest(info.FullMethod, code.String())

	event := logging.Ctx(ctx).Info()
	if code == codes.Internal || code == codes.Unknown {
		event = logging.Ctx(ctx).Error().Err(err)
	}
	event.Str("method", info.FullMethod).
		Str("code", code.String()).
		Dur("duration", time.Since(start)).
		Msg("grpc request")

	if err != nil {
		_ = grpc.SetTrailer(ctx, metadata.Pairs(errorKindKey, string(kindOf(err))))
	}
	return resp, err
}
