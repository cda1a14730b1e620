// Package logging настраивает структурированное логирование на базе zerolog.
//
// Глобальный логгер инициализируется значениями по умолчанию при импорте
// пакета и перенастраивается из конфигурации через Init. В обработчиках
// следует использовать Ctx(ctx), чтобы в запись попадал request_id.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config параметры логгера
type Config struct {
	Level  string    // trace, debug, info, warn, error, disabled
	Format string    // json | console
	Output io.Writer // по умолчанию os.Stderr
}

var (
	log zerolog.Logger
	mu  sync.RWMutex
)

func init() {
	initLogger(Config{})
}

// Init перенастраивает глобальный логгер
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	initLogger(cfg)
}

func initLogger(cfg Config) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	output := cfg.Output
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	log = zerolog.New(output).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger возвращает копию глобального логгера
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Info начинает запись уровня info
func Info() *zerolog.Event {
	l := Logger()
	return l.Info()
}

// Warn начинает запись уровня warn
func Warn() *zerolog.Event {
	l := Logger()
	return l.Warn()
}

// Error начинает запись уровня error
func Error() *zerolog.Event {
	l := Logger()
	return l.Error()
}

// Fatal пишет запись и завершает процесс
func Fatal() *zerolog.Event {
	l := Logger()
	return l.Fatal()
}

// WithComponent создает дочерний логгер с полем component
func WithComponent(component string) zerolog.Logger {
	return Logger().With().Str("component", component).Logger()
}

type contextKey string

const requestIDKey contextKey = "request_id"

// GenerateRequestID создает новый идентификатор запроса
func GenerateRequestID() string {
	return uuid.New().String()
}

// ContextWithRequestID сохраняет идентификатор запроса в контексте
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext извлекает идентификатор запроса, пустая строка если его нет
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx возвращает логгер с полями запроса из контекста
//
//	logging.Ctx(ctx).Info().Str("role", "student").Msg("login succeeded")
func Ctx(ctx context.Context) *zerolog.Logger {
	l := Logger()
	if id := RequestIDFromContext(ctx); id != "" {
		l = l.With().Str("request_id", id).Logger()
	}
	return &l
}
