// Package main запускает HTTP API и gRPC AuthService портала заданий
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"

	"github.com/Ultrahd-dev/assignment-portal/backend/internal/api"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/api/response"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/auth"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/config"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/database"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/grpc"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/identity"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/jwt"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/logging"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/seed"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/users"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "путь к файлу конфигурации")
	flag.Parse()

	// .env необязателен
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Ошибка загрузки конфигурации")
	}

	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Сервер остановлен с ошибкой")
	}
	logging.Info().Msg("Сервер остановлен")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// Инициализируем компоненты
	hasher := users.NewPasswordHasher(cfg.Password.BcryptCost)
	userService := users.NewService(store, hasher)

	if cfg.Database.SeedFile != "" {
		if err := applySeed(ctx, userService, cfg.Database.SeedFile); err != nil {
			return err
		}
	}

	probes, err := identity.ProbesFor(cfg.Auth.ProbeOrder, store)
	if err != nil {
		return err
	}
	resolver := identity.NewResolver(hasher, probes...)

	jwtManager, err := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.Issuer)
	if err != nil {
		return err
	}

	var profiles auth.ProfileLoader
	if cfg.Auth.RecheckStatus {
		profiles = userService
	}
	verifier := auth.NewVerifier(jwtManager, profiles)

	resp := response.NewWriter(cfg.Server.IsDevelopment())
	handler := api.NewHandler(resolver, jwtManager, userService, resp)
	router := api.NewRouter(handler, auth.NewMiddleware(verifier, resp), api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		LoginRequests:      cfg.RateLimit.LoginRequests,
		LoginWindow:        cfg.RateLimit.LoginWindow,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       2 * cfg.Server.ReadTimeout,
	}
	grpcServer := grpc.NewServer(resolver, jwtManager, userService, verifier)

	logging.Info().
		Int("http_port", cfg.Server.HTTPPort).
		Int("grpc_port", cfg.Server.GRPCPort).
		Str("store", cfg.Database.Driver).
		Str("probe_order", cfg.Auth.ProbeOrder).
		Bool("recheck_status", cfg.Auth.RecheckStatus).
		Msg("Запуск серверов")

	p := pool.New().WithContext(ctx).WithCancelOnError()

	p.Go(func(context.Context) error {
		logging.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ошибка запуска HTTP сервера: %w", err)
		}
		return nil
	})

	p.Go(func(context.Context) error {
		return grpcServer.Start(cfg.Server.GRPCPort)
	})

	// Ожидаем сигнала завершения или ошибки одного из серверов
	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		logging.Info().Msg("Получен сигнал завершения, останавливаем серверы...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return multierr.Combine(
			httpServer.Shutdown(shutdownCtx),
			grpcServer.Shutdown(shutdownCtx),
		)
	})

	return p.Wait()
}

// openStore выбирает хранилище по database.driver
func openStore(ctx context.Context, cfg *config.Config) (users.Store, func(), error) {
	if cfg.Database.Driver == "memory" {
		logging.Warn().Msg("Используется хранилище в памяти, данные не сохраняются между запусками")
		return users.NewMemoryStore(), func() {}, nil
	}

	db, err := database.Open(ctx, cfg.Database.GetDSN(), database.DefaultPingPolicy)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Ошибка закрытия соединения с БД")
		}
	}
	return users.NewRepository(db), closeFn, nil
}

func applySeed(ctx context.Context, svc *users.Service, path string) error {
	f, err := seed.LoadFile(path)
	if err != nil {
		return err
	}
	res, err := seed.Apply(ctx, svc, f)
	if err != nil {
		return fmt.Errorf("ошибка загрузки начальных данных: %w", err)
	}
	logging.Info().Int("created", res.Created).Int("skipped", res.Skipped).Str("file", path).Msg("Начальные данные загружены")
	return nil
}
