// Package database открывает соединение с PostgreSQL
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sethvargo/go-retry"

	"github.com/Ultrahd-dev/assignment-portal/backend/internal/logging"
)

// PingPolicy параметры ожидания базы данных при старте
type PingPolicy struct {
	Attempts    uint64
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultPingPolicy около 30 секунд ожидания, пока поднимается контейнер БД
var DefaultPingPolicy = PingPolicy{Attempts: 8, BaseBackoff: 250 * time.Millisecond, MaxBackoff: 5 * time.Second}

// Pinger часть *sql.DB, нужная для проверки подключения
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Open открывает пул соединений и ждет доступности базы
func Open(ctx context.Context, dsn string, policy PingPolicy) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := WaitReady(ctx, db, policy); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// WaitReady проверяет подключение с экспоненциальной задержкой
func WaitReady(ctx context.Context, db Pinger, policy PingPolicy) error {
	backoff := retry.NewExponential(policy.BaseBackoff)
	backoff = retry.WithCappedDuration(policy.MaxBackoff, backoff)
	backoff = retry.WithMaxRetries(policy.Attempts, backoff)

	log := logging.WithComponent("database")

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := db.PingContext(pingCtx); err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("database not ready")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка проверки подключения к БД: %w", err)
	}

	log.Info().Int("attempts", attempt).Msg("Успешное подключение к базе данных")
	return nil
}
