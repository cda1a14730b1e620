// Package metrics экспортирует Prometheus метрики сервиса.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы входа в систему
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeSuspended          = "suspended"
	OutcomeError              = "error"
)

var (
	// Identity Metrics
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_login_attempts_total",
			Help: "Total number of login attempts by outcome and resolved role",
		},
		[]string{"outcome", "role"}, // role is empty when no principal was resolved
	)

	LoginDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "portal_login_duration_seconds",
			Help:    "Duration of identity resolution including password verification",
			Buckets: prometheus.DefBuckets,
		},
	)

	TokenVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_token_verifications_total",
			Help: "Total number of bearer token verifications",
		},
		[]string{"result"}, // "valid", "invalid"
	)

	TokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_tokens_issued_total",
			Help: "Total number of issued bearer tokens",
		},
		[]string{"role"},
	)

	AuthorizationDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_authorization_denials_total",
			Help: "Total number of requests rejected by the authorization gate",
		},
		[]string{"reason"}, // "unauthenticated", "forbidden", "suspended"
	)

	// Lifecycle Metrics
	PasswordChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_password_changes_total",
			Help: "Total number of password change attempts",
		},
		[]string{"role", "result"},
	)

	StatusChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_status_changes_total",
			Help: "Total number of suspend and unsuspend operations",
		},
		[]string{"role", "action"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_api_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_api_request_duration_seconds",
			Help:    "Duration of HTTP API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	GRPCRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "code"},
	)
)

// RecordLogin records the outcome of one login attempt
func RecordLogin(outcome, role string, duration time.Duration) {
	LoginAttempts.WithLabelValues(outcome, role).Inc()
	LoginDuration.Observe(duration.Seconds())
}

// RecordTokenVerification records a token check
func RecordTokenVerification(valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	TokenVerifications.WithLabelValues(result).Inc()
}

// RecordTokenIssued records a newly signed token
func RecordTokenIssued(role string) {
	TokensIssued.WithLabelValues(role).Inc()
}

// RecordDenial records a gate rejection
func RecordDenial(reason string) {
	AuthorizationDenials.WithLabelValues(reason).Inc()
}

// RecordPasswordChange records a password rotation attempt
func RecordPasswordChange(role string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	PasswordChanges.WithLabelValues(role, result).Inc()
}

// RecordStatusChange records a successful suspend or unsuspend
func RecordStatusChange(role, action string) {
	StatusChanges.WithLabelValues(role, action).Inc()
}

// RecordAPIRequest records an HTTP request metric
func RecordAPIRequest(method, route, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordGRPCRequest records a gRPC call by result code
func RecordGRPCRequest(method, code string) {
	GRPCRequestsTotal.WithLabelValues(method, code).Inc()
}
