// Package metrics defines and registers the custom Prometheus metrics of the
// user accounts API. Metrics are registered with the default registry on
// package init through promauto, so importing the package is enough.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/99minutos/user-accounts/internal/core/domain"
)

const namespace = "users"

// ── Command metrics ───────────────────────────────────────────────────────────

// CommandsTotal counts user commands handled by the API.
// Labels:
//   - command: e.g. "create", "change_password", "change_roles"
//   - result: "ok" or an error class from Result
var CommandsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_total",
		Help:      "Total number of user commands, labelled by command and result.",
	},
	[]string{"command", "result"},
)

// AuthenticationsTotal counts login attempts.
// Label:
//   - result: "ok", "invalid_credentials" or "error"
var AuthenticationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authentications_total",
		Help:      "Total number of authentication attempts, labelled by result.",
	},
	[]string{"result"},
)

// IdempotentReplaysTotal counts create requests answered from a previous Idempotency-Key.
var IdempotentReplaysTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "idempotent_replays_total",
		Help:      "Total number of create requests served from a stored idempotency key.",
	},
)

// ── Audit metrics ─────────────────────────────────────────────────────────────

// AuditQueueDepth tracks the number of audit events waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of audit events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// AuditErrorsTotal counts audit events that were not stored.
// Label:
//   - reason: "insert_failed" or "queue_full"
var AuditErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_errors_total",
		Help:      "Total number of audit events that could not be stored.",
	},
	[]string{"reason"},
)

// Result classifies err for the result label.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrMalformedEntity):
		return "malformed"
	case errors.Is(err, domain.ErrNotAuthenticated):
		return "not_authenticated"
	case errors.Is(err, domain.ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, domain.ErrUserNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrUserExists):
		return "exists"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	default:
		return "error"
	}
}

// ObserveCommand increments CommandsTotal for command with the class of err.
func ObserveCommand(command string, err error) {
	CommandsTotal.WithLabelValues(command, Result(err)).Inc()
}
