package domain

import "time"

// AccountAction names a change recorded in the account activity trail.
type AccountAction string

const (
	ActionCreated             AccountAction = "user.created"
	ActionUpdated             AccountAction = "user.updated"
	ActionDeleted             AccountAction = "user.deleted"
	ActionPasswordChanged     AccountAction = "user.password_changed"
	ActionPasswordReset       AccountAction = "user.password_reset"
	ActionEmailChanged        AccountAction = "user.email_changed"
	ActionRolesChanged        AccountAction = "user.roles_changed"
	ActionApplicationsChanged AccountAction = "user.applications_changed"
	ActionAuthenticated       AccountAction = "user.authenticated"
)

// AccountEvent is an audit entry for a single account change.
type AccountEvent struct {
	ID         string
	Action     AccountAction
	Username   string
	Actor      string // empty when the request was anonymous
	OccurredAt time.Time
}
