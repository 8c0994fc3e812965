// Package storage defines the persistence interface consumed by the usage
// recorder and the HTTP surface. Implementations need only simple
// create/find/upsert semantics; no cross-call transactions are required.
package storage

import (
	"context"
	"time"

	"github.com/tjfontaine/ledgerlens/internal/domain"
)

// InteractionKind classifies a recorded client interaction.
type InteractionKind string

const (
	InteractionPing     InteractionKind = "ping"
	InteractionLLMUsage InteractionKind = "llm_usage"
)

// User is an installed client instance.
type User struct {
	ID             string
	InstallationID string
	AppVersion     string
	DeviceType     string
	City           string
	Country        string
	LastAccess     time.Time
	CreatedAt      time.Time
}

// UpsertUserParams carries the fields written on ping. Empty City/Country
// leave any previously stored location untouched.
type UpsertUserParams struct {
	InstallationID string
	AppVersion     string
	DeviceType     string
	City           string
	Country        string
}

// Store is the persistence interface.
type Store interface {
	CreateUsageRecord(ctx context.Context, record *domain.UsageRecord) error
	ListUsageRecords(ctx context.Context, limit, offset int) ([]domain.UsageRecord, int, error)

	UpsertUser(ctx context.Context, params UpsertUserParams) (*User, error)
	FindUser(ctx context.Context, installationID string) (*User, error)

	// CreateInteraction records an interaction for a known user; unknown
	// user ids are silently ignored.
	CreateInteraction(ctx context.Context, userID string, kind InteractionKind) error

	Close() error
}
