// Package memory is an in-memory storage.Store for tests and storage-less
// deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/ledgerlens/internal/domain"
	"github.com/tjfontaine/ledgerlens/internal/storage"
)

// Store keeps everything in process memory.
type Store struct {
	mu           sync.RWMutex
	usage        []domain.UsageRecord
	users        map[string]*storage.User // keyed by installation id
	interactions []interaction
}

type interaction struct {
	UserID string
	Kind   storage.InteractionKind
}

var _ storage.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{users: make(map[string]*storage.User)}
}

func (s *Store) CreateUsageRecord(_ context.Context, record *domain.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	s.usage = append(s.usage, *record)
	return nil
}

func (s *Store) ListUsageRecords(_ context.Context, limit, offset int) ([]domain.UsageRecord, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.usage)
	// Newest first.
	records := make([]domain.UsageRecord, 0, limit)
	for i := total - 1 - offset; i >= 0 && len(records) < limit; i-- {
		records = append(records, s.usage[i])
	}
	return records, total, nil
}

func (s *Store) UpsertUser(_ context.Context, params storage.UpsertUserParams) (*storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	appVersion := params.AppVersion
	if appVersion == "" {
		appVersion = "unknown"
	}

	user, ok := s.users[params.InstallationID]
	if !ok {
		user = &storage.User{
			ID:             uuid.NewString(),
			InstallationID: params.InstallationID,
			CreatedAt:      now,
		}
		s.users[params.InstallationID] = user
	}
	user.AppVersion = appVersion
	user.DeviceType = params.DeviceType
	if params.City != "" {
		user.City = params.City
	}
	if params.Country != "" {
		user.Country = params.Country
	}
	user.LastAccess = now

	copied := *user
	return &copied, nil
}

func (s *Store) FindUser(_ context.Context, installationID string) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[installationID]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (s *Store) CreateInteraction(_ context.Context, userID string, kind storage.InteractionKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.ID == userID {
			s.interactions = append(s.interactions, interaction{UserID: userID, Kind: kind})
			return nil
		}
	}
	return nil
}

func (s *Store) Close() error { return nil }

// UsageRecords returns a copy of all recorded usage rows, oldest first.
func (s *Store) UsageRecords() []domain.UsageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UsageRecord, len(s.usage))
	copy(out, s.usage)
	return out
}

// InteractionCount returns the number of interactions recorded for a user.
func (s *Store) InteractionCount(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, it := range s.interactions {
		if it.UserID == userID {
			count++
		}
	}
	return count
}
