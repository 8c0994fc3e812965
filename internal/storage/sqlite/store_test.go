package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tjfontaine/ledgerlens/internal/domain"
	"github.com/tjfontaine/ledgerlens/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateAndListUsageRecords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		record := domain.UsageRecord{
			ModelName:    "model-a",
			Success:      i%2 == 0,
			DurationMs:   int64(100 * (i + 1)),
			PromptTokens: 42,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.CreateUsageRecord(ctx, &record); err != nil {
			t.Fatal(err)
		}
		if record.ID == "" {
			t.Fatal("record id not assigned")
		}
	}

	records, total, err := store.ListUsageRecords(ctx, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	// Newest first.
	if records[0].DurationMs != 300 || records[1].DurationMs != 200 {
		t.Errorf("ordering: %+v", records)
	}

	records, _, err = store.ListUsageRecords(ctx, 10, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].DurationMs != 100 {
		t.Errorf("offset page: %+v", records)
	}
}

func TestUsageRecordWithoutUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := domain.UsageRecord{ModelName: "model-a", Success: true}
	if err := store.CreateUsageRecord(ctx, &record); err != nil {
		t.Fatal(err)
	}

	records, _, err := store.ListUsageRecords(ctx, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if records[0].UserID != "" {
		t.Errorf("userID = %q, want empty", records[0].UserID)
	}
}

func TestUpsertUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.UpsertUser(ctx, storage.UpsertUserParams{
		InstallationID: "install-1",
		AppVersion:     "1.0.0",
		DeviceType:     "ios",
		City:           "Jakarta",
		Country:        "Indonesia",
	})
	if err != nil {
		t.Fatal(err)
	}
	if created.ID == "" || created.InstallationID != "install-1" {
		t.Fatalf("created user: %+v", created)
	}

	// Second ping without location keeps the stored location.
	updated, err := store.UpsertUser(ctx, storage.UpsertUserParams{
		InstallationID: "install-1",
		AppVersion:     "1.1.0",
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.ID != created.ID {
		t.Error("upsert must not create a second user for the same installation")
	}
	if updated.AppVersion != "1.1.0" {
		t.Errorf("appVersion = %q, want 1.1.0", updated.AppVersion)
	}
	if updated.City != "Jakarta" || updated.Country != "Indonesia" {
		t.Errorf("location lost on empty update: %+v", updated)
	}
}

func TestUpsertUserDefaultsAppVersion(t *testing.T) {
	store := newTestStore(t)

	user, err := store.UpsertUser(context.Background(), storage.UpsertUserParams{InstallationID: "install-2"})
	if err != nil {
		t.Fatal(err)
	}
	if user.AppVersion != "unknown" {
		t.Errorf("appVersion = %q, want unknown", user.AppVersion)
	}
}

func TestFindUserMissing(t *testing.T) {
	store := newTestStore(t)

	user, err := store.FindUser(context.Background(), "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if user != nil {
		t.Errorf("user = %+v, want nil", user)
	}
}

func TestCreateInteractionUnknownUserIgnored(t *testing.T) {
	store := newTestStore(t)

	if err := store.CreateInteraction(context.Background(), "no-such-user", storage.InteractionPing); err != nil {
		t.Errorf("unknown user must be silently ignored, got %v", err)
	}
}

func TestCreateInteraction(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.UpsertUser(ctx, storage.UpsertUserParams{InstallationID: "install-3"})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.CreateInteraction(ctx, user.ID, storage.InteractionLLMUsage); err != nil {
		t.Fatal(err)
	}
}
