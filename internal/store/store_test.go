package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.InitSchema(context.Background()); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return s
}

func TestLatestNodeReadingPerDevice(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	readings := []NodeReading{
		{DeviceKey: "7", Sample: JSONMap{"temperature": 24.0}, SourceTS: base},
		{DeviceKey: "7", Sample: JSONMap{"temperature": 26.5}, SourceTS: base.Add(10 * time.Minute)},
		{DeviceKey: "9", Sample: JSONMap{"temperature": 31.0}, SourceTS: base.Add(time.Hour)},
	}
	if err := s.InsertNodeReadings(ctx, readings); err != nil {
		t.Fatalf("insert: %v", err)
	}

	latest, err := s.LatestNodeReading(ctx, "7")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got := latest.Sample["temperature"]; got != 26.5 {
		t.Fatalf("latest temperature = %v, want 26.5", got)
	}

	if _, err := s.LatestNodeReading(ctx, "42"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown device: got %v, want ErrNotFound", err)
	}
}

func TestListNodeReadingsPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	var readings []NodeReading
	for i := 0; i < 5; i++ {
		readings = append(readings, NodeReading{
			DeviceKey: "7",
			Sample:    JSONMap{"seq": float64(i)},
			SourceTS:  base.Add(time.Duration(i) * time.Minute),
		})
	}
	if err := s.InsertNodeReadings(ctx, readings); err != nil {
		t.Fatalf("insert: %v", err)
	}

	page, total, err := s.ListNodeReadings(ctx, "7", 2, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}
	if len(page) != 2 {
		t.Fatalf("page size = %d, want 2", len(page))
	}
	// Newest first: page 2 of size 2 holds seq 2 and 1.
	if page[0].Sample["seq"] != 2.0 || page[1].Sample["seq"] != 1.0 {
		t.Fatalf("unexpected page order: %v, %v", page[0].Sample["seq"], page[1].Sample["seq"])
	}
}

func TestLatestRecommendationOrderingAndSoftDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := Recommendation{
		RoomID: "room-1", UserID: "user-1",
		Payload:    JSONMap{"action": "close_window"},
		ComputedAt: "2025-03-01 10:00:00",
	}
	newer := Recommendation{
		RoomID: "room-1", UserID: "user-1",
		Payload:    JSONMap{"action": "open_window"},
		ComputedAt: "2025-03-01 11:00:00",
	}
	for _, r := range []*Recommendation{&older, &newer} {
		if err := s.InsertRecommendation(ctx, r); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	latest, err := s.LatestRecommendation(ctx, "room-1", "user-1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != newer.ID {
		t.Fatalf("latest = %s, want %s", latest.ID, newer.ID)
	}

	// Soft-deleting the newest row makes the older one the latest.
	if err := s.SoftDeleteRecommendation(ctx, newer.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	latest, err = s.LatestRecommendation(ctx, "room-1", "user-1")
	if err != nil {
		t.Fatalf("latest after delete: %v", err)
	}
	if latest.ID != older.ID {
		t.Fatalf("latest after delete = %s, want %s", latest.ID, older.ID)
	}

	// Repeated soft delete is a safe no-op reporting ErrNotFound.
	if err := s.SoftDeleteRecommendation(ctx, newer.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("repeat delete: got %v, want ErrNotFound", err)
	}
}

func TestInsertRecommendationDefaultsRecheck(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := Recommendation{
		RoomID: "room-1", UserID: "user-1",
		Payload:    JSONMap{},
		ComputedAt: "2025-03-01 10:00:00",
	}
	if err := s.InsertRecommendation(ctx, &r); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if r.RecheckMinutes != 5 {
		t.Fatalf("recheck = %d, want default 5", r.RecheckMinutes)
	}
}

func TestConversationAppendPreservesOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := Conversation{
		UserID:         "user-1",
		Exchanges:      []JSONMap{{"user": "hello", "agent": "hi"}},
		LastActivityAt: "2025-03-01 10:00:00",
	}
	if err := s.CreateConversation(ctx, &c); err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := s.AppendExchange(ctx, c.ID, JSONMap{"user": "again", "agent": "yes"}, "2025-03-01 10:05:00")
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	if len(updated.Exchanges) != 2 {
		t.Fatalf("exchange count = %d, want 2", len(updated.Exchanges))
	}
	if updated.Exchanges[0]["user"] != "hello" || updated.Exchanges[1]["user"] != "again" {
		t.Fatalf("exchanges out of order: %v", updated.Exchanges)
	}
	if updated.LastActivityAt != "2025-03-01 10:05:00" {
		t.Fatalf("lastActivityAt = %q, not bumped", updated.LastActivityAt)
	}
}

func TestConversationAppendToDeletedThread(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := Conversation{UserID: "user-1", LastActivityAt: "2025-03-01 10:00:00"}
	if err := s.CreateConversation(ctx, &c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.SoftDeleteConversation(ctx, c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := s.AppendExchange(ctx, c.ID, JSONMap{"user": "hi"}, "2025-03-01 10:05:00"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("append to deleted: got %v, want ErrNotFound", err)
	}
	if _, err := s.SoftDeleteConversation(ctx, c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("repeat delete: got %v, want ErrNotFound", err)
	}
}

func TestListConversationsSortedByActivity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stale := Conversation{UserID: "user-1", LastActivityAt: "2025-03-01 09:00:00"}
	fresh := Conversation{UserID: "user-1", LastActivityAt: "2025-03-01 11:00:00"}
	other := Conversation{UserID: "user-2", LastActivityAt: "2025-03-01 12:00:00"}
	for _, c := range []*Conversation{&stale, &fresh, &other} {
		if err := s.CreateConversation(ctx, c); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	convs, total, err := s.ListConversations(ctx, "user-1", "", 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(convs) != 2 {
		t.Fatalf("total = %d, len = %d, want 2/2", total, len(convs))
	}
	if convs[0].ID != fresh.ID {
		t.Fatalf("expected most recently active thread first")
	}
}

func TestOutdoorLatestAndUserRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := OutdoorReading{
		RecordedAt:   "2025-03-01 10:00:00",
		Measurements: JSONMap{"pm2_5": 12.0},
		Metadata:     JSONMap{"is_day": 1.0},
	}
	second := OutdoorReading{
		RecordedAt:   "2025-03-01 10:10:00",
		Measurements: JSONMap{"pm2_5": 15.5},
		Metadata:     JSONMap{"is_day": 1.0},
	}
	for _, r := range []*OutdoorReading{&first, &second} {
		if err := s.InsertOutdoorReading(ctx, r); err != nil {
			t.Fatalf("insert outdoor: %v", err)
		}
	}

	latest, err := s.LatestOutdoorReading(ctx)
	if err != nil {
		t.Fatalf("latest outdoor: %v", err)
	}
	if latest.Measurements["pm2_5"] != 15.5 {
		t.Fatalf("latest pm2_5 = %v, want 15.5", latest.Measurements["pm2_5"])
	}

	u := User{
		Name:         "Asha",
		Email:        "asha@example.com",
		HealthIssues: []any{"asthma"},
	}
	if err := s.CreateUser(ctx, &u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	got, err := s.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if len(got.HealthIssues) != 1 || got.HealthIssues[0] != "asthma" {
		t.Fatalf("health issues did not round trip: %v", got.HealthIssues)
	}

	if err := s.SoftDeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, err := s.GetUser(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted user visible: %v", err)
	}
}
