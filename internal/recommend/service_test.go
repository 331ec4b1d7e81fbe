package recommend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/airsense/indoor-comfort/internal/common"
	"github.com/airsense/indoor-comfort/internal/store"
)

const (
	testUserID = "7b0d1b6e-3f6a-4a43-9a3e-2f8c8e6a1d01"
	testRoomID = "b4a8a2a0-5f54-4d02-8a57-cf5d0e3b2c02"
)

// fakeOrchestratorStore serves canned records and captures inserts.
type fakeOrchestratorStore struct {
	user     *store.User
	room     *store.Room
	indoor   *store.NodeReading
	outdoor  *store.OutdoorReading
	cached   *store.Recommendation
	inserted []store.Recommendation
}

func (f *fakeOrchestratorStore) GetUser(context.Context, string) (store.User, error) {
	if f.user == nil {
		return store.User{}, store.ErrNotFound
	}
	return *f.user, nil
}

func (f *fakeOrchestratorStore) GetRoom(context.Context, string) (store.Room, error) {
	if f.room == nil {
		return store.Room{}, store.ErrNotFound
	}
	return *f.room, nil
}

func (f *fakeOrchestratorStore) LatestNodeReading(context.Context, string) (store.NodeReading, error) {
	if f.indoor == nil {
		return store.NodeReading{}, store.ErrNotFound
	}
	return *f.indoor, nil
}

func (f *fakeOrchestratorStore) LatestOutdoorReading(context.Context) (store.OutdoorReading, error) {
	if f.outdoor == nil {
		return store.OutdoorReading{}, store.ErrNotFound
	}
	return *f.outdoor, nil
}

func (f *fakeOrchestratorStore) LatestRecommendation(context.Context, string, string) (store.Recommendation, error) {
	if f.cached == nil {
		return store.Recommendation{}, store.ErrNotFound
	}
	return *f.cached, nil
}

func (f *fakeOrchestratorStore) InsertRecommendation(_ context.Context, r *store.Recommendation) error {
	if r.ID == "" {
		r.ID = "generated"
	}
	f.inserted = append(f.inserted, *r)
	return nil
}

func (f *fakeOrchestratorStore) ListRecommendations(context.Context, string, string, int, int) ([]store.Recommendation, int, error) {
	return nil, 0, nil
}

func (f *fakeOrchestratorStore) SoftDeleteRecommendation(context.Context, string) error {
	return nil
}

// fakeInference returns a fixed payload or error and records the snapshot.
type fakeInference struct {
	payload  store.JSONMap
	err      error
	snapshot store.JSONMap
}

func (f *fakeInference) Recommend(_ context.Context, snapshot store.JSONMap) (store.JSONMap, error) {
	f.snapshot = snapshot
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

func baseStore() *fakeOrchestratorStore {
	return &fakeOrchestratorStore{
		user: &store.User{ID: testUserID, Name: "Asha", HealthIssues: []any{"asthma"}},
		room: &store.Room{ID: testRoomID, Name: "study"},
		indoor: &store.NodeReading{
			DeviceKey: "7",
			Sample:    store.JSONMap{"temperature": 27.0, "pm2_5": 11.0},
		},
		outdoor: &store.OutdoorReading{
			Measurements: store.JSONMap{"pm2_5": 42.0},
		},
	}
}

func TestGetLatestRemoteSuccess(t *testing.T) {
	st := baseStore()
	inf := &fakeInference{payload: store.JSONMap{"action": "open_window", "RECHECK_AT": 10.0}}
	svc := NewService(st, inf, time.Minute)

	res, err := svc.GetLatest(context.Background(), testUserID, testRoomID, "7")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}

	if res.Source != "remote" {
		t.Fatalf("source = %q, want remote", res.Source)
	}
	if res.RecheckMinutes != 10 {
		t.Fatalf("recheck = %d, want 10", res.RecheckMinutes)
	}
	if len(st.inserted) != 1 {
		t.Fatalf("expected one stored recommendation, got %d", len(st.inserted))
	}

	stored := st.inserted[0]
	if stored.RecheckMinutes != 10 {
		t.Fatalf("stored recheck = %d, want 10", stored.RecheckMinutes)
	}
	if stored.Snapshot.Indoor["pm2_5"] != 11.0 {
		t.Fatalf("snapshot missing indoor conditions: %v", stored.Snapshot)
	}
	if stored.Snapshot.Outdoor["pm2_5"] != 42.0 {
		t.Fatalf("snapshot missing outdoor conditions: %v", stored.Snapshot)
	}
	if len(stored.Snapshot.UserHealth) != 1 {
		t.Fatalf("snapshot missing user health: %v", stored.Snapshot)
	}
	if stored.ComputedAt == "" {
		t.Fatal("computedAt not set")
	}

	// The forwarded snapshot carries all four entities.
	for _, key := range []string{"user", "room", "indoor", "outdoor", "meta"} {
		if _, ok := inf.snapshot[key]; !ok {
			t.Fatalf("snapshot payload missing %q", key)
		}
	}
}

func TestGetLatestFallsBackToCache(t *testing.T) {
	st := baseStore()
	st.cached = &store.Recommendation{
		ID:             "cached-1",
		Payload:        store.JSONMap{"action": "close_window"},
		RecheckMinutes: 7,
	}
	inf := &fakeInference{err: errors.New("connection refused")}
	svc := NewService(st, inf, time.Minute)

	res, err := svc.GetLatest(context.Background(), testUserID, testRoomID, "")
	if err != nil {
		t.Fatalf("cache fallback must not error: %v", err)
	}

	if res.Source != "cache" {
		t.Fatalf("source = %q, want cache", res.Source)
	}
	if res.Warning == "" {
		t.Fatal("cache response must carry a warning")
	}
	if res.Recommendation.ID != "cached-1" {
		t.Fatalf("served %q, want the cached row", res.Recommendation.ID)
	}
	if res.RecheckMinutes != 7 {
		t.Fatalf("recheck = %d, want cached 7", res.RecheckMinutes)
	}
	if len(st.inserted) != 0 {
		t.Fatal("fallback must not store a new row")
	}
}

func TestGetLatestNoFallbackFails(t *testing.T) {
	st := baseStore()
	inf := &fakeInference{err: errors.New("timeout")}
	svc := NewService(st, inf, time.Minute)

	_, err := svc.GetLatest(context.Background(), testUserID, testRoomID, "")
	if !errors.Is(err, common.ErrUpstreamUnavailable) {
		t.Fatalf("got %v, want ErrUpstreamUnavailable", err)
	}
}

func TestGetLatestValidatesIdentifiers(t *testing.T) {
	svc := NewService(baseStore(), &fakeInference{}, time.Minute)

	if _, err := svc.GetLatest(context.Background(), "not-a-uuid", testRoomID, ""); !errors.Is(err, common.ErrInvalidArgument) {
		t.Fatalf("malformed user id: got %v, want ErrInvalidArgument", err)
	}
	if _, err := svc.GetLatest(context.Background(), testUserID, "nope", ""); !errors.Is(err, common.ErrInvalidArgument) {
		t.Fatalf("malformed room id: got %v, want ErrInvalidArgument", err)
	}
}

func TestGetLatestMissingUserOrRoom(t *testing.T) {
	st := baseStore()
	st.user = nil
	svc := NewService(st, &fakeInference{}, time.Minute)

	if _, err := svc.GetLatest(context.Background(), testUserID, testRoomID, ""); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing user: got %v, want ErrNotFound", err)
	}

	st = baseStore()
	st.room = nil
	svc = NewService(st, &fakeInference{}, time.Minute)
	if _, err := svc.GetLatest(context.Background(), testUserID, testRoomID, ""); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing room: got %v, want ErrNotFound", err)
	}
}

func TestNormalizeRecheck(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want int
	}{
		{"float", 10.0, 10},
		{"int", 3, 3},
		{"numeric string", "7", 7},
		{"junk string", "soon", 5},
		{"absent", nil, 5},
		{"zero", 0.0, 5},
		{"negative", -2.0, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizeRecheck(tc.in); got != tc.want {
				t.Fatalf("normalizeRecheck(%v) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestLatestStoredRequiresAKey(t *testing.T) {
	svc := NewService(baseStore(), &fakeInference{}, time.Minute)
	if _, err := svc.LatestStored(context.Background(), "", ""); !errors.Is(err, common.ErrInvalidArgument) {
		t.Fatalf("got %v, want ErrInvalidArgument", err)
	}
}
