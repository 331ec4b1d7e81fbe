package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/airsense/indoor-comfort/internal/common"
	"github.com/airsense/indoor-comfort/internal/store"
)

// defaultRecheckMinutes applies when the inference payload carries no usable
// recheck interval.
const defaultRecheckMinutes = 5

// Store is the slice of persistence the orchestrator needs. Every operation
// re-fetches what it needs; nothing is held between requests.
type Store interface {
	GetUser(ctx context.Context, id string) (store.User, error)
	GetRoom(ctx context.Context, id string) (store.Room, error)
	LatestNodeReading(ctx context.Context, deviceKey string) (store.NodeReading, error)
	LatestOutdoorReading(ctx context.Context) (store.OutdoorReading, error)
	LatestRecommendation(ctx context.Context, roomID, userID string) (store.Recommendation, error)
	InsertRecommendation(ctx context.Context, r *store.Recommendation) error
	ListRecommendations(ctx context.Context, roomID, userID string, page, limit int) ([]store.Recommendation, int, error)
	SoftDeleteRecommendation(ctx context.Context, id string) error
}

// Inference is the remote compute boundary.
type Inference interface {
	Recommend(ctx context.Context, snapshot store.JSONMap) (store.JSONMap, error)
}

// Service assembles condition snapshots, delegates computation to the
// inference boundary and falls back to the last stored row on failure.
type Service struct {
	store     Store
	inference Inference
	timeout   time.Duration
}

func NewService(st Store, inference Inference, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Service{store: st, inference: inference, timeout: timeout}
}

// Result is the outcome of a latest-recommendation request. Source is
// "remote" for a live computation and "cache" for a served fallback; the two
// are never conflated so the dashboard can tell stale data apart.
type Result struct {
	Source         string               `json:"source"`
	Recommendation store.Recommendation `json:"recommendation"`
	RecheckMinutes int                  `json:"recheckMinutes"`
	Warning        string               `json:"warning,omitempty"`
}

// GetLatest runs the full orchestration for a user/room pair. deviceKey is
// optional; without it the snapshot simply carries no indoor conditions.
// The caller owns its own re-poll timer at RecheckMinutes from now.
func (s *Service) GetLatest(ctx context.Context, userID, roomID, deviceKey string) (Result, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return Result{}, fmt.Errorf("%w: malformed userId", common.ErrInvalidArgument)
	}
	if _, err := uuid.Parse(roomID); err != nil {
		return Result{}, fmt.Errorf("%w: malformed roomId", common.ErrInvalidArgument)
	}

	snap, err := s.collect(ctx, userID, roomID, deviceKey)
	if err != nil {
		return Result{}, err
	}

	payload := store.JSONMap{
		"user":    snap.user,
		"room":    snap.room,
		"indoor":  nullable(snap.indoor != nil, snap.indoor),
		"outdoor": nullable(snap.outdoor != nil, snap.outdoor),
		"meta": store.JSONMap{
			"requestedAt": time.Now().UTC().Format(time.RFC3339),
		},
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	recommendation, err := s.inference.Recommend(callCtx, payload)
	if err != nil {
		log.Printf("recommend: inference request failed: %v", err)

		if snap.cached != nil {
			return Result{
				Source:         "cache",
				Recommendation: *snap.cached,
				RecheckMinutes: snap.cached.RecheckMinutes,
				Warning:        "inference service unavailable; returning last cached recommendation",
			}, nil
		}
		return Result{}, fmt.Errorf("%w: inference request failed and no cached recommendation exists", common.ErrUpstreamUnavailable)
	}

	rec := store.Recommendation{
		RoomID:         roomID,
		UserID:         userID,
		Payload:        recommendation,
		Snapshot:       snap.conditions(),
		RecheckMinutes: normalizeRecheck(recommendation["RECHECK_AT"]),
		ComputedAt:     common.FormatDisplay(time.Now()),
	}
	if err := s.store.InsertRecommendation(ctx, &rec); err != nil {
		return Result{}, err
	}

	return Result{
		Source:         "remote",
		Recommendation: rec,
		RecheckMinutes: rec.RecheckMinutes,
	}, nil
}

// snapshot holds the cross-entity state one request operates on.
type snapshot struct {
	user    *store.User
	room    *store.Room
	indoor  *store.NodeReading
	outdoor *store.OutdoorReading
	cached  *store.Recommendation
}

func (sn *snapshot) conditions() store.Conditions {
	c := store.Conditions{}
	if sn.indoor != nil {
		c.Indoor = sn.indoor.Sample
	}
	if sn.outdoor != nil {
		c.Outdoor = sn.outdoor.Measurements
	}
	if sn.user != nil {
		c.UserHealth = sn.user.HealthIssues
	}
	return c
}

// collect fetches the user, room, latest readings and the fallback candidate
// concurrently. Absent readings and a missing fallback are fine; a missing
// user or room is not.
func (s *Service) collect(ctx context.Context, userID, roomID, deviceKey string) (*snapshot, error) {
	var (
		wg   sync.WaitGroup
		snap snapshot

		userErr, roomErr, nodeErr, outdoorErr, cacheErr error
	)

	wg.Add(5)
	go func() {
		defer wg.Done()
		u, err := s.store.GetUser(ctx, userID)
		if err == nil {
			snap.user = &u
		}
		userErr = err
	}()
	go func() {
		defer wg.Done()
		r, err := s.store.GetRoom(ctx, roomID)
		if err == nil {
			snap.room = &r
		}
		roomErr = err
	}()
	go func() {
		defer wg.Done()
		if deviceKey == "" {
			return
		}
		n, err := s.store.LatestNodeReading(ctx, deviceKey)
		if err == nil {
			snap.indoor = &n
		}
		nodeErr = err
	}()
	go func() {
		defer wg.Done()
		o, err := s.store.LatestOutdoorReading(ctx)
		if err == nil {
			snap.outdoor = &o
		}
		outdoorErr = err
	}()
	go func() {
		defer wg.Done()
		c, err := s.store.LatestRecommendation(ctx, roomID, userID)
		if err == nil {
			snap.cached = &c
		}
		cacheErr = err
	}()
	wg.Wait()

	if userErr != nil {
		if errors.Is(userErr, store.ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", userID, store.ErrNotFound)
		}
		return nil, userErr
	}
	if roomErr != nil {
		if errors.Is(roomErr, store.ErrNotFound) {
			return nil, fmt.Errorf("room %s: %w", roomID, store.ErrNotFound)
		}
		return nil, roomErr
	}
	for _, err := range []error{nodeErr, outdoorErr, cacheErr} {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	return &snap, nil
}

func nullable[T any](ok bool, v *T) any {
	if !ok {
		return nil
	}
	return v
}

// normalizeRecheck coerces the payload's recheck field to an integer number
// of minutes. Upstream drift is absorbed: numbers, numeric strings and
// json.Number all work, anything else defaults.
func normalizeRecheck(v any) int {
	switch n := v.(type) {
	case float64:
		return clampRecheck(int(n))
	case int:
		return clampRecheck(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return clampRecheck(int(i))
		}
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return clampRecheck(i)
		}
	}
	return defaultRecheckMinutes
}

func clampRecheck(n int) int {
	if n < 1 {
		return defaultRecheckMinutes
	}
	return n
}

// LatestStored returns the newest stored row for a room and/or user without
// touching the inference boundary.
func (s *Service) LatestStored(ctx context.Context, roomID, userID string) (store.Recommendation, error) {
	if roomID == "" && userID == "" {
		return store.Recommendation{}, fmt.Errorf("%w: roomId or userId required", common.ErrInvalidArgument)
	}
	return s.store.LatestRecommendation(ctx, roomID, userID)
}

// List returns stored rows newest first with the total count.
func (s *Service) List(ctx context.Context, roomID, userID string, page, limit int) ([]store.Recommendation, int, error) {
	return s.store.ListRecommendations(ctx, roomID, userID, page, limit)
}

// SoftDelete marks a stored row deleted.
func (s *Service) SoftDelete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: recommendation id required", common.ErrInvalidArgument)
	}
	return s.store.SoftDeleteRecommendation(ctx, id)
}
