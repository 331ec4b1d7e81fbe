package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunCycleSwallowsFailure(t *testing.T) {
	s := New(nil, 5*time.Minute, 10*time.Minute, time.UTC)

	calls := 0
	failing := func(ctx context.Context) error {
		calls++
		if _, ok := ctx.Deadline(); !ok {
			t.Error("cycle context has no deadline")
		}
		return errors.New("upstream down")
	}

	// A failing cycle is logged and swallowed; nothing propagates to the
	// caller and the next cycle still runs.
	s.runCycle("node ingestion", failing)
	s.runCycle("node ingestion", func(ctx context.Context) error {
		calls++
		return nil
	})

	if calls != 2 {
		t.Fatalf("cycles executed = %d, want 2", calls)
	}
}

func TestStartRegistersBothLoops(t *testing.T) {
	s := New(nil, 5*time.Minute, 10*time.Minute, time.UTC)

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	if got := s.scheduler.Len(); got != 2 {
		t.Fatalf("scheduled jobs = %d, want 2", got)
	}
}

func TestMinutesClampsToDefault(t *testing.T) {
	cases := []struct {
		name string
		d    time.Duration
		def  int
		want int
	}{
		{"configured", 7 * time.Minute, 5, 7},
		{"zero", 0, 5, 5},
		{"negative", -time.Minute, 10, 10},
		{"sub-minute", 30 * time.Second, 5, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := minutes(tc.d, tc.def); got != tc.want {
				t.Fatalf("minutes(%v, %d) = %d, want %d", tc.d, tc.def, got, tc.want)
			}
		})
	}
}
