package main

import (
	"errors"
	"testing"
	"time"

	"github.com/example/service-matching/internal/models"
)

// flakyLog implements storage.EventLog and fails a fixed number of
// times before succeeding.
type flakyLog struct {
	fail  int
	calls int
	got   []models.EngagementEvent
}

func (f *flakyLog) Append(ev models.EngagementEvent) error {
	f.calls++
	if f.calls <= f.fail {
		return errors.New("append fail")
	}
	f.got = append(f.got, ev)
	return nil
}

func TestAppendWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &flakyLog{fail: 2}
	ev := models.EngagementEvent{JobID: "j1", SeekerID: "s1", ResponderID: "r1", State: models.StateStarted}
	start := time.Now()
	if err := appendWithRetry(f, ev, 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", f.calls)
	}
	if len(f.got) != 1 || f.got[0].JobID != "j1" {
		t.Fatalf("expected event archived, got %+v", f.got)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
}

func TestAppendWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &flakyLog{fail: 5}
	ev := models.EngagementEvent{JobID: "j1", SeekerID: "s1"}
	if err := appendWithRetry(f, ev, 3, 5*time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
	if f.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", f.calls)
	}
}
