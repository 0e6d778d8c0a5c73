package status

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rtdickson/event-site/internal/store"
)

const (
	testCollection = "rsvps-fall-picnic"
	testEvent      = "Fall Picnic"
)

func newTestStore(t *testing.T) *store.BoltStore {
	t.Helper()
	s, err := store.NewBoltStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestResolve_RespondedExactMatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ts := time.Now().Add(-time.Hour)
	err := s.AddRSVP(ctx, testCollection, &store.RSVP{
		Name: "Sam", Phone: "6135550147", Attending: store.AttendingYes, Timestamp: ts,
	})
	if err != nil {
		t.Fatal(err)
	}

	r := NewResolver(s, s)
	got := r.Resolve(ctx, "6135550147", testCollection, testEvent)

	if got.Kind != Responded {
		t.Fatalf("expected responded, got %s", got.Kind)
	}
	if got.Attending != store.AttendingYes {
		t.Fatalf("expected Yes, got %s", got.Attending)
	}
	if !got.LastActivity.Equal(ts.UTC()) && !got.LastActivity.Equal(ts) {
		t.Fatalf("expected lastActivity %v, got %v", ts, got.LastActivity)
	}
}

func TestResolve_RespondedNormalizedFallback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// RSVP stored with bare digits, lookup with +1 and separators: the
	// exact query misses, the normalized scan must hit.
	err := s.AddRSVP(ctx, testCollection, &store.RSVP{
		Name: "Sam", Phone: "6135550147", Attending: store.AttendingMaybe,
	})
	if err != nil {
		t.Fatal(err)
	}

	r := NewResolver(s, s)
	got := r.Resolve(ctx, "+16135550147", testCollection, testEvent)

	if got.Kind != Responded {
		t.Fatalf("expected responded via normalized fallback, got %s", got.Kind)
	}
	if got.Attending != store.AttendingMaybe {
		t.Fatalf("expected Maybe, got %s", got.Attending)
	}
}

func TestResolve_RespondedFormattedRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.AddRSVP(ctx, testCollection, &store.RSVP{
		Name: "Sam", Phone: "+1 613-555-0147", Attending: store.AttendingMaybe, Guests: 2,
	})
	if err != nil {
		t.Fatal(err)
	}

	r := NewResolver(s, s)
	got := r.Resolve(ctx, "6135550147", testCollection, testEvent)

	if got.Kind != Responded {
		t.Fatalf("expected responded, got %s", got.Kind)
	}
}

func TestResolve_RSVPWinsOverInvite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.LogInvite(ctx, &store.Invite{Phone: "6135550147", EventName: testEvent}); err != nil {
		t.Fatal(err)
	}
	err := s.AddRSVP(ctx, testCollection, &store.RSVP{
		Name: "Sam", Phone: "6135550147", Attending: store.AttendingNo,
	})
	if err != nil {
		t.Fatal(err)
	}

	r := NewResolver(s, s)
	got := r.Resolve(ctx, "6135550147", testCollection, testEvent)

	if got.Kind != Responded {
		t.Fatalf("expected responded to take priority, got %s", got.Kind)
	}
}

func TestResolve_InvitedNoResponse(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.LogInvite(ctx, &store.Invite{
		Phone: "+16135550147", EventName: testEvent,
		Timestamp: time.Now().AddDate(0, 0, -6),
	})
	if err != nil {
		t.Fatal(err)
	}

	r := NewResolver(s, s)
	got := r.Resolve(ctx, "+16135550147", testCollection, testEvent)

	if got.Kind != InvitedNoResponse {
		t.Fatalf("expected invited_no_response, got %s", got.Kind)
	}
	if got.LastActivity.IsZero() {
		t.Fatal("expected lastActivity to be set")
	}
}

func TestResolve_InvitedNormalizedFallback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.LogInvite(ctx, &store.Invite{
		Phone: "+16135550147", EventName: testEvent,
		Timestamp: time.Now().AddDate(0, 0, -1),
	})
	if err != nil {
		t.Fatal(err)
	}

	r := NewResolver(s, s)
	got := r.Resolve(ctx, "(613) 555-0147", testCollection, testEvent)

	if got.Kind != InvitedNoResponse {
		t.Fatalf("expected invited_no_response via normalized fallback, got %s", got.Kind)
	}
}

func TestResolve_StaleInviteIgnored(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Sent 6 days ago: outstanding. Aged to 8 days: stale.
	sent := time.Now().AddDate(0, 0, -6)
	err := s.LogInvite(ctx, &store.Invite{
		Phone: "+16135550147", EventName: testEvent, Timestamp: sent,
	})
	if err != nil {
		t.Fatal(err)
	}

	r := NewResolver(s, s)
	got := r.Resolve(ctx, "+16135550147", testCollection, testEvent)
	if got.Kind != InvitedNoResponse {
		t.Fatalf("expected invited_no_response at day 6, got %s", got.Kind)
	}

	// Same invite viewed from two days later is past the 7-day window.
	aged := NewResolver(s, s, WithClock(func() time.Time { return time.Now().AddDate(0, 0, 2) }))
	got = aged.Resolve(ctx, "+16135550147", testCollection, testEvent)
	if got.Kind != NotInvited {
		t.Fatalf("expected not_invited at day 8, got %s", got.Kind)
	}
}

func TestResolve_NotInvited(t *testing.T) {
	s := newTestStore(t)

	r := NewResolver(s, s)
	got := r.Resolve(context.Background(), "6135550147", testCollection, testEvent)

	if got.Kind != NotInvited {
		t.Fatalf("expected not_invited, got %s", got.Kind)
	}
}

func TestResolve_EmptyPhoneSkipsScans(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.AddRSVP(ctx, testCollection, &store.RSVP{Name: "Sam", Phone: "", Attending: store.AttendingYes})
	if err != nil {
		t.Fatal(err)
	}

	r := NewResolver(s, s)
	// Exact match on the empty string still applies; step 2's normalized
	// scan is skipped because normalization yields "".
	got := r.Resolve(ctx, "", testCollection, testEvent)
	if got.Kind != Responded {
		t.Fatalf("expected responded on exact empty match, got %s", got.Kind)
	}

	got = r.Resolve(ctx, "---", testCollection, testEvent)
	if got.Kind != NotInvited {
		t.Fatalf("expected not_invited for digit-free phone, got %s", got.Kind)
	}
}

// failingSource errors on every call, standing in for a broken datastore.
type failingSource struct{}

func (failingSource) FindRSVPByPhone(context.Context, string, string) (*store.RSVP, error) {
	return nil, context.DeadlineExceeded
}
func (failingSource) ListRSVPs(context.Context, string) ([]store.RSVP, error) {
	return nil, context.DeadlineExceeded
}
func (failingSource) FindInvite(context.Context, string, string, time.Time) (*store.Invite, error) {
	return nil, context.DeadlineExceeded
}
func (failingSource) ListInvitesByEvent(context.Context, string, time.Time) ([]store.Invite, error) {
	return nil, context.DeadlineExceeded
}

func TestResolve_StoreErrorIsUnknown(t *testing.T) {
	r := NewResolver(failingSource{}, failingSource{})
	got := r.Resolve(context.Background(), "6135550147", testCollection, testEvent)
	if got.Kind != Unknown {
		t.Fatalf("expected unknown on store failure, got %s", got.Kind)
	}
}

// hangingSource blocks until the context is cancelled.
type hangingSource struct{}

func (hangingSource) FindRSVPByPhone(ctx context.Context, _, _ string) (*store.RSVP, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (hangingSource) ListRSVPs(ctx context.Context, _ string) ([]store.RSVP, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (hangingSource) FindInvite(ctx context.Context, _, _ string, _ time.Time) (*store.Invite, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (hangingSource) ListInvitesByEvent(ctx context.Context, _ string, _ time.Time) ([]store.Invite, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestResolve_TimeoutIsUnknown(t *testing.T) {
	r := NewResolver(hangingSource{}, hangingSource{}, WithTimeout(20*time.Millisecond))

	done := make(chan Status, 1)
	go func() {
		done <- r.Resolve(context.Background(), "6135550147", testCollection, testEvent)
	}()

	select {
	case got := <-done:
		if got.Kind != Unknown {
			t.Fatalf("expected unknown on timeout, got %s", got.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("resolution did not respect its deadline")
	}
}

func TestResolve_ExpiredContextWithCtxBlindSource(t *testing.T) {
	s := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The bbolt store never consults ctx; the resolver's own between-tier
	// checks must still turn an exceeded deadline into Unknown.
	r := NewResolver(s, s)
	got := r.Resolve(ctx, "6135550147", testCollection, testEvent)
	if got.Kind != Unknown {
		t.Fatalf("expected unknown for expired context, got %s", got.Kind)
	}
}
