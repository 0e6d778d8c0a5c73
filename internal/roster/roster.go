// Package roster builds the annotated contact list the admin panel works
// from: every contact paired with their resolved invite/RSVP status for the
// selected event.
package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rtdickson/event-site/internal/phone"
	"github.com/rtdickson/event-site/internal/status"
	"github.com/rtdickson/event-site/internal/store"
)

// ErrBusy is returned when a population is already in flight. The caller
// should drop the request rather than queue it.
var ErrBusy = errors.New("roster population already in flight")

// ErrStale is returned when the selected event changed while resolutions
// were in flight; the computed rows are discarded, never delivered.
var ErrStale = errors.New("roster superseded by a newer event selection")

// Row is one contact with their resolved status.
type Row struct {
	Contact store.Contact `json:"contact"`
	Status  status.Status `json:"status"`
}

// AttendeeRow is one Yes/Maybe RSVP with its display name backfilled from
// the contact list.
type AttendeeRow struct {
	RSVP        store.RSVP `json:"rsvp"`
	DisplayName string     `json:"displayName"`
}

// RowFunc is an optional per-row hook invoked as each row settles, in no
// particular order. Useful for streaming UIs; the returned slice stays in
// original contact order regardless.
type RowFunc func(Row)

// StatusResolver resolves one contact's status for one event.
type StatusResolver interface {
	Resolve(ctx context.Context, phoneNumber, collection, eventName string) status.Status
}

// ContactSource is the slice of the contact store the presenter reads.
type ContactSource interface {
	ListContacts(ctx context.Context) ([]store.Contact, error)
}

// RSVPSource lists respondents for the attendee-only roster mode.
type RSVPSource interface {
	ListRSVPsAttending(ctx context.Context, collection string, attending []string) ([]store.RSVP, error)
}

type state int

const (
	idle state = iota
	inFlight
)

// Presenter populates contact rosters. At most one population runs at a
// time; overlapping calls return ErrBusy. Switching events while a
// population is in flight makes the in-flight result stale, and stale
// results are discarded instead of being delivered over newer state.
type Presenter struct {
	contacts ContactSource
	rsvps    RSVPSource
	resolver StatusResolver
	onRow    RowFunc

	mu       sync.Mutex
	state    state
	selected string // event id of the most recent population request
}

// Option configures a Presenter.
type Option func(*Presenter)

// WithRowFunc installs a per-row callback. Without it rows are only
// returned in bulk.
func WithRowFunc(fn RowFunc) Option {
	return func(p *Presenter) { p.onRow = fn }
}

func NewPresenter(contacts ContactSource, rsvps RSVPSource, resolver StatusResolver, opts ...Option) *Presenter {
	p := &Presenter{
		contacts: contacts,
		rsvps:    rsvps,
		resolver: resolver,
		onRow:    func(Row) {},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Populate resolves the status of every contact for ev, concurrently, and
// returns the rows in the contacts' original order. A contact whose
// resolution fails carries an Unknown status; the roster never fails on a
// single bad resolution.
func (p *Presenter) Populate(ctx context.Context, ev store.Event) ([]Row, error) {
	p.mu.Lock()
	if p.state == inFlight {
		p.mu.Unlock()
		return nil, ErrBusy
	}
	p.state = inFlight
	p.selected = ev.ID
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.state = idle
		p.mu.Unlock()
	}()

	contacts, err := p.contacts.ListContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing contacts: %w", err)
	}

	// Fire all resolutions at once and join the results back by index, so
	// completion order has no bearing on row order.
	rows := make([]Row, len(contacts))
	g, gctx := errgroup.WithContext(ctx)
	for i := range contacts {
		i := i
		g.Go(func() error {
			st := p.resolver.Resolve(gctx, contacts[i].Phone, ev.CollectionName, ev.Name)
			rows[i] = Row{Contact: contacts[i], Status: st}
			p.onRow(rows[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// A Select call that arrived while we were resolving wins; these rows
	// describe an event the caller is no longer looking at.
	p.mu.Lock()
	stale := p.selected != ev.ID
	p.mu.Unlock()
	if stale {
		log.WithField("event", ev.Name).Debug("discarding stale roster")
		return nil, ErrStale
	}

	return rows, nil
}

// Select records that the admin switched to viewing eventID. Any population
// in flight for a different event becomes stale.
func (p *Presenter) Select(eventID string) {
	p.mu.Lock()
	p.selected = eventID
	p.mu.Unlock()
}

// Attendees returns the Yes/Maybe respondents of ev with display names
// backfilled from the contact list, for follow-up messaging.
func (p *Presenter) Attendees(ctx context.Context, ev store.Event) ([]AttendeeRow, error) {
	rsvps, err := p.rsvps.ListRSVPsAttending(ctx, ev.CollectionName, []string{store.AttendingYes, store.AttendingMaybe})
	if err != nil {
		return nil, fmt.Errorf("listing attendees: %w", err)
	}

	contacts, err := p.contacts.ListContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing contacts: %w", err)
	}
	names := contactNameIndex(contacts)

	rows := make([]AttendeeRow, len(rsvps))
	for i, r := range rsvps {
		rows[i] = AttendeeRow{RSVP: r, DisplayName: displayName(names, r)}
	}
	return rows, nil
}

// NameBackfill builds a display-name lookup over contacts for callers that
// annotate RSVP listings outside a roster population.
func NameBackfill(contacts []store.Contact) func(store.RSVP) string {
	names := contactNameIndex(contacts)
	return func(r store.RSVP) string { return displayName(names, r) }
}

// contactNameIndex maps both the stored and the normalized form of each
// contact's phone to their name.
func contactNameIndex(contacts []store.Contact) map[string]string {
	names := make(map[string]string, len(contacts)*2)
	for _, c := range contacts {
		if c.Phone == "" {
			continue
		}
		names[c.Phone] = c.Name
		if n := phone.Normalize(c.Phone); n != "" && n != c.Phone {
			names[n] = c.Name
		}
	}
	return names
}

// displayName prefers the contact list's name when the RSVP's own name is
// missing or a placeholder, matching exactly first, then by normalized phone.
func displayName(names map[string]string, r store.RSVP) string {
	placeholder := strings.TrimSpace(r.Name) == "" ||
		strings.Contains(strings.ToLower(r.Name), "unknown")
	if !placeholder || r.Phone == "" {
		return r.Name
	}
	if name, ok := names[r.Phone]; ok {
		return name
	}
	if n := phone.Normalize(r.Phone); n != "" {
		if name, ok := names[n]; ok {
			return name
		}
	}
	return r.Name
}
