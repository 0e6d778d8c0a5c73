// Package status reconciles a contact's invite/RSVP state for an event.
// Contacts, invites and RSVPs are linked only by phone-number strings that
// arrive in inconsistent formats, so every lookup runs in two tiers: a cheap
// exact-equality query first, then a full-scan comparison of normalized
// numbers when the exact query misses.
package status

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/rtdickson/event-site/internal/phone"
	"github.com/rtdickson/event-site/internal/store"
)

// Kind is the resolved invitation state of one contact for one event.
type Kind string

const (
	// Responded: an RSVP exists for this phone in the event's collection.
	Responded Kind = "responded"
	// InvitedNoResponse: an invite was sent within the staleness window but
	// no RSVP has arrived.
	InvitedNoResponse Kind = "invited_no_response"
	// NotInvited: no RSVP and no recent invite.
	NotInvited Kind = "not_invited"
	// Unknown: resolution failed (store error or timeout). Rendered like
	// NotInvited but kept distinct for diagnostics.
	Unknown Kind = "unknown"
)

// Status is the result of one resolution.
type Status struct {
	Kind         Kind      `json:"status"`
	Attending    string    `json:"attending,omitempty"`
	LastActivity time.Time `json:"lastActivity,omitempty"`
}

// RSVPSource is the slice of the RSVP store the resolver reads.
type RSVPSource interface {
	FindRSVPByPhone(ctx context.Context, collection, phoneNumber string) (*store.RSVP, error)
	ListRSVPs(ctx context.Context, collection string) ([]store.RSVP, error)
}

// InviteSource is the slice of the invite log the resolver reads.
type InviteSource interface {
	FindInvite(ctx context.Context, phoneNumber, eventName string, since time.Time) (*store.Invite, error)
	ListInvitesByEvent(ctx context.Context, eventName string, since time.Time) ([]store.Invite, error)
}

// An invite older than this no longer counts as outstanding.
const defaultInviteTTL = 7 * 24 * time.Hour

// No query gets to hang a contact's resolution indefinitely; past the
// deadline the contact resolves to Unknown.
const defaultTimeout = 5 * time.Second

type Resolver struct {
	rsvps     RSVPSource
	invites   InviteSource
	inviteTTL time.Duration
	timeout   time.Duration
	now       func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithInviteTTL overrides how long a sent invite counts as outstanding.
func WithInviteTTL(d time.Duration) Option {
	return func(r *Resolver) { r.inviteTTL = d }
}

// WithTimeout overrides the per-resolution deadline.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

// WithClock overrides the time source. Tests use this to age invites.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func NewResolver(rsvps RSVPSource, invites InviteSource, opts ...Option) *Resolver {
	r := &Resolver{
		rsvps:     rsvps,
		invites:   invites,
		inviteTTL: defaultInviteTTL,
		timeout:   defaultTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve determines the status of phoneNumber for the event identified by
// its RSVP collection and name. Priority order, first match wins:
//
//  1. RSVP, exact phone match in the event's collection
//  2. RSVP, normalized phone match (full scan)
//  3. invite, exact match within the staleness window
//  4. invite, normalized match within the staleness window (full scan)
//  5. NotInvited
//
// Read-only; any store failure or deadline maps to Unknown without retrying.
func (r *Resolver) Resolve(ctx context.Context, phoneNumber, collection, eventName string) Status {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rsvp, err := r.matchRSVP(ctx, collection, phoneNumber)
	if err != nil {
		log.WithError(err).WithField("phone", phoneNumber).Warn("rsvp lookup failed")
		return Status{Kind: Unknown}
	}
	if rsvp != nil {
		return Status{Kind: Responded, Attending: rsvp.Attending, LastActivity: rsvp.Timestamp}
	}

	inv, err := r.matchInvite(ctx, phoneNumber, eventName)
	if err != nil {
		log.WithError(err).WithField("phone", phoneNumber).Warn("invite lookup failed")
		return Status{Kind: Unknown}
	}
	if inv != nil {
		return Status{Kind: InvitedNoResponse, LastActivity: inv.Timestamp}
	}

	return Status{Kind: NotInvited}
}

// matchRSVP returns the first RSVP for phoneNumber, trying the exact query
// before the normalized scan. Both tiers come back through the same return
// shape, which is what the rest of Resolve branches on.
func (r *Resolver) matchRSVP(ctx context.Context, collection, phoneNumber string) (*store.RSVP, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	exact, err := r.rsvps.FindRSVPByPhone(ctx, collection, phoneNumber)
	if err != nil {
		return nil, err
	}
	if exact != nil {
		return exact, nil
	}

	normalized := phone.Normalize(phoneNumber)
	if normalized == "" {
		return nil, nil
	}

	// Sources backed by bbolt never look at ctx themselves, so the deadline
	// is re-checked between tiers.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	all, err := r.rsvps.ListRSVPs(ctx, collection)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if phone.Normalize(all[i].Phone) == normalized {
			return &all[i], nil
		}
	}
	return nil, nil
}

func (r *Resolver) matchInvite(ctx context.Context, phoneNumber, eventName string) (*store.Invite, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	since := r.now().Add(-r.inviteTTL)

	exact, err := r.invites.FindInvite(ctx, phoneNumber, eventName, since)
	if err != nil {
		return nil, err
	}
	if exact != nil {
		return exact, nil
	}

	normalized := phone.Normalize(phoneNumber)
	if normalized == "" {
		return nil, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	recent, err := r.invites.ListInvitesByEvent(ctx, eventName, since)
	if err != nil {
		return nil, err
	}
	for i := range recent {
		if phone.Normalize(recent[i].Phone) == normalized {
			return &recent[i], nil
		}
	}
	return nil, nil
}
