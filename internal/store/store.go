package store

import (
	"context"
	"time"
)

// Attending values accepted on an RSVP.
const (
	AttendingYes   = "Yes"
	AttendingNo    = "No"
	AttendingMaybe = "Maybe"
)

// ValidAttending reports whether v is one of the accepted attending values.
func ValidAttending(v string) bool {
	return v == AttendingYes || v == AttendingNo || v == AttendingMaybe
}

// Contact is a person on the invite list. Phone uniqueness is not enforced;
// the same number may appear more than once in differing formats.
type Contact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"createdAt"`
}

// Event is a gathering. CollectionName is derived from Name once at creation
// and never recomputed: it is the durable link to the event's RSVP
// collection even if the event is later renamed.
type Event struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Date           string    `json:"date"`
	Description    string    `json:"description"`
	Menu           []string  `json:"menu"`
	WhatToBring    string    `json:"whatToBring"`
	Schedule       []string  `json:"schedule"`
	CollectionName string    `json:"collectionName"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
}

// RSVP is one response, stored in the per-event collection named by the
// event's CollectionName. Guests counts additional attendees beyond the
// respondent; it is 0 for a "No".
type RSVP struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Attending string    `json:"attending"`
	Guests    int       `json:"guests"`
	Notes     string    `json:"notes"`
	Timestamp time.Time `json:"timestamp"`
}

// Invite is a log entry for one outbound invite send. Purely advisory: it
// never gates whether someone can be invited again.
type Invite struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	EventName string    `json:"eventName"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Method    string    `json:"method"`
}

// GuestListRequest is a guest asking to receive the guest list.
type GuestListRequest struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	Timestamp time.Time `json:"timestamp"`
}

// EventStore manages the events collection.
type EventStore interface {
	CreateEvent(ctx context.Context, ev *Event) error
	UpdateEvent(ctx context.Context, ev *Event) error
	GetEvent(ctx context.Context, id string) (*Event, error)
	// ListEvents returns all events ordered by creation time, newest first.
	ListEvents(ctx context.Context) ([]Event, error)
	// ActiveEvent returns the single active event, or nil if none is active.
	ActiveEvent(ctx context.Context) (*Event, error)
	// DeactivateAll clears the active flag on every event. Run before
	// activating an event so at most one ends up active.
	DeactivateAll(ctx context.Context) error
	// DeleteEvent removes the event and drops its RSVP collection.
	DeleteEvent(ctx context.Context, id string) error
}

// RSVPStore manages the per-event RSVP collections.
type RSVPStore interface {
	AddRSVP(ctx context.Context, collection string, r *RSVP) error
	// FindRSVPByPhone is an exact (byte-for-byte) phone equality lookup.
	FindRSVPByPhone(ctx context.Context, collection, phoneNumber string) (*RSVP, error)
	// ListRSVPs returns every RSVP in the collection, newest first.
	ListRSVPs(ctx context.Context, collection string) ([]RSVP, error)
	// ListRSVPsAttending filters on the attending field (equality, any-of).
	ListRSVPsAttending(ctx context.Context, collection string, attending []string) ([]RSVP, error)
	DeleteRSVP(ctx context.Context, collection, id string) error
	DeleteAllRSVPs(ctx context.Context, collection string) error
}

// InviteStore manages the outbound invite log.
type InviteStore interface {
	LogInvite(ctx context.Context, inv *Invite) error
	// FindInvite is an exact phone match scoped to eventName with timestamp
	// after since.
	FindInvite(ctx context.Context, phoneNumber, eventName string, since time.Time) (*Invite, error)
	// ListInvitesByEvent returns invites for eventName with timestamp after
	// since, newest first.
	ListInvitesByEvent(ctx context.Context, eventName string, since time.Time) ([]Invite, error)
}

// ContactStore manages the contacts collection.
type ContactStore interface {
	AddContact(ctx context.Context, c *Contact) error
	// ListContacts returns all contacts, newest first.
	ListContacts(ctx context.Context) ([]Contact, error)
	// FindContactByPhone is an exact phone equality lookup.
	FindContactByPhone(ctx context.Context, phoneNumber string) (*Contact, error)
	DeleteContact(ctx context.Context, id string) error
}

// RequestStore manages guest-list requests.
type RequestStore interface {
	AddRequest(ctx context.Context, r *GuestListRequest) error
	ListRequests(ctx context.Context) ([]GuestListRequest, error)
	DeleteRequest(ctx context.Context, id string) error
}
