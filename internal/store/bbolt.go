package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

var (
	eventsBucket   = []byte("events")
	contactsBucket = []byte("contacts")
	invitesBucket  = []byte("invites")
	requestsBucket = []byte("guest-list-requests")
)

// BoltStore holds every collection in a single bbolt file: one bucket per
// collection, JSON documents keyed by ID. RSVP collections get their own
// buckets, created on first write, named by the event's CollectionName.
type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db at %s: %w", path, err)
	}

	// Reason: static buckets must exist before any read/write operations
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{eventsBucket, contactsBucket, invitesBucket, requestsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func newID() string {
	return uuid.NewString()
}

func putJSON(b *bolt.Bucket, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", id, err)
	}
	if err := b.Put([]byte(id), data); err != nil {
		return fmt.Errorf("writing %s: %w", id, err)
	}
	return nil
}

// --- events ---

func (s *BoltStore) CreateEvent(_ context.Context, ev *Event) error {
	if ev.ID == "" {
		ev.ID = newID()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(eventsBucket), ev.ID, ev)
	})
}

func (s *BoltStore) UpdateEvent(_ context.Context, ev *Event) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(eventsBucket)
		if b.Get([]byte(ev.ID)) == nil {
			return fmt.Errorf("event %s not found", ev.ID)
		}
		return putJSON(b, ev.ID, ev)
	})
}

func (s *BoltStore) GetEvent(_ context.Context, id string) (*Event, error) {
	var ev *Event
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(eventsBucket).Get([]byte(id))
		if data == nil {
			return nil
		}
		var e Event
		if err := json.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("unmarshaling event %s: %w", id, err)
		}
		ev = &e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *BoltStore) ListEvents(_ context.Context) ([]Event, error) {
	var events []Event
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(eventsBucket).ForEach(func(k, v []byte) error {
			var e Event
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("unmarshaling event %s: %w", string(k), err)
			}
			events = append(events, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	return events, nil
}

func (s *BoltStore) ActiveEvent(ctx context.Context) (*Event, error) {
	events, err := s.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	for i := range events {
		if events[i].IsActive {
			return &events[i], nil
		}
	}
	return nil, nil
}

func (s *BoltStore) DeactivateAll(_ context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(eventsBucket)
		var active []Event
		err := b.ForEach(func(k, v []byte) error {
			var e Event
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("unmarshaling event %s: %w", string(k), err)
			}
			if e.IsActive {
				active = append(active, e)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for i := range active {
			active[i].IsActive = false
			if err := putJSON(b, active[i].ID, &active[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) DeleteEvent(ctx context.Context, id string) error {
	ev, err := s.GetEvent(ctx, id)
	if err != nil {
		return err
	}
	if ev == nil {
		return fmt.Errorf("event %s not found", id)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(eventsBucket).Delete([]byte(id)); err != nil {
			return fmt.Errorf("deleting event %s: %w", id, err)
		}
		// Cascade: the event's RSVP collection goes with it.
		if ev.CollectionName != "" && tx.Bucket([]byte(ev.CollectionName)) != nil {
			if err := tx.DeleteBucket([]byte(ev.CollectionName)); err != nil {
				return fmt.Errorf("dropping collection %s: %w", ev.CollectionName, err)
			}
		}
		return nil
	})
}

// --- rsvps ---

func (s *BoltStore) AddRSVP(_ context.Context, collection string, r *RSVP) error {
	if r.ID == "" {
		r.ID = newID()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return fmt.Errorf("creating collection %s: %w", collection, err)
		}
		return putJSON(b, r.ID, r)
	})
}

func (s *BoltStore) FindRSVPByPhone(_ context.Context, collection, phoneNumber string) (*RSVP, error) {
	var found *RSVP
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			if found != nil {
				return nil
			}
			var r RSVP
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshaling rsvp %s: %w", string(k), err)
			}
			if r.Phone == phoneNumber {
				found = &r
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *BoltStore) ListRSVPs(_ context.Context, collection string) ([]RSVP, error) {
	var rsvps []RSVP
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var r RSVP
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshaling rsvp %s: %w", string(k), err)
			}
			rsvps = append(rsvps, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(rsvps, func(i, j int) bool {
		return rsvps[i].Timestamp.After(rsvps[j].Timestamp)
	})
	return rsvps, nil
}

func (s *BoltStore) ListRSVPsAttending(ctx context.Context, collection string, attending []string) ([]RSVP, error) {
	all, err := s.ListRSVPs(ctx, collection)
	if err != nil {
		return nil, err
	}
	var out []RSVP
	for _, r := range all {
		for _, a := range attending {
			if r.Attending == a {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

func (s *BoltStore) DeleteRSVP(_ context.Context, collection, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return fmt.Errorf("collection %s not found", collection)
		}
		return b.Delete([]byte(id))
	})
}

func (s *BoltStore) DeleteAllRSVPs(_ context.Context, collection string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(collection)) == nil {
			return nil
		}
		if err := tx.DeleteBucket([]byte(collection)); err != nil {
			return fmt.Errorf("dropping collection %s: %w", collection, err)
		}
		return nil
	})
}

// --- invites ---

func (s *BoltStore) LogInvite(_ context.Context, inv *Invite) error {
	if inv.ID == "" {
		inv.ID = newID()
	}
	if inv.Timestamp.IsZero() {
		inv.Timestamp = time.Now().UTC()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(invitesBucket), inv.ID, inv)
	})
}

func (s *BoltStore) FindInvite(_ context.Context, phoneNumber, eventName string, since time.Time) (*Invite, error) {
	var found *Invite
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(invitesBucket).ForEach(func(k, v []byte) error {
			if found != nil {
				return nil
			}
			var inv Invite
			if err := json.Unmarshal(v, &inv); err != nil {
				return fmt.Errorf("unmarshaling invite %s: %w", string(k), err)
			}
			if inv.Phone == phoneNumber && inv.EventName == eventName && inv.Timestamp.After(since) {
				found = &inv
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *BoltStore) ListInvitesByEvent(_ context.Context, eventName string, since time.Time) ([]Invite, error) {
	var invites []Invite
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(invitesBucket).ForEach(func(k, v []byte) error {
			var inv Invite
			if err := json.Unmarshal(v, &inv); err != nil {
				return fmt.Errorf("unmarshaling invite %s: %w", string(k), err)
			}
			if inv.EventName == eventName && inv.Timestamp.After(since) {
				invites = append(invites, inv)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(invites, func(i, j int) bool {
		return invites[i].Timestamp.After(invites[j].Timestamp)
	})
	return invites, nil
}

// --- contacts ---

func (s *BoltStore) AddContact(_ context.Context, c *Contact) error {
	if c.ID == "" {
		c.ID = newID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(contactsBucket), c.ID, c)
	})
}

func (s *BoltStore) ListContacts(_ context.Context) ([]Contact, error) {
	var contacts []Contact
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(contactsBucket).ForEach(func(k, v []byte) error {
			var c Contact
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("unmarshaling contact %s: %w", string(k), err)
			}
			contacts = append(contacts, c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].CreatedAt.After(contacts[j].CreatedAt)
	})
	return contacts, nil
}

func (s *BoltStore) FindContactByPhone(_ context.Context, phoneNumber string) (*Contact, error) {
	var found *Contact
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(contactsBucket).ForEach(func(k, v []byte) error {
			if found != nil {
				return nil
			}
			var c Contact
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("unmarshaling contact %s: %w", string(k), err)
			}
			if c.Phone == phoneNumber {
				found = &c
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *BoltStore) DeleteContact(_ context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(contactsBucket).Delete([]byte(id))
	})
}

// --- guest-list requests ---

func (s *BoltStore) AddRequest(_ context.Context, r *GuestListRequest) error {
	if r.ID == "" {
		r.ID = newID()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(requestsBucket), r.ID, r)
	})
}

func (s *BoltStore) ListRequests(_ context.Context) ([]GuestListRequest, error) {
	var requests []GuestListRequest
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(requestsBucket).ForEach(func(k, v []byte) error {
			var r GuestListRequest
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshaling request %s: %w", string(k), err)
			}
			requests = append(requests, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].Timestamp.After(requests[j].Timestamp)
	})
	return requests, nil
}

func (s *BoltStore) DeleteRequest(_ context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(requestsBucket).Delete([]byte(id))
	})
}

// SeedEvents inserts events that do not already exist, matching by name.
func (s *BoltStore) SeedEvents(ctx context.Context, events []Event) error {
	existing, err := s.ListEvents(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, e := range existing {
		known[e.Name] = true
	}
	for i := range events {
		if known[events[i].Name] {
			log.WithField("name", events[i].Name).Debug("seed: event already exists, skipping")
			continue
		}
		if events[i].CollectionName == "" {
			events[i].CollectionName = CollectionNameFor(events[i].Name)
		}
		if err := s.CreateEvent(ctx, &events[i]); err != nil {
			return fmt.Errorf("seeding event %s: %w", events[i].Name, err)
		}
		log.WithField("name", events[i].Name).Info("seeded event")
	}
	return nil
}

// SeedContacts inserts contacts that do not already exist, matching by phone.
func (s *BoltStore) SeedContacts(ctx context.Context, contacts []Contact) error {
	for i := range contacts {
		existing, err := s.FindContactByPhone(ctx, contacts[i].Phone)
		if err != nil {
			return err
		}
		if existing != nil {
			log.WithField("phone", contacts[i].Phone).Debug("seed: contact already exists, skipping")
			continue
		}
		if err := s.AddContact(ctx, &contacts[i]); err != nil {
			return fmt.Errorf("seeding contact %s: %w", contacts[i].Phone, err)
		}
		log.WithField("phone", contacts[i].Phone).Info("seeded contact")
	}
	return nil
}
