package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/rtdickson/event-site/internal/store"
)

type SeedData struct {
	Events   []store.Event   `json:"events"`
	Contacts []store.Contact `json:"contacts"`
}

// LoadFromFile reads seed data from a JSON file and populates the store.
// Seeding is idempotent: events already present by name and contacts already
// present by phone are skipped. Returns nil if path is empty (seeding
// disabled).
func LoadFromFile(ctx context.Context, path string, s *store.BoltStore) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading seed file %s: %w", path, err)
	}

	var sd SeedData
	if err := json.Unmarshal(data, &sd); err != nil {
		return fmt.Errorf("parsing seed file %s: %w", path, err)
	}

	log.WithField("events", len(sd.Events)).WithField("contacts", len(sd.Contacts)).Info("seeding from file")

	if err := s.SeedEvents(ctx, sd.Events); err != nil {
		return fmt.Errorf("seeding events: %w", err)
	}
	if err := s.SeedContacts(ctx, sd.Contacts); err != nil {
		return fmt.Errorf("seeding contacts: %w", err)
	}
	return nil
}
