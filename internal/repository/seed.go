package repository

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/backy/backend/internal/model"
)

// Seed is the on-disk shape of the sites and forms preloaded into a MemoryStore.
type Seed struct {
	Sites []model.Site `json:"sites"`
	Forms []model.Form `json:"forms"`
}

// LoadSeed decodes a Seed from r and stores every site and form. Forms must
// reference a site declared in the same seed.
func (m *MemoryStore) LoadSeed(r io.Reader) error {
	var seed Seed
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&seed); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}

	now := m.now().UTC()
	sites := make(map[string]bool, len(seed.Sites))
	for _, s := range seed.Sites {
		if s.ID == "" {
			return fmt.Errorf("seed: site without id")
		}
		stamp(&s.CreatedAt, &s.UpdatedAt, now)
		m.PutSite(s)
		sites[s.ID] = true
	}
	for _, f := range seed.Forms {
		if f.ID == "" || !sites[f.SiteID] {
			return fmt.Errorf("seed: form %q references unknown site %q", f.ID, f.SiteID)
		}
		if f.ModerationMode == "" {
			f.ModerationMode = model.ModerationManual
		}
		stamp(&f.CreatedAt, &f.UpdatedAt, now)
		m.PutForm(f)
	}
	return nil
}

// LoadSeedFile opens path and calls LoadSeed.
func (m *MemoryStore) LoadSeedFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return m.LoadSeed(f)
}

func stamp(created, updated *time.Time, now time.Time) {
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = *created
	}
}
