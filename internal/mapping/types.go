package mapping

import (
	"context"
	"encoding/json"
	"slices"
	"time"
)

// Mapping links the title a consumer searches for to the title the indexer
// knows the show by.
type Mapping struct {
	CanonicalTitle string   `json:"canonicalTitle"`
	SourceTitle    string   `json:"sourceTitle"`
	Aliases        []string `json:"aliases"`
	CatalogID      *int64   `json:"catalogId,omitempty"`
}

// Matches reports whether title is the canonical title or one of the aliases.
// Comparison is exact.
func (m Mapping) Matches(title string) bool {
	return m.CanonicalTitle == title || slices.Contains(m.Aliases, title)
}

func (m Mapping) HasCatalogID() bool {
	return m.CatalogID != nil
}

// Clone returns a deep copy.
func (m Mapping) Clone() Mapping {
	out := m
	out.Aliases = slices.Clone(m.Aliases)
	if m.CatalogID != nil {
		id := *m.CatalogID
		out.CatalogID = &id
	}
	return out
}

// UnmarshalJSON accepts both the native field names and the legacy
// englishTitle/koreanTitle/id layout.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	var raw struct {
		CanonicalTitle string   `json:"canonicalTitle"`
		SourceTitle    string   `json:"sourceTitle"`
		Aliases        []string `json:"aliases"`
		CatalogID      *int64   `json:"catalogId"`

		EnglishTitle string `json:"englishTitle"`
		KoreanTitle  string `json:"koreanTitle"`
		ID           *int64 `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.CanonicalTitle = raw.CanonicalTitle
	if m.CanonicalTitle == "" {
		m.CanonicalTitle = raw.EnglishTitle
	}
	m.SourceTitle = raw.SourceTitle
	if m.SourceTitle == "" {
		m.SourceTitle = raw.KoreanTitle
	}
	m.Aliases = raw.Aliases
	if m.Aliases == nil {
		m.Aliases = []string{}
	}
	m.CatalogID = raw.CatalogID
	// the legacy file stores 0 for a series that was never looked up
	if m.CatalogID == nil && raw.ID != nil && *raw.ID != 0 {
		m.CatalogID = raw.ID
	}
	return nil
}

// CatalogEntry is one series from the catalog listing used by Reconcile.
type CatalogEntry struct {
	ID              int64
	Title           string
	AlternateTitles []string
}

// Store loads and saves the full list of mappings.
type Store interface {
	Load(ctx context.Context) ([]Mapping, error)
	Save(ctx context.Context, mappings []Mapping) error
}

// ReconcileRun summarizes one reconciliation attempt.
type ReconcileRun struct {
	ID         string    `json:"id"`
	Trigger    string    `json:"trigger"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Resolved   int       `json:"resolved"`
	Unresolved int       `json:"unresolved"`
	Persisted  bool      `json:"persisted"`
	Error      string    `json:"error,omitempty"`
}

// RunRecorder is implemented by stores that keep reconcile history.
type RunRecorder interface {
	RecordRun(ctx context.Context, run ReconcileRun) error
	RecentRuns(ctx context.Context, limit int) ([]ReconcileRun, error)
}
