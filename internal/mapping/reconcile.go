package mapping

import "slices"

// ReconcileResult is the outcome of one reconciliation pass.
type ReconcileResult struct {
	Mappings   []Mapping
	Resolved   []Mapping
	Unresolved []Mapping
}

// Reconcile assigns catalog ids to mappings that lack one. The first listing
// entry (in listing order) that matches wins. Mappings that already carry an
// id are copied unchanged, so repeated passes are stable. The input slice is
// not modified.
func Reconcile(mappings []Mapping, listing []CatalogEntry) ReconcileResult {
	result := ReconcileResult{
		Mappings: make([]Mapping, 0, len(mappings)),
	}

	for _, m := range mappings {
		m = m.Clone()
		if !m.HasCatalogID() {
			if entry, ok := findEntry(m, listing); ok {
				id := entry.ID
				m.CatalogID = &id
				result.Resolved = append(result.Resolved, m)
			} else {
				result.Unresolved = append(result.Unresolved, m)
			}
		}
		result.Mappings = append(result.Mappings, m)
	}
	return result
}

func findEntry(m Mapping, listing []CatalogEntry) (CatalogEntry, bool) {
	for _, entry := range listing {
		if entryMatches(m, entry) {
			return entry, true
		}
	}
	return CatalogEntry{}, false
}

func entryMatches(m Mapping, entry CatalogEntry) bool {
	if entry.Title == m.CanonicalTitle || slices.Contains(m.Aliases, entry.Title) {
		return true
	}
	for _, alt := range entry.AlternateTitles {
		if alt == m.SourceTitle || slices.Contains(m.Aliases, alt) {
			return true
		}
	}
	return false
}
