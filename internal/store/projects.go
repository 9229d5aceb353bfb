package store

import (
	"bytes"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/goccy/go-json"

	"github.com/joescharf/portfolio-sync/internal/models"
)

// ProjectList is the ordered, append-only portfolio project list. Entries are
// kept as raw JSON so hand-added fields survive a rewrite.
type ProjectList struct {
	entries []json.RawMessage
	links   mapset.Set[string]
}

// NewProjectList returns an empty list.
func NewProjectList() *ProjectList {
	return &ProjectList{links: mapset.NewThreadUnsafeSet[string]()}
}

// ParseProjectList decodes a JSON array of project objects.
func ParseProjectList(data []byte) (*ProjectList, error) {
	pl := NewProjectList()
	if len(bytes.TrimSpace(data)) == 0 {
		return pl, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	for i, raw := range entries {
		var id struct {
			Link string `json:"link"`
		}
		if err := json.Unmarshal(raw, &id); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrCorrupt, i, err)
		}
		pl.entries = append(pl.entries, raw)
		if id.Link != "" {
			pl.links.Add(id.Link)
		}
	}
	return pl, nil
}

// Len returns the number of entries.
func (l *ProjectList) Len() int { return len(l.entries) }

// Has reports whether an entry with link exists.
func (l *ProjectList) Has(link string) bool { return l.links.Contains(link) }

// Links returns a copy of the set of entry links.
func (l *ProjectList) Links() mapset.Set[string] { return l.links.Clone() }

// Append adds p at the end. It returns false and leaves the list unchanged
// when an entry with the same link already exists.
func (l *ProjectList) Append(p models.Project) (bool, error) {
	if l.links.Contains(p.Link) {
		return false, nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("encode project %s: %w", p.Link, err)
	}
	l.entries = append(l.entries, raw)
	l.links.Add(p.Link)
	return true, nil
}

// Projects decodes every entry into the known Project fields.
func (l *ProjectList) Projects() ([]models.Project, error) {
	out := make([]models.Project, 0, len(l.entries))
	for i, raw := range l.entries {
		var p models.Project
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode entry %d: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// MarshalJSON encodes the list as a JSON array, preserving each entry as read.
func (l *ProjectList) MarshalJSON() ([]byte, error) {
	if len(l.entries) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(l.entries)
}
