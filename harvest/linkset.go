package harvest

import (
	"encoding/json"
	"sort"
)

// LinkSet is an immutable set of item identifiers.
type LinkSet struct {
	ids map[string]struct{}
}

// NewLinkSet builds a set from ids. Empty strings and duplicates are dropped.
func NewLinkSet(ids ...string) LinkSet {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			m[id] = struct{}{}
		}
	}
	return LinkSet{ids: m}
}

func (s LinkSet) Len() int { return len(s.ids) }

func (s LinkSet) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Sorted returns the identifiers in lexical order.
func (s LinkSet) Sorted() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether both sets hold the same identifiers.
func (s LinkSet) Equal(o LinkSet) bool {
	if s.Len() != o.Len() {
		return false
	}
	for id := range s.ids {
		if !o.Contains(id) {
			return false
		}
	}
	return true
}

func (s LinkSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *LinkSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewLinkSet(ids...)
	return nil
}
