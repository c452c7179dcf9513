package monitor

import "github.com/darkkaiser/mydealz-monitor/internal/pepper"

// seenSet tracks which comment ids have already been notified. The id
// order mirrors the persisted sequence; membership checks go through a
// map. Not safe for concurrent use, the poll loop owns it.
type seenSet struct {
	limit int

	ids     []string
	members map[string]struct{}
}

func newSeenSet(limit int, ids []string) *seenSet {
	s := &seenSet{
		limit:   limit,
		members: make(map[string]struct{}, len(ids)),
	}
	s.Append(ids...)
	return s
}

func (s *seenSet) Contains(id string) bool {
	_, ok := s.members[id]
	return ok
}

// FilterNew returns the comments whose id is not in the set, sorted by
// the comment ordering key.
func (s *seenSet) FilterNew(comments []pepper.Comment) []pepper.Comment {
	var fresh []pepper.Comment
	for _, c := range comments {
		if !s.Contains(c.ID) {
			fresh = append(fresh, c)
		}
	}

	pepper.SortComments(fresh)
	return fresh
}

// Append adds ids not yet present, keeping insertion order. When the
// cap is exceeded the oldest entries are evicted first.
func (s *seenSet) Append(ids ...string) {
	for _, id := range ids {
		if id == "" || s.Contains(id) {
			continue
		}
		s.ids = append(s.ids, id)
		s.members[id] = struct{}{}
	}

	if s.limit > 0 && len(s.ids) > s.limit {
		evicted := s.ids[:len(s.ids)-s.limit]
		for _, id := range evicted {
			delete(s.members, id)
		}
		s.ids = append([]string(nil), s.ids[len(s.ids)-s.limit:]...)
	}
}

// IDs returns the ids in insertion order for persistence.
func (s *seenSet) IDs() []string {
	return append([]string(nil), s.ids...)
}

func (s *seenSet) Len() int {
	return len(s.ids)
}
