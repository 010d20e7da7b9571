package chatclient

import "sort"

type entry struct {
	msg Message
	seq uint64
}

// MessageSet deduplicates messages by id and keeps them ordered by
// (CreatedAt, first-seen order). Not safe for concurrent use.
type MessageSet struct {
	byID    map[string]*entry
	ordered []Message
	nextSeq uint64
}

func NewMessageSet() *MessageSet {
	return &MessageSet{byID: make(map[string]*entry)}
}

// Merge upserts items by id. With replace the set is cleared first.
// Messages without an id cannot be deduplicated and are skipped.
func (s *MessageSet) Merge(items []Message, replace bool) {
	if replace {
		s.byID = make(map[string]*entry, len(items))
	}
	for _, m := range items {
		if m.ID == "" {
			continue
		}
		if e, ok := s.byID[m.ID]; ok {
			e.msg = m
			continue
		}
		s.nextSeq++
		s.byID[m.ID] = &entry{msg: m, seq: s.nextSeq}
	}
	s.materialize()
}

// Update rewrites every message in place and re-sorts
func (s *MessageSet) Update(fn func(*Message)) {
	for _, e := range s.byID {
		fn(&e.msg)
	}
	s.materialize()
}

func (s *MessageSet) Reset() {
	s.byID = make(map[string]*entry)
	s.ordered = nil
}

func (s *MessageSet) Len() int {
	return len(s.byID)
}

func (s *MessageSet) Get(id string) (Message, bool) {
	e, ok := s.byID[id]
	if !ok {
		return Message{}, false
	}
	return e.msg, true
}

// Items returns a copy of the ordered messages
func (s *MessageSet) Items() []Message {
	out := make([]Message, len(s.ordered))
	copy(out, s.ordered)
	return out
}

func (s *MessageSet) materialize() {
	entries := make([]*entry, 0, len(s.byID))
	for _, e := range s.byID {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.msg.CreatedAt.Equal(b.msg.CreatedAt) {
			return a.msg.CreatedAt.Before(b.msg.CreatedAt)
		}
		return a.seq < b.seq
	})

	s.ordered = make([]Message, len(entries))
	for i, e := range entries {
		s.ordered[i] = e.msg
	}
}
