package session

import "github.com/zhouzirui/voice-agent/internal/model/conversation"

// History is the rolling transcript window. It is not safe for concurrent use;
// the Session guards it.
type History struct {
	limit   int
	entries []conversation.Entry
}

// NewHistory returns an empty window holding at most limit entries.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = conversation.MaxHistory
	}
	return &History{limit: limit, entries: make([]conversation.Entry, 0, limit+1)}
}

// Append adds entry and drops the oldest entries beyond the limit.
func (h *History) Append(entry conversation.Entry) {
	h.entries = append(h.entries, entry)
	if len(h.entries) > h.limit {
		h.entries = conversation.Tail(h.entries, h.limit)
	}
}

// Entries 按时间顺序返回副本
func (h *History) Entries() []conversation.Entry {
	out := make([]conversation.Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// NewestFirst 按倒序返回副本，用于展示
func (h *History) NewestFirst() []conversation.Entry {
	out := make([]conversation.Entry, len(h.entries))
	for i, e := range h.entries {
		out[len(h.entries)-1-i] = e
	}
	return out
}

func (h *History) Len() int {
	return len(h.entries)
}
