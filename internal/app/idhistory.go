package app

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// IDHistory maps retired ids to their successors so that work issued
// against an old id can find the entity after a rename. A current id is
// never kept as a key, which keeps chains acyclic.
type IDHistory struct {
	mu   sync.Mutex
	next map[string]string
	rec  Recorder
	log  zerolog.Logger
}

func NewIDHistory(rec Recorder) *IDHistory {
	if rec == nil {
		rec = Nop{}
	}
	return &IDHistory{
		next: make(map[string]string),
		rec:  rec,
		log:  log.With().Str("module", "app.idhistory").Logger(),
	}
}

// Record stores oldID -> newID. Reuse of an id by a different entity is
// reported and the newest mapping wins.
func (h *IDHistory) Record(newID, oldID string) {
	if newID == oldID {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.next[newID]; ok {
		if prev != oldID {
			h.log.Warn().Str("new_id", newID).Str("old_id", oldID).Str("stale_target", prev).
				Msg("id reused by another entity")
			h.rec.IDReused()
		}
		delete(h.next, newID)
	}
	if prev, ok := h.next[oldID]; ok && prev != newID {
		h.log.Warn().Str("old_id", oldID).Str("previous_target", prev).Str("new_id", newID).
			Msg("id remapped to a different target")
		h.rec.IDReused()
	}
	h.next[oldID] = newID
	h.rec.CallRenamed()
	h.log.Debug().Str("old_id", oldID).Str("new_id", newID).Msg("recorded rename")
}

// Resolve follows the rename chain starting at id.
func (h *IDHistory) Resolve(id string) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	seen := map[string]struct{}{id: {}}
	cur := id
	for {
		nxt, ok := h.next[cur]
		if !ok {
			return cur
		}
		if _, loop := seen[nxt]; loop {
			h.log.Error().Str("id", id).Str("at", nxt).Msg("rename chain loops")
			return cur
		}
		seen[nxt] = struct{}{}
		cur = nxt
	}
}

func (h *IDHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.next)
}
