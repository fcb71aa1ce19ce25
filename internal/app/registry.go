package app

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/dkeye/callstate/internal/core"
	"github.com/dkeye/callstate/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RenderKind tags the variant of a render unit.
type RenderKind int

const (
	RenderLocal RenderKind = iota
	RenderRemote
	RenderFeature
	RenderUnparented
)

func (k RenderKind) String() string {
	switch k {
	case RenderLocal:
		return "local"
	case RenderRemote:
		return "remote"
	case RenderFeature:
		return "feature"
	case RenderUnparented:
		return "unparented"
	default:
		return "unknown"
	}
}

// RenderKey addresses one render unit. Which fields are meaningful depends
// on Kind:
//
//	local:      CallID, MediaType
//	remote:     CallID, Owner (participant key), StreamID
//	feature:    CallID, Owner (feature name), StreamID
//	unparented: Source
type RenderKey struct {
	Kind      RenderKind
	CallID    string
	Owner     string
	StreamID  int
	MediaType domain.MediaStreamType
	Source    string
}

func LocalKey(callID string, t domain.MediaStreamType) RenderKey {
	return RenderKey{Kind: RenderLocal, CallID: callID, MediaType: t}
}

func RemoteKey(callID, participant string, streamID int) RenderKey {
	return RenderKey{Kind: RenderRemote, CallID: callID, Owner: participant, StreamID: streamID}
}

func FeatureKey(callID, feature string, streamID int) RenderKey {
	return RenderKey{Kind: RenderFeature, CallID: callID, Owner: feature, StreamID: streamID}
}

func UnparentedKey(source string) RenderKey {
	return RenderKey{Kind: RenderUnparented, Source: source}
}

func (k RenderKey) CallBound() bool { return k.Kind != RenderUnparented }

// WithCall returns k re-targeted at callID.
func (k RenderKey) WithCall(callID string) RenderKey {
	k.CallID = callID
	return k
}

func (k RenderKey) String() string {
	switch k.Kind {
	case RenderLocal:
		return fmt.Sprintf("local/%s/%s", k.CallID, k.MediaType)
	case RenderRemote, RenderFeature:
		return fmt.Sprintf("%s/%s/%s/%d", k.Kind, k.CallID, k.Owner, k.StreamID)
	default:
		return "unparented/" + k.Source
	}
}

// RenderInfo is the private render state of one unit. Renderer is set only
// while Status is Rendered; whoever clears it owns its disposal.
type RenderInfo struct {
	Status   domain.RenderStatus
	Renderer core.Renderer
	Stream   core.MediaStream
	Attempt  uint64
}

// Registry stores RenderInfo per unit. Call bound units are grouped by call
// so they can be renamed and dropped together.
type Registry struct {
	mu         sync.RWMutex
	calls      map[string]map[RenderKey]*RenderInfo
	unparented map[RenderKey]*RenderInfo
	attempts   uint64
	log        zerolog.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		calls:      make(map[string]map[RenderKey]*RenderInfo),
		unparented: make(map[RenderKey]*RenderInfo),
		log:        log.With().Str("module", "app.registry").Logger(),
	}
}

func (r *Registry) bucketLocked(k RenderKey, create bool) map[RenderKey]*RenderInfo {
	if !k.CallBound() {
		return r.unparented
	}
	b, ok := r.calls[k.CallID]
	if !ok && create {
		b = make(map[RenderKey]*RenderInfo)
		r.calls[k.CallID] = b
	}
	return b
}

// Track registers stream under k. An existing entry keeps its render state
// and only points at the new stream.
func (r *Registry) Track(k RenderKey, stream core.MediaStream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.bucketLocked(k, true)
	if info, ok := b[k]; ok {
		info.Stream = stream
		return
	}
	b[k] = &RenderInfo{Status: domain.NotRendered, Stream: stream}
	r.log.Debug().Str("key", k.String()).Msg("tracked stream")
}

func (r *Registry) Get(k RenderKey) (RenderInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b := r.bucketLocked(k, false)
	if info, ok := b[k]; ok {
		return *info, true
	}
	return RenderInfo{}, false
}

// Update runs fn on the live entry under the registry lock. It reports
// false when the entry does not exist.
func (r *Registry) Update(k RenderKey, fn func(info *RenderInfo)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.bucketLocked(k, false)[k]
	if !ok {
		return false
	}
	fn(info)
	return true
}

// NextAttempt returns a token unique to one start operation.
func (r *Registry) NextAttempt() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	return r.attempts
}

// Remove deletes k and returns what it held.
func (r *Registry) Remove(k RenderKey) (RenderInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.bucketLocked(k, false)
	info, ok := b[k]
	if !ok {
		return RenderInfo{}, false
	}
	delete(b, k)
	if k.CallBound() && len(b) == 0 {
		delete(r.calls, k.CallID)
	}
	r.log.Debug().Str("key", k.String()).Msg("removed entry")
	return *info, true
}

// Keys lists the units of a call; an empty callID lists unparented units.
func (r *Registry) Keys(callID string) []RenderKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if callID == "" {
		return slices.Collect(maps.Keys(r.unparented))
	}
	return slices.Collect(maps.Keys(r.calls[callID]))
}

func (r *Registry) CallIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Collect(maps.Keys(r.calls))
}

// RenameCall moves every unit of oldID under newID.
func (r *Registry) RenameCall(oldID, newID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.calls[oldID]
	if !ok {
		return
	}
	delete(r.calls, oldID)
	moved := r.calls[newID]
	if moved == nil {
		moved = make(map[RenderKey]*RenderInfo, len(b))
	}
	for k, info := range b {
		moved[k.WithCall(newID)] = info
	}
	r.calls[newID] = moved
	r.log.Info().Str("old_id", oldID).Str("new_id", newID).Int("units", len(b)).Msg("renamed call")
}

// DropCall forgets every unit of callID. Renders must be stopped first.
func (r *Registry) DropCall(callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.calls, callID)
}
