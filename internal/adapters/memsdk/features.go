package memsdk

import (
	"maps"
	"slices"
	"sync"

	"github.com/dkeye/callstate/internal/core"
	"github.com/dkeye/callstate/internal/domain"
)

// FeatureSet bundles one fake per call feature.
type FeatureSet struct {
	Recording     *Recording
	Transcription *Transcription
	Transfer      *Transfer
	Captions      *Captions
	Spotlight     *Spotlight
	RaiseHand     *RaiseHand
	Reactions     *Reactions
	Diagnostics   *Diagnostics
	MediaAccess   *MediaAccess
	TogetherMode  *TogetherMode
}

func NewFeatureSet() *FeatureSet {
	return &FeatureSet{
		Recording:     &Recording{},
		Transcription: &Transcription{},
		Transfer:      &Transfer{},
		Captions:      &Captions{},
		Spotlight:     &Spotlight{},
		RaiseHand:     &RaiseHand{},
		Reactions:     &Reactions{},
		Diagnostics:   &Diagnostics{network: map[string]domain.Diagnostic{}, media: map[string]domain.Diagnostic{}},
		MediaAccess:   &MediaAccess{},
		TogetherMode:  &TogetherMode{},
	}
}

func (f *FeatureSet) Features() core.Features {
	return core.Features{
		Recording:     f.Recording,
		Transcription: f.Transcription,
		Transfer:      f.Transfer,
		Captions:      f.Captions,
		Spotlight:     f.Spotlight,
		RaiseHand:     f.RaiseHand,
		Reactions:     f.Reactions,
		Diagnostics:   f.Diagnostics,
		MediaAccess:   f.MediaAccess,
		TogetherMode:  f.TogetherMode,
	}
}

func (f *FeatureSet) ListenerCount() int {
	return f.Recording.changed.Len() + f.Transcription.changed.Len() + f.Transfer.accepted.Len() +
		f.Captions.activeChanged.Len() + f.Captions.languageChanged.Len() + f.Captions.received.Len() +
		f.Spotlight.changed.Len() + f.RaiseHand.raised.Len() + f.RaiseHand.lowered.Len() +
		f.Reactions.reaction.Len() + f.Diagnostics.networkChanged.Len() + f.Diagnostics.mediaChanged.Len() +
		f.MediaAccess.changed.Len() + f.TogetherMode.updated.Len()
}

type Recording struct {
	mu      sync.RWMutex
	active  bool
	changed core.Signal
}

func (r *Recording) IsRecordingActive() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

func (r *Recording) OnIsRecordingActiveChanged(fn func()) core.Off { return r.changed.OnSignal(fn) }

func (r *Recording) SetActive(active bool) {
	r.mu.Lock()
	r.active = active
	r.mu.Unlock()
	r.changed.Emit(struct{}{})
}

type Transcription struct {
	mu      sync.RWMutex
	active  bool
	changed core.Signal
}

func (t *Transcription) IsTranscriptionActive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active
}

func (t *Transcription) OnIsTranscriptionActiveChanged(fn func()) core.Off {
	return t.changed.OnSignal(fn)
}

func (t *Transcription) SetActive(active bool) {
	t.mu.Lock()
	t.active = active
	t.mu.Unlock()
	t.changed.Emit(struct{}{})
}

type Transfer struct {
	accepted core.Topic[core.TransferAccepted]
}

func (t *Transfer) OnTransferAccepted(fn func(core.TransferAccepted)) core.Off {
	return t.accepted.On(fn)
}

func (t *Transfer) Accept(targetCallID string) {
	t.accepted.Emit(core.TransferAccepted{TargetCallID: targetCallID})
}

type Captions struct {
	mu              sync.RWMutex
	active          bool
	language        string
	activeChanged   core.Signal
	languageChanged core.Signal
	received        core.Topic[domain.Caption]
}

func (c *Captions) IsCaptionsActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

func (c *Captions) SpokenLanguage() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.language
}

func (c *Captions) OnCaptionsActiveChanged(fn func()) core.Off          { return c.activeChanged.OnSignal(fn) }
func (c *Captions) OnSpokenLanguageChanged(fn func()) core.Off          { return c.languageChanged.OnSignal(fn) }
func (c *Captions) OnCaptionsReceived(fn func(domain.Caption)) core.Off { return c.received.On(fn) }

func (c *Captions) SetActive(active bool) {
	c.mu.Lock()
	c.active = active
	c.mu.Unlock()
	c.activeChanged.Emit(struct{}{})
}

func (c *Captions) SetSpokenLanguage(lang string) {
	c.mu.Lock()
	c.language = lang
	c.mu.Unlock()
	c.languageChanged.Emit(struct{}{})
}

func (c *Captions) Receive(caption domain.Caption) { c.received.Emit(caption) }

type Spotlight struct {
	mu      sync.RWMutex
	list    []domain.SpotlightedParticipant
	changed core.Topic[core.SpotlightChanged]
}

func (s *Spotlight) SpotlightedParticipants() []domain.SpotlightedParticipant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.list)
}

func (s *Spotlight) OnSpotlightChanged(fn func(core.SpotlightChanged)) core.Off {
	return s.changed.On(fn)
}

func (s *Spotlight) Add(id domain.Identifier) {
	s.mu.Lock()
	p := domain.SpotlightedParticipant{Identifier: id, Order: len(s.list) + 1}
	s.list = append(s.list, p)
	s.mu.Unlock()
	s.changed.Emit(core.SpotlightChanged{Added: []domain.SpotlightedParticipant{p}})
}

func (s *Spotlight) Remove(id domain.Identifier) {
	s.mu.Lock()
	var removed []domain.SpotlightedParticipant
	s.list = slices.DeleteFunc(s.list, func(p domain.SpotlightedParticipant) bool {
		if p.Identifier.Key() == id.Key() {
			removed = append(removed, p)
			return true
		}
		return false
	})
	for i := range s.list {
		s.list[i].Order = i + 1
	}
	s.mu.Unlock()
	s.changed.Emit(core.SpotlightChanged{Removed: removed})
}

type RaiseHand struct {
	mu      sync.RWMutex
	hands   []domain.RaisedHand
	raised  core.Topic[domain.RaisedHand]
	lowered core.Topic[domain.RaisedHand]
}

func (r *RaiseHand) RaisedHands() []domain.RaisedHand {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.hands)
}

func (r *RaiseHand) OnRaisedHand(fn func(domain.RaisedHand)) core.Off  { return r.raised.On(fn) }
func (r *RaiseHand) OnLoweredHand(fn func(domain.RaisedHand)) core.Off { return r.lowered.On(fn) }

func (r *RaiseHand) Raise(id domain.Identifier) {
	r.mu.Lock()
	h := domain.RaisedHand{Identifier: id, Order: len(r.hands) + 1}
	r.hands = append(r.hands, h)
	r.mu.Unlock()
	r.raised.Emit(h)
}

func (r *RaiseHand) Lower(id domain.Identifier) {
	r.mu.Lock()
	var h domain.RaisedHand
	found := false
	r.hands = slices.DeleteFunc(r.hands, func(x domain.RaisedHand) bool {
		if x.Identifier.Key() == id.Key() {
			h, found = x, true
			return true
		}
		return false
	})
	for i := range r.hands {
		r.hands[i].Order = i + 1
	}
	r.mu.Unlock()
	if found {
		r.lowered.Emit(h)
	}
}

type Reactions struct {
	reaction core.Topic[core.ReactionMessage]
}

func (r *Reactions) OnReaction(fn func(core.ReactionMessage)) core.Off { return r.reaction.On(fn) }

func (r *Reactions) Send(id domain.Identifier, reactionType string) {
	r.reaction.Emit(core.ReactionMessage{Identifier: id, ReactionType: reactionType})
}

type Diagnostics struct {
	mu             sync.RWMutex
	network        map[string]domain.Diagnostic
	media          map[string]domain.Diagnostic
	networkChanged core.Topic[core.DiagnosticChanged]
	mediaChanged   core.Topic[core.DiagnosticChanged]
}

func (d *Diagnostics) Network() map[string]domain.Diagnostic {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return maps.Clone(d.network)
}

func (d *Diagnostics) Media() map[string]domain.Diagnostic {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return maps.Clone(d.media)
}

func (d *Diagnostics) OnNetworkDiagnosticChanged(fn func(core.DiagnosticChanged)) core.Off {
	return d.networkChanged.On(fn)
}

func (d *Diagnostics) OnMediaDiagnosticChanged(fn func(core.DiagnosticChanged)) core.Off {
	return d.mediaChanged.On(fn)
}

func (d *Diagnostics) SetNetwork(name string, v domain.Diagnostic) {
	d.mu.Lock()
	d.network[name] = v
	d.mu.Unlock()
	d.networkChanged.Emit(core.DiagnosticChanged{Name: name, Value: v})
}

func (d *Diagnostics) SetMedia(name string, v domain.Diagnostic) {
	d.mu.Lock()
	d.media[name] = v
	d.mu.Unlock()
	d.mediaChanged.Emit(core.DiagnosticChanged{Name: name, Value: v})
}

type MediaAccess struct {
	mu       sync.RWMutex
	accesses []core.ParticipantMediaAccess
	changed  core.Topic[core.MediaAccessChanged]
}

func (m *MediaAccess) MediaAccesses() []core.ParticipantMediaAccess {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.accesses)
}

func (m *MediaAccess) OnMediaAccessChanged(fn func(core.MediaAccessChanged)) core.Off {
	return m.changed.On(fn)
}

// Set replaces the access list and emits it whole.
func (m *MediaAccess) Set(accesses []core.ParticipantMediaAccess) {
	m.mu.Lock()
	m.accesses = slices.Clone(accesses)
	m.mu.Unlock()
	m.changed.Emit(core.MediaAccessChanged{MediaAccesses: accesses})
}

type TogetherMode struct {
	mu      sync.RWMutex
	streams []*RemoteStream
	updated core.Topic[core.RemoteVideoStreamsUpdated]
}

func (t *TogetherMode) Streams() []core.RemoteVideoStream {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]core.RemoteVideoStream, 0, len(t.streams))
	for _, s := range t.streams {
		out = append(out, s)
	}
	return out
}

func (t *TogetherMode) OnStreamsUpdated(fn func(core.RemoteVideoStreamsUpdated)) core.Off {
	return t.updated.On(fn)
}

func (t *TogetherMode) AddStream(s *RemoteStream) {
	t.mu.Lock()
	t.streams = append(t.streams, s)
	t.mu.Unlock()
	t.updated.Emit(core.RemoteVideoStreamsUpdated{Added: []core.RemoteVideoStream{s}})
}

func (t *TogetherMode) RemoveStream(s *RemoteStream) {
	t.mu.Lock()
	i := slices.Index(t.streams, s)
	if i < 0 {
		t.mu.Unlock()
		return
	}
	t.streams = slices.Delete(t.streams, i, i+1)
	t.mu.Unlock()
	t.updated.Emit(core.RemoteVideoStreamsUpdated{Removed: []core.RemoteVideoStream{s}})
}
