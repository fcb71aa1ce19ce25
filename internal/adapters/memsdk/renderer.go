package memsdk

import (
	"context"
	"sync"

	"github.com/dkeye/callstate/internal/core"
	"github.com/dkeye/callstate/internal/domain"
	"github.com/google/uuid"
)

// RendererFactory hands out in-memory renderers and counts them. Block
// holds every CreateView until Release, which lets tests interleave stops
// with a view that is still being created.
type RendererFactory struct {
	mu        sync.Mutex
	failNew   error
	failView  error
	gate      chan struct{}
	entered   chan struct{}
	created   int
	disposed  int
	doubles   int
	active    map[core.MediaStream]int
	maxActive map[core.MediaStream]int
}

func NewRendererFactory() *RendererFactory {
	return &RendererFactory{
		entered:   make(chan struct{}, 64),
		active:    make(map[core.MediaStream]int),
		maxActive: make(map[core.MediaStream]int),
	}
}

func (f *RendererFactory) NewRenderer(stream core.MediaStream) (core.Renderer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failNew; err != nil {
		f.failNew = nil
		return nil, err
	}
	f.created++
	f.active[stream]++
	if f.active[stream] > f.maxActive[stream] {
		f.maxActive[stream] = f.active[stream]
	}
	return &Renderer{factory: f, stream: stream}, nil
}

// FailNext makes the next NewRenderer fail.
func (f *RendererFactory) FailNext(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNew = err
}

// FailView makes the next CreateView fail.
func (f *RendererFactory) FailView(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failView = err
}

func (f *RendererFactory) Block() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate == nil {
		f.gate = make(chan struct{})
	}
}

func (f *RendererFactory) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
}

// Entered receives once per CreateView call, before it blocks.
func (f *RendererFactory) Entered() <-chan struct{} { return f.entered }

func (f *RendererFactory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

func (f *RendererFactory) Disposed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disposed
}

// DoubleDisposals counts Dispose calls on an already disposed renderer.
func (f *RendererFactory) DoubleDisposals() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doubles
}

func (f *RendererFactory) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created - f.disposed
}

// MaxActiveFor is the peak number of live renderers stream ever had.
func (f *RendererFactory) MaxActiveFor(stream core.MediaStream) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive[stream]
}

type Renderer struct {
	factory  *RendererFactory
	stream   core.MediaStream
	mu       sync.Mutex
	disposed bool
}

func (r *Renderer) CreateView(ctx context.Context, opts core.ViewOptions) (core.View, error) {
	f := r.factory
	select {
	case f.entered <- struct{}{}:
	default:
	}
	f.mu.Lock()
	gate := f.gate
	err := f.failView
	f.failView = nil
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &View{target: "view-" + uuid.NewString(), scaling: opts.ScalingMode, mirrored: opts.IsMirrored}, nil
}

func (r *Renderer) Dispose() {
	r.mu.Lock()
	already := r.disposed
	r.disposed = true
	r.mu.Unlock()

	f := r.factory
	f.mu.Lock()
	defer f.mu.Unlock()
	if already {
		f.doubles++
		return
	}
	f.disposed++
	f.active[r.stream]--
}

type View struct {
	target   string
	scaling  domain.ScalingMode
	mirrored bool
}

func (v *View) Target() string                  { return v.target }
func (v *View) ScalingMode() domain.ScalingMode { return v.scaling }
func (v *View) IsMirrored() bool                { return v.mirrored }
