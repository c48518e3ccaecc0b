package room

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/core"
)

// Host owns one broadcast engine per room name, created on first use. A Host
// serving the configured room inside a single process is the local fallback;
// a Host reached through the Directory is the shared room actor.
type Host struct {
	mu      sync.Mutex
	engines map[string]*core.Engine
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	opts   []core.Option
	log    *zerolog.Logger
}

// NewHost creates an empty host. Engine options are applied to every room.
func NewHost(logger *zerolog.Logger, opts ...core.Option) *Host {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Host{
		engines: make(map[string]*core.Engine),
		ctx:     ctx,
		cancel:  cancel,
		opts:    opts,
		log:     logger,
	}
}

// Engine returns the running engine for name, starting it if needed.
// After Close it returns a stopped engine whose calls fail with core.ErrRoomClosed.
func (h *Host) Engine(name string) *core.Engine {
	h.mu.Lock()
	defer h.mu.Unlock()

	if e, ok := h.engines[name]; ok {
		return e
	}

	opts := make([]core.Option, 0, len(h.opts)+2)
	opts = append(opts, h.opts...)
	opts = append(opts, core.WithName(name), core.WithLogger(h.log))
	e := core.NewEngine(opts...)
	go e.Run(h.ctx)
	if !h.closed {
		h.engines[name] = e
		h.log.Info().Str("room", name).Msg("room started")
	}
	return e
}

// Lookup returns the engine for name if it has been started.
func (h *Host) Lookup(name string) (*core.Engine, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.engines[name]
	return e, ok
}

// Rooms lists the names of started rooms.
func (h *Host) Rooms() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := make([]string, 0, len(h.engines))
	for name := range h.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close stops every room and waits for the engines to exit.
func (h *Host) Close() {
	h.mu.Lock()
	h.closed = true
	engines := make([]*core.Engine, 0, len(h.engines))
	for _, e := range h.engines {
		engines = append(engines, e)
	}
	h.mu.Unlock()

	h.cancel()
	for _, e := range engines {
		<-e.Done()
	}
}
