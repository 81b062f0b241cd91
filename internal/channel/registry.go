// Package channel manages the chat front-ends that feed prompts into the
// agent loop.
package channel

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/soyeahso/agentloop/internal/logging"
)

// Channel is a long-running chat connection.
type Channel interface {
	ID() string
	// Start connects and blocks until the connection ends or ctx is done.
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Status() Status
}

// Status is a channel's runtime state.
type Status struct {
	ChannelID string `json:"channelId"`
	Connected bool   `json:"connected"`
	Running   bool   `json:"running"`
	LastError string `json:"lastError,omitempty"`
}

// Registry owns the configured channels and the goroutines running them.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel
	running  sync.WaitGroup
	log      *logging.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{channels: make(map[string]Channel), log: log.Sub("channels")}
}

// Register adds ch, replacing a channel with the same ID.
func (r *Registry) Register(ch Channel) {
	r.mu.Lock()
	r.channels[ch.ID()] = ch
	r.mu.Unlock()
	r.log.Info().Str("channel", ch.ID()).Msg("channel registered")
}

// Get looks a channel up by ID.
func (r *Registry) Get(id string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[id]
	return ch, ok
}

// snapshot returns the channels ordered by ID.
func (r *Registry) snapshot() []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := slices.Collect(maps.Values(r.channels))
	slices.SortFunc(out, func(a, b Channel) int { return strings.Compare(a.ID(), b.ID()) })
	return out
}

// List returns the channel IDs in order.
func (r *Registry) List() []string {
	chs := r.snapshot()
	ids := make([]string, len(chs))
	for i, ch := range chs {
		ids[i] = ch.ID()
	}
	return ids
}

// Status reports every channel in ID order. It never returns nil.
func (r *Registry) Status() []Status {
	chs := r.snapshot()
	out := make([]Status, 0, len(chs))
	for _, ch := range chs {
		out = append(out, ch.Status())
	}
	return out
}

// Count returns the number of registered channels.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// StartAll runs each channel's Start in its own goroutine. Start blocks for
// the life of the connection, so its error is logged, not returned.
func (r *Registry) StartAll(ctx context.Context) {
	for _, ch := range r.snapshot() {
		log := r.log.With("channel", ch.ID())
		log.Info().Msg("starting channel")
		r.running.Add(1)
		go func() {
			defer r.running.Done()
			if err := ch.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("channel exited with error")
			}
		}()
	}
}

// StopAll asks every channel to stop, then waits for the Start goroutines
// until ctx expires. It returns the joined Stop errors, plus ctx's error on
// timeout.
func (r *Registry) StopAll(ctx context.Context) error {
	var errs []error
	for _, ch := range r.snapshot() {
		if err := ch.Stop(ctx); err != nil {
			r.log.Error().Err(err).Str("channel", ch.ID()).Msg("failed to stop channel")
			errs = append(errs, fmt.Errorf("%s: %w", ch.ID(), err))
		}
	}

	done := make(chan struct{})
	go func() {
		r.running.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		r.log.Warn().Msg("timed out waiting for channels to stop")
		errs = append(errs, ctx.Err())
	}
	return errors.Join(errs...)
}
