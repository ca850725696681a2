package activity

import (
	"context"
	"strings"
)

// DefaultChannel is applied to events emitted without one.
const DefaultChannel = "slsconfig"

// Config controls activity emission defaults.
type Config struct {
	Enabled bool
	Channel string
	RunID   string
}

// Emitter fans out events to hooks while applying defaults.
type Emitter struct {
	hooks   Hooks
	enabled bool
	channel string
	runID   string
}

// NewEmitter constructs an emitter from hooks and configuration.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	normalizedHooks := hooks.Clone()
	return &Emitter{
		hooks:   normalizedHooks,
		enabled: cfg.Enabled && len(normalizedHooks) > 0,
		channel: channel,
		runID:   strings.TrimSpace(cfg.RunID),
	}
}

// Enabled reports whether emissions should be attempted.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled && len(e.hooks) > 0
}

// RunID returns the run identifier stamped on emitted events.
func (e *Emitter) RunID() string {
	if e == nil {
		return ""
	}
	return e.runID
}

// Emit forwards the event to all hooks, applying the default channel and run
// ID when missing.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" && e.channel != "" {
		event.Channel = e.channel
	}
	if strings.TrimSpace(event.RunID) == "" {
		event.RunID = e.runID
	}
	return e.hooks.Notify(ctx, event)
}
