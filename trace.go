package slsconfig

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/goliatone/go-slsconfig/pkg/activity"
)

// Trace records how a load reached its final document: every file read and
// every token substituted, skipped or left unsupported.
type Trace struct {
	File  string `json:"file"`
	RunID string `json:"run_id"`
	Steps []Step `json:"steps"`
}

// Step is one traced event.
type Step struct {
	Verb   string `json:"verb"`
	File   string `json:"file,omitempty"`
	Path   string `json:"path,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Token  string `json:"token,omitempty"`
	Pass   int    `json:"pass,omitempty"`
	Value  any    `json:"value,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a JSON payload that was previously generated via
// ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}

// Resolved returns the steps that substituted a value.
func (t Trace) Resolved() []Step {
	var out []Step
	for _, step := range t.Steps {
		if step.Verb == activity.VerbTokenResolved {
			out = append(out, step)
		}
	}
	return out
}

// traceRecorder is the activity hook backing Config.Trace.
type traceRecorder struct {
	mu    sync.Mutex
	trace Trace
}

// begin resets the recorder for a new run.
func (r *traceRecorder) begin(file, runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace = Trace{File: file, RunID: runID}
}

func (r *traceRecorder) Notify(_ context.Context, event activity.Event) error {
	step := Step{
		Verb:  event.Verb,
		File:  event.File,
		Kind:  event.Kind,
		Token: event.Token,
		Pass:  event.Pass,
		Value: event.Value,
	}
	if event.ObjectType == "token" {
		step.Path = event.ObjectID
	}
	if reason, ok := event.Metadata["reason"].(string); ok {
		step.Reason = reason
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace.Steps = append(r.trace.Steps, step)
	return nil
}

func (r *traceRecorder) snapshot() Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.trace
	out.Steps = append([]Step(nil), r.trace.Steps...)
	return out
}
