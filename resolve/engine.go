package resolve

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/goliatone/go-slsconfig/document"
	"github.com/goliatone/go-slsconfig/logging"
	"github.com/goliatone/go-slsconfig/pkg/activity"
)

const (
	// MaxPasses caps substitution passes over a single document.
	MaxPasses = 100
	// MaxDepth caps nested file references.
	MaxDepth = 100
)

// FileLoader reads a referenced document and runs the full pipeline on it.
// depth is the nesting level of the document being requested.
type FileLoader interface {
	Load(ctx context.Context, path string, depth int) (any, error)
}

// FileLoaderFunc adapts a function to FileLoader.
type FileLoaderFunc func(ctx context.Context, path string, depth int) (any, error)

// Load implements FileLoader.
func (f FileLoaderFunc) Load(ctx context.Context, path string, depth int) (any, error) {
	return f(ctx, path, depth)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. nil selects the no-op logger.
func WithLogger(logger logging.Logger) Option {
	return func(e *Engine) {
		e.logger = logging.OrNoop(logger)
	}
}

// WithEnvLookup replaces os.LookupEnv for env references.
func WithEnvLookup(lookup func(string) (string, bool)) Option {
	return func(e *Engine) {
		if lookup != nil {
			e.lookupEnv = lookup
		}
	}
}

// WithFileLoader wires the loader used by file references.
func WithFileLoader(loader FileLoader) Option {
	return func(e *Engine) {
		e.loader = loader
	}
}

// WithEmitter attaches an activity emitter.
func WithEmitter(emitter *activity.Emitter) Option {
	return func(e *Engine) {
		e.emitter = emitter
	}
}

// WithStrict turns tokens left at the fixed point into an ErrUnresolved error.
func WithStrict(strict bool) Option {
	return func(e *Engine) {
		e.strict = strict
	}
}

// Engine drives documents to a fixed point.
type Engine struct {
	logger    logging.Logger
	lookupEnv func(string) (string, bool)
	loader    FileLoader
	emitter   *activity.Emitter
	strict    bool
}

// NewEngine constructs an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:    logging.Noop(),
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Request is one document to resolve.
type Request struct {
	Document *document.Document
	// RootFolder anchors relative file references.
	RootFolder string
	// File names the source document in errors and events.
	File string
	// Opt holds caller supplied option values.
	Opt map[string]string
	// Depth is the file nesting level of Document, zero for the entry file.
	Depth int
}

// Report summarises a finished run.
type Report struct {
	Passes     int
	Resolved   int
	Unresolved []string
}

// Resolve substitutes tokens in req.Document until none remain or a pass
// repeats the previous job signature.
func (e *Engine) Resolve(ctx context.Context, req Request) (Report, error) {
	var report Report
	if req.Document == nil {
		return report, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	r := &run{
		engine: e,
		req:    req,
		warned: map[string]bool{},
	}
	seen := map[string]struct{}{}

	for pass := 1; ; pass++ {
		if pass > MaxPasses {
			return report, &Error{
				File:   req.File,
				Detail: fmt.Sprintf("more than %d substitution passes, references may depend on each other", MaxPasses),
				Err:    ErrInfiniteLoop,
			}
		}
		report.Passes = pass

		refs := req.Document.Discover()
		if len(refs) == 0 {
			report.Resolved = r.resolved
			return report, nil
		}

		signature := Signature(refs)
		if _, ok := seen[signature]; ok {
			report.Resolved = r.resolved
			report.Unresolved = r.leftovers(refs)
			if e.strict {
				return report, &Error{
					File:   req.File,
					Path:   report.Unresolved[0],
					Detail: strings.Join(report.Unresolved, ", "),
					Err:    ErrUnresolved,
				}
			}
			return report, nil
		}
		seen[signature] = struct{}{}

		r.begin(pass, refs)
		e.logger.Debug("slsconfig: resolution pass", "file", req.File, "pass", pass, "tokens", len(refs))
		for _, ref := range refs {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			if _, err := r.resolve(ctx, ref, nil); err != nil {
				return report, err
			}
		}
	}
}

// Signature is the sorted set of dotPath-raw pairs for refs.
func Signature(refs []*document.TokenRef) string {
	keys := make([]string, len(refs))
	for i, ref := range refs {
		keys[i] = ref.DotPath() + "-" + ref.Raw
	}
	sort.Strings(keys)
	return strings.Join(keys, "_")
}

type run struct {
	engine   *Engine
	req      Request
	pass     int
	byPath   map[string]*document.TokenRef
	warned   map[string]bool
	resolved int
}

func (r *run) begin(pass int, refs []*document.TokenRef) {
	r.pass = pass
	r.byPath = make(map[string]*document.TokenRef, len(refs))
	for _, ref := range refs {
		r.byPath[ref.DotPath()] = ref
	}
}

func (r *run) leftovers(refs []*document.TokenRef) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		r.engine.logger.Warn("slsconfig: token left unresolved",
			"file", r.req.File,
			"path", ref.DotPath(),
			"token", ref.Token.Raw,
		)
		out = append(out, ref.DotPath())
	}
	sort.Strings(out)
	return out
}

func (r *run) emit(ctx context.Context, event activity.Event) {
	if !r.engine.emitter.Enabled() {
		return
	}
	if err := r.engine.emitter.Emit(ctx, event); err != nil {
		r.engine.logger.Warn("slsconfig: activity hook failed", "error", err)
	}
}
