package slsconfig

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-slsconfig/document"
	"github.com/goliatone/go-slsconfig/pkg/activity"
	"github.com/goliatone/go-slsconfig/resolve"
)

// Config loads a serverless.yml style document and resolves its `${...}`
// references. The resolved document is computed once and memoized; Reload
// discards it.
type Config struct {
	path string
	cfg  optionsConfig

	mu       sync.Mutex
	resolved map[string]any
	trace    Trace
}

// New returns a Config for path. An empty path selects serverless.yml in the
// working directory.
func New(path string, opts ...Option) *Config {
	return &Config{
		path: resolvePath(path),
		cfg:  applyOptions(opts),
	}
}

func resolvePath(path string) string {
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			cwd = "."
		}
		return filepath.Join(cwd, DefaultFileName)
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// Path returns the absolute path of the entry document.
func (c *Config) Path() string {
	return c.path
}

// Document returns a copy of the fully resolved document.
func (c *Config) Document(ctx context.Context) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resolved == nil {
		if err := c.loadLocked(ctx); err != nil {
			return nil, err
		}
	}
	return document.Clone(c.resolved).(map[string]any), nil
}

// Reload drops the memoized document and resolves it again.
func (c *Config) Reload(ctx context.Context) (map[string]any, error) {
	c.mu.Lock()
	c.resolved = nil
	c.mu.Unlock()
	return c.Document(ctx)
}

// Trace returns the trace of the most recent load. It is empty before the
// first call to Document.
func (c *Config) Trace() Trace {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.trace
	out.Steps = append([]Step(nil), c.trace.Steps...)
	return out
}

func (c *Config) loadLocked(ctx context.Context) error {
	if c.cfg.forceErr != nil {
		return c.cfg.forceErr
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if c.cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.timeout)
		defer cancel()
	}

	recorder := &traceRecorder{}
	hooks := append(activity.Hooks{recorder}, c.cfg.activityHooks...)
	emitter := activity.NewEmitter(hooks, activity.Config{Enabled: true, RunID: uuid.NewString()})
	runID := emitter.RunID()
	recorder.begin(c.path, runID)

	l := &loader{cfg: &c.cfg, emitter: emitter}
	l.engine = resolve.NewEngine(
		resolve.WithLogger(c.cfg.logger),
		resolve.WithEnvLookup(c.cfg.lookupEnv),
		resolve.WithFileLoader(l),
		resolve.WithEmitter(emitter),
		resolve.WithStrict(c.cfg.strict),
	)

	start := time.Now()
	tree, err := l.load(ctx, c.path, 0, c.cfg.force)
	c.trace = recorder.snapshot()
	if err != nil {
		c.cfg.logger.Error("slsconfig: resolution failed", "file", c.path, "run_id", runID, "error", err)
		return err
	}

	root, ok := tree.(map[string]any)
	if !ok {
		return &resolve.Error{
			File:   c.path,
			Detail: fmt.Sprintf("top level must be a mapping, got %T", tree),
			Err:    resolve.ErrMalformedDocument,
		}
	}
	c.resolved = root
	c.cfg.logger.Info("slsconfig: document resolved",
		"file", c.path,
		"run_id", runID,
		"steps", len(c.trace.Steps),
		"duration", time.Since(start),
	)
	return nil
}
