package slsconfig

import (
	"maps"
	"time"

	"github.com/spf13/afero"

	"github.com/goliatone/go-slsconfig/logging"
	"github.com/goliatone/go-slsconfig/pkg/activity"
	"github.com/goliatone/go-slsconfig/resolve"
)

// WithOption supplies a value for `${opt:name}` references.
func WithOption(name, value string) Option {
	return func(cfg *optionsConfig) {
		cfg.opt[name] = value
	}
}

// WithOptions supplies several option values at once.
func WithOptions(values map[string]string) Option {
	return func(cfg *optionsConfig) {
		maps.Copy(cfg.opt, values)
	}
}

// WithStage is shorthand for WithOption("stage", stage).
func WithStage(stage string) Option {
	return WithOption("stage", stage)
}

// WithForce merges overrides into the entry document before and after resolution.
func WithForce(overrides map[string]any) Option {
	return func(cfg *optionsConfig) {
		cfg.force = overrides
		cfg.forceErr = nil
	}
}

// WithForceString parses `a.b=c;d=e` overrides. Parse errors surface on the
// first call that loads the document.
func WithForceString(expr string) Option {
	return func(cfg *optionsConfig) {
		cfg.force, cfg.forceErr = ParseForce(expr)
	}
}

// WithFS sets the file system documents and credentials are read from.
func WithFS(fs afero.Fs) Option {
	return func(cfg *optionsConfig) {
		cfg.fs = fs
	}
}

// WithLogger attaches a logger. nil selects the no-op logger.
func WithLogger(logger logging.Logger) Option {
	return func(cfg *optionsConfig) {
		cfg.logger = logging.OrNoop(logger)
	}
}

// WithEnvLookup replaces os.LookupEnv for `${env:NAME}` references.
func WithEnvLookup(lookup func(string) (string, bool)) Option {
	return func(cfg *optionsConfig) {
		cfg.lookupEnv = lookup
	}
}

// WithEnvSetter replaces os.Setenv for SetEnv.
func WithEnvSetter(set func(string, string) error) Option {
	return func(cfg *optionsConfig) {
		cfg.setEnv = set
	}
}

// WithDocumentCache reuses resolved file references across loads.
func WithDocumentCache(cache DocumentCache) Option {
	return func(cfg *optionsConfig) {
		cfg.cache = cache
	}
}

// WithStrict fails resolution when tokens are left at the fixed point.
func WithStrict(strict bool) Option {
	return func(cfg *optionsConfig) {
		cfg.strict = strict
	}
}

// WithTimeout bounds a single load with a wall-clock budget.
func WithTimeout(timeout time.Duration) Option {
	return func(cfg *optionsConfig) {
		cfg.timeout = timeout
	}
}

// WithActivityHooks attaches activity hooks notified during resolution.
// Nil entries are dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := hooks.Clone()
	return func(cfg *optionsConfig) {
		cfg.activityHooks = normalized
	}
}

// WithIDGenerator replaces the generator used for `${sls:instanceId}`.
func WithIDGenerator(gen resolve.IDGenerator) Option {
	return func(cfg *optionsConfig) {
		cfg.idGenerator = gen
	}
}

// WithAWSDir sets the default credentials directory used by Env.
func WithAWSDir(dir string) Option {
	return func(cfg *optionsConfig) {
		cfg.awsDir = dir
	}
}
