package slsconfig

import (
	"time"

	"github.com/spf13/afero"

	"github.com/goliatone/go-slsconfig/logging"
	"github.com/goliatone/go-slsconfig/pkg/activity"
	"github.com/goliatone/go-slsconfig/resolve"
)

// DefaultFileName is resolved against the working directory when no path is given.
const DefaultFileName = "serverless.yml"

// Option configures a Config.
type Option func(*optionsConfig)

type optionsConfig struct {
	opt           map[string]string
	force         map[string]any
	forceErr      error
	fs            afero.Fs
	logger        logging.Logger
	lookupEnv     func(string) (string, bool)
	setEnv        func(string, string) error
	cache         DocumentCache
	strict        bool
	timeout       time.Duration
	activityHooks activity.Hooks
	idGenerator   resolve.IDGenerator
	awsDir        string
}

func applyOptions(opts []Option) optionsConfig {
	cfg := optionsConfig{
		opt: map[string]string{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.fs == nil {
		cfg.fs = afero.NewOsFs()
	}
	cfg.logger = logging.OrNoop(cfg.logger)
	return cfg
}

// EnvFormat selects how Env results are rendered by the CLI.
type EnvFormat string

const (
	EnvFormatStandard EnvFormat = "standard"
	EnvFormatArray    EnvFormat = "array"
	EnvFormatDotenv   EnvFormat = "dotenv"
	EnvFormatJSON     EnvFormat = "json"
)

// EnvVar is one entry of the array form of an environment.
type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// WhereLang names a predicate language for EnvOptions.Where.
type WhereLang string

const (
	WhereLangExpr WhereLang = "expr"
	WhereLangCEL  WhereLang = "cel"
)

// EnvOptions filters what Env extracts from the resolved document.
type EnvOptions struct {
	// Functions limits function level variables to the named functions.
	Functions []string
	// Where is a predicate evaluated per function, e.g. `runtime startsWith "nodejs"`
	// in expr or `runtime.startsWith("nodejs")` in CEL.
	Where string
	// WhereLang selects the language Where is written in. Defaults to expr.
	WhereLang WhereLang
	// IgnoreGlobal drops provider.environment.
	IgnoreGlobal bool
	// IgnoreFunctions drops functions.*.environment.
	IgnoreFunctions bool
	// InclAccessCreds adds AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and AWS_REGION.
	InclAccessCreds bool
	// AWSDir overrides ~/.aws for the credentials scraper.
	AWSDir string
}
