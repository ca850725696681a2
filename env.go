package slsconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"sort"

	"github.com/spf13/cast"
	"github.com/subosito/gotenv"

	"github.com/goliatone/go-slsconfig/internal/awscreds"
)

// Env extracts environment variables from the resolved document.
//
// provider.environment is applied first, then the environment of every
// selected function in name order, then AWS credentials when requested.
// Later entries win.
func (c *Config) Env(ctx context.Context, opts EnvOptions) (map[string]string, error) {
	tree, err := c.Document(ctx)
	if err != nil {
		return nil, err
	}
	provider, _ := tree["provider"].(map[string]any)

	out := map[string]string{}
	if !opts.IgnoreGlobal {
		addEnv(out, provider["environment"])
	}

	if !opts.IgnoreFunctions {
		filter, err := newFunctionFilter(opts.Functions, opts.Where, opts.WhereLang)
		if err != nil {
			return nil, err
		}
		functions, _ := tree["functions"].(map[string]any)
		names := make([]string, 0, len(functions))
		for name := range functions {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fn, _ := functions[name].(map[string]any)
			if fn == nil {
				continue
			}
			ok, err := filter.match(name, fn, provider["runtime"])
			if err != nil {
				return nil, err
			}
			if ok {
				addEnv(out, fn["environment"])
			}
		}
	}

	if opts.InclAccessCreds {
		if err := c.addCredentials(out, provider, opts.AWSDir); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Config) addCredentials(out map[string]string, provider map[string]any, dir string) error {
	if dir == "" {
		dir = c.cfg.awsDir
	}
	profile := cast.ToString(provider["profile"])
	creds, found, err := awscreds.Load(c.cfg.fs, dir, profile)
	if err != nil {
		return err
	}
	if found {
		maps.Copy(out, creds.Env())
	} else {
		c.cfg.logger.Warn("slsconfig: no credentials for profile", "profile", profile)
		out["AWS_REGION"] = awscreds.DefaultRegion
	}
	if region := cast.ToString(provider["region"]); region != "" {
		out["AWS_REGION"] = region
	}
	return nil
}

func addEnv(out map[string]string, raw any) {
	vars, ok := raw.(map[string]any)
	if !ok {
		return
	}
	for name, value := range vars {
		out[name] = envValue(value)
	}
}

func envValue(value any) string {
	if value == nil {
		return ""
	}
	if s, err := cast.ToStringE(value); err == nil {
		return s
	}
	if data, err := json.Marshal(value); err == nil {
		return string(data)
	}
	return fmt.Sprint(value)
}

// EnvList returns the extracted variables sorted by name.
func (c *Config) EnvList(ctx context.Context, opts EnvOptions) ([]EnvVar, error) {
	env, err := c.Env(ctx, opts)
	if err != nil {
		return nil, err
	}
	return SortedEnv(env), nil
}

// SortedEnv converts env to a name-ordered list.
func SortedEnv(env map[string]string) []EnvVar {
	out := make([]EnvVar, 0, len(env))
	for name, value := range env {
		out = append(out, EnvVar{Name: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetEnv exports the extracted variables into the process environment, or
// through the setter given with WithEnvSetter.
func (c *Config) SetEnv(ctx context.Context, opts EnvOptions) (map[string]string, error) {
	env, err := c.Env(ctx, opts)
	if err != nil {
		return nil, err
	}
	set := c.cfg.setEnv
	if set == nil {
		set = os.Setenv
	}
	for _, v := range SortedEnv(env) {
		if err := set(v.Name, v.Value); err != nil {
			return nil, fmt.Errorf("slsconfig: set %s: %w", v.Name, err)
		}
	}
	return env, nil
}

// FormatDotenv renders env as a .env file.
func FormatDotenv(env map[string]string) (string, error) {
	return gotenv.Marshal(gotenv.Env(env))
}
