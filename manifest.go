package slsconfig

import (
	"context"

	"github.com/goliatone/go-slsconfig/internal/hydrate"
)

// Manifest is a typed view over the parts of a resolved document most tools
// read. Unknown keys are ignored.
type Manifest struct {
	Service   string              `yaml:"service"`
	Provider  Provider            `yaml:"provider"`
	Functions map[string]Function `yaml:"functions"`
	Plugins   []string            `yaml:"plugins"`
	Custom    map[string]any      `yaml:"custom"`
	Resources map[string]any      `yaml:"resources"`
}

// Provider mirrors the provider block.
type Provider struct {
	Name        string         `yaml:"name"`
	Runtime     string         `yaml:"runtime"`
	Region      string         `yaml:"region"`
	Profile     string         `yaml:"profile"`
	Stage       string         `yaml:"stage"`
	Environment map[string]any `yaml:"environment"`
}

// Function mirrors one entry of the functions block.
type Function struct {
	Handler     string           `yaml:"handler"`
	Runtime     string           `yaml:"runtime"`
	Environment map[string]any   `yaml:"environment"`
	Events      []map[string]any `yaml:"events"`
}

// Manifest decodes the resolved document into a Manifest.
func (c *Config) Manifest(ctx context.Context) (Manifest, error) {
	tree, err := c.Document(ctx)
	if err != nil {
		return Manifest{}, err
	}
	decoder := hydrate.NewDecoder(hydrate.WithPreHook[Manifest](flattenServiceName))
	return decoder.Decode(hydrate.Context{File: c.path, Stage: c.cfg.opt["stage"]}, tree)
}

// flattenServiceName accepts the object form `service: {name: x}`.
func flattenServiceName(_ hydrate.Context, tree map[string]any) (map[string]any, error) {
	if service, ok := tree["service"].(map[string]any); ok {
		tree["service"] = service["name"]
	}
	return tree, nil
}
