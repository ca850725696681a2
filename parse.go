package slsconfig

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-slsconfig/document"
	"github.com/goliatone/go-slsconfig/layering"
	"github.com/goliatone/go-slsconfig/pkg/activity"
	"github.com/goliatone/go-slsconfig/resolve"
)

type decodeFunc func([]byte) (any, error)

var decoders = map[string]decodeFunc{
	".yml":  decodeYAML,
	".yaml": decodeYAML,
	".json": decodeJSON,
	".toml": decodeTOML,
}

func decoderFor(path string) decodeFunc {
	if decode, ok := decoders[strings.ToLower(filepath.Ext(path))]; ok {
		return decode
	}
	return decodeYAML
}

func decodeYAML(data []byte) (any, error) {
	var out any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeJSON(data []byte) (any, error) {
	var out any
	if err := json.Unmarshal(jsonc.ToJSON(data), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeTOML(data []byte) (any, error) {
	var out map[string]any
	if err := toml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// loader runs the read, prefill, decode, override and resolve pipeline. It
// serves both the entry document and nested file references.
type loader struct {
	cfg     *optionsConfig
	engine  *resolve.Engine
	emitter *activity.Emitter
}

// Load implements resolve.FileLoader for nested references. Overrides never
// apply below the entry document.
func (l *loader) Load(ctx context.Context, path string, depth int) (any, error) {
	return l.load(ctx, path, depth, nil)
}

func (l *loader) load(ctx context.Context, path string, depth int, force map[string]any) (any, error) {
	cacheable := depth > 0 && l.cfg.cache != nil
	if cacheable {
		if cached, ok := l.cfg.cache.Get(path); ok {
			l.emit(ctx, activity.BuildFileLoadedEvent(activity.FileEventInput{File: path, Depth: depth, Cached: true}))
			return cached, nil
		}
	}

	data, err := l.read(path)
	if err != nil {
		return nil, err
	}
	text, err := resolve.PrefillInstanceIDs(string(data), l.cfg.idGenerator)
	if err != nil {
		return nil, &resolve.Error{File: path, Err: err}
	}
	raw, err := decoderFor(path)([]byte(text))
	if err != nil {
		return nil, &resolve.Error{File: path, Err: fmt.Errorf("%w: %w", resolve.ErrMalformedDocument, err)}
	}
	tree := document.Normalize(raw)
	if tree == nil {
		return nil, &resolve.Error{File: path, Err: resolve.ErrEmptyFile}
	}
	tree = applyForce(tree, force)

	l.emit(ctx, activity.BuildFileLoadedEvent(activity.FileEventInput{File: path, Depth: depth}))
	l.cfg.logger.Debug("slsconfig: document loaded", "file", path, "depth", depth)

	doc := document.New(tree)
	report, err := l.engine.Resolve(ctx, resolve.Request{
		Document:   doc,
		RootFolder: filepath.Dir(path),
		File:       path,
		Opt:        l.cfg.opt,
		Depth:      depth,
	})
	if err != nil {
		return nil, err
	}
	l.cfg.logger.Debug("slsconfig: document resolved",
		"file", path,
		"passes", report.Passes,
		"resolved", report.Resolved,
		"unresolved", len(report.Unresolved),
	)

	result := applyForce(doc.Root(), force)
	if cacheable {
		l.cfg.cache.Set(path, result)
	}
	return result, nil
}

func (l *loader) read(path string) ([]byte, error) {
	exists, err := afero.Exists(l.cfg.fs, path)
	if err != nil {
		return nil, &resolve.Error{File: path, Err: err}
	}
	if !exists {
		return nil, &resolve.Error{File: path, Err: resolve.ErrMissingFile}
	}
	data, err := afero.ReadFile(l.cfg.fs, path)
	if err != nil {
		return nil, &resolve.Error{File: path, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &resolve.Error{File: path, Err: resolve.ErrEmptyFile}
	}
	return data, nil
}

func (l *loader) emit(ctx context.Context, event activity.Event) {
	if err := l.emitter.Emit(ctx, event); err != nil {
		l.cfg.logger.Warn("slsconfig: activity hook failed", "error", err)
	}
}

func applyForce(tree any, force map[string]any) any {
	if len(force) == 0 {
		return tree
	}
	if root, ok := tree.(map[string]any); ok {
		return layering.Override(root, force)
	}
	return layering.MergeLayers(force, tree)
}
