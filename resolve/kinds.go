package resolve

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/spf13/cast"

	"github.com/goliatone/go-slsconfig/document"
	"github.com/goliatone/go-slsconfig/pkg/activity"
	"github.com/goliatone/go-slsconfig/token"
)

// outcome of a single lookup attempt.
type outcome int

const (
	skipped outcome = iota
	found
)

// resolve attempts ref and applies the result to the document. visiting is
// the chain of self references currently being looked ahead through.
func (r *run) resolve(ctx context.Context, ref *document.TokenRef, visiting []string) (bool, error) {
	if _, ok := ref.Value(); ok {
		return true, nil
	}

	value, result, err := r.lookup(ctx, ref, visiting)
	if err != nil {
		return false, wrapError(err, ref.DotPath(), ref.Token.Raw, r.req.File)
	}
	if result != found {
		return false, nil
	}
	if err := r.apply(ctx, ref, value); err != nil {
		return false, err
	}
	return true, nil
}

func (r *run) lookup(ctx context.Context, ref *document.TokenRef, visiting []string) (any, outcome, error) {
	switch target := ref.Ref.(type) {
	case token.Opt:
		return r.resolveOpt(target)
	case token.Self:
		return r.resolveSelf(ctx, ref, target, visiting)
	case token.File:
		return r.resolveFile(ctx, target)
	case token.Env:
		return r.resolveEnv(target)
	default:
		r.unsupported(ctx, ref)
		return nil, skipped, nil
	}
}

func (r *run) resolveOpt(ref token.Opt) (any, outcome, error) {
	name := ref.Name()
	if value, ok := r.req.Opt[name]; ok && value != "" {
		return value, found, nil
	}
	if alt, ok := ref.Default(); ok {
		return alt, found, nil
	}
	return nil, skipped, &Error{
		Detail: fmt.Sprintf("option %q has no value and no default", name),
		Err:    ErrMissingOption,
	}
}

func (r *run) resolveEnv(ref token.Env) (any, outcome, error) {
	name := ref.Name()
	if name != "" {
		if value, ok := r.engine.lookupEnv(name); ok {
			return value, found, nil
		}
	}
	if alt, ok := ref.Default(); ok {
		return alt, found, nil
	}
	return "", found, nil
}

func (r *run) resolveSelf(ctx context.Context, ref *document.TokenRef, target token.Self, visiting []string) (any, outcome, error) {
	path := document.FromParts(target.Path)
	if len(path) == 0 {
		return nil, skipped, &Error{Detail: "empty self reference", Err: ErrMissingSelfTarget}
	}
	visiting = append(slices.Clip(visiting), ref.DotPath())
	if path.Covers(ref.Path) {
		return nil, skipped, &Error{
			Chain:  append(visiting, path.String()),
			Detail: fmt.Sprintf("%q refers to itself or to a node containing it", target.DotPath()),
			Err:    ErrInfiniteLoop,
		}
	}

	lookup := r.req.Document.Lookup(path)
	if lookup.Status == document.Pending {
		dep := r.byPath[lookup.PendingAt.String()]
		if dep == nil {
			return nil, r.skip(ctx, ref, "target pending"), nil
		}
		if slices.Contains(visiting, dep.DotPath()) {
			return nil, skipped, &Error{
				Chain:  append(visiting, dep.DotPath()),
				Detail: "self references depend on each other",
				Err:    ErrInfiniteLoop,
			}
		}
		done, err := r.resolve(ctx, dep, visiting)
		if err != nil {
			return nil, skipped, err
		}
		if !done {
			return nil, r.skip(ctx, ref, "target pending"), nil
		}
		lookup = r.req.Document.Lookup(path)
	}

	switch lookup.Status {
	case document.Resolved:
		return lookup.Value, found, nil
	case document.Missing:
		if alt, ok := target.Default(); ok {
			return alt, found, nil
		}
		return nil, skipped, &Error{
			Detail: fmt.Sprintf("%q not found, check for typos", target.DotPath()),
			Err:    ErrMissingSelfTarget,
		}
	default:
		return nil, r.skip(ctx, ref, "target pending"), nil
	}
}

func (r *run) resolveFile(ctx context.Context, ref token.File) (any, outcome, error) {
	path := ref.FilePath
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.req.RootFolder, path)
	}
	if r.engine.loader == nil {
		return nil, skipped, &Error{File: path, Detail: "no file loader configured", Err: ErrMissingFile}
	}
	depth := r.req.Depth + 1
	if depth > MaxDepth {
		return nil, skipped, &Error{
			File:   path,
			Detail: fmt.Sprintf("more than %d nested file references", MaxDepth),
			Err:    ErrInfiniteLoop,
		}
	}

	external, err := r.engine.loader.Load(ctx, path, depth)
	if err != nil {
		return nil, skipped, err
	}
	if isEmpty(external) {
		return nil, skipped, &Error{File: path, Err: ErrEmptyFile}
	}
	if len(ref.Path) == 0 {
		return external, found, nil
	}

	value, ok := document.Get(external, document.FromParts(ref.Path))
	if !ok {
		return nil, skipped, &Error{
			File:   path,
			Detail: fmt.Sprintf("%q not found", ref.DotPath()),
			Err:    ErrMissingFileValue,
		}
	}
	return value, found, nil
}

// apply writes value at ref.Path. Whole-string tokens keep the value type;
// partial ones splice its string form into the raw text.
func (r *run) apply(ctx context.Context, ref *document.TokenRef, value any) error {
	var next any
	if ref.Token.Whole(ref.Raw) {
		next = document.Clone(value)
	} else {
		if document.IsStructured(value) {
			return &Error{
				Path:  ref.DotPath(),
				Token: ref.Token.Raw,
				File:  r.req.File,
				Err:   ErrStructuredSplice,
			}
		}
		next = ref.Token.Splice(ref.Raw, stringify(value))
	}

	if err := r.req.Document.Set(ref.Path, next); err != nil {
		return wrapError(err, ref.DotPath(), ref.Token.Raw, r.req.File)
	}
	ref.SetValue(value)
	r.resolved++

	r.engine.logger.Debug("slsconfig: token resolved",
		"file", r.req.File,
		"pass", r.pass,
		"path", ref.DotPath(),
		"token", ref.Token.Raw,
	)
	r.emit(ctx, activity.BuildTokenResolvedEvent(activity.TokenEventInput{
		File:  r.req.File,
		Path:  ref.DotPath(),
		Kind:  kindName(ref.Ref),
		Token: ref.Token.Raw,
		Pass:  r.pass,
		Value: value,
	}))
	return nil
}

func (r *run) skip(ctx context.Context, ref *document.TokenRef, reason string) outcome {
	r.emit(ctx, activity.BuildTokenSkippedEvent(activity.TokenEventInput{
		File:   r.req.File,
		Path:   ref.DotPath(),
		Kind:   kindName(ref.Ref),
		Token:  ref.Token.Raw,
		Pass:   r.pass,
		Reason: reason,
	}))
	return skipped
}

func (r *run) unsupported(ctx context.Context, ref *document.TokenRef) {
	key := ref.DotPath() + "-" + ref.Raw
	if r.warned[key] {
		return
	}
	r.warned[key] = true

	r.engine.logger.Warn("slsconfig: unsupported reference left unresolved",
		"file", r.req.File,
		"path", ref.DotPath(),
		"token", ref.Token.Raw,
		"kind", kindName(ref.Ref),
		"error", ErrUnsupportedReference,
	)
	r.emit(ctx, activity.BuildTokenUnsupportedEvent(activity.TokenEventInput{
		File:   r.req.File,
		Path:   ref.DotPath(),
		Kind:   kindName(ref.Ref),
		Token:  ref.Token.Raw,
		Pass:   r.pass,
		Reason: ErrUnsupportedReference.Error(),
	}))
}

func kindName(ref token.Reference) string {
	if ref == nil || ref.Kind() == token.KindUnrecognized {
		return "unrecognized"
	}
	return string(ref.Kind())
}

func stringify(value any) string {
	s, err := cast.ToStringE(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return s
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case map[string]any:
		return len(v) == 0
	case []any:
		return len(v) == 0
	case string:
		return v == ""
	}
	return false
}
