package hydrate

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/goliatone/go-slsconfig/document"
)

// Context identifies the document being decoded.
type Context struct {
	File  string
	Stage string
}

// PreHook lets callers mutate or normalise the tree before decoding.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook lets callers adjust or validate the decoded struct.
type PostHook[T any] func(Context, *T) error

// CustomDecoder replaces the default mapstructure decoding when provided.
type CustomDecoder[T any] func(Context, map[string]any) (T, error)

// DecoderOption configures a Decoder instance.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts resolved document trees into typed structs.
type Decoder[T any] struct {
	preHooks  []PreHook
	postHooks []PostHook[T]
	configure []func(*mapstructure.DecoderConfig)
	custom    CustomDecoder[T]
}

// WithPreHook applies hook prior to decoding.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook applies hook after decoding completes.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithErrorUnused fails decoding when the tree has keys T does not declare.
func WithErrorUnused[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.configure = append(d.configure, func(cfg *mapstructure.DecoderConfig) {
			cfg.ErrorUnused = true
		})
	}
}

// WithStrictTypes disables weak conversions such as "512" to int.
func WithStrictTypes[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.configure = append(d.configure, func(cfg *mapstructure.DecoderConfig) {
			cfg.WeaklyTypedInput = false
		})
	}
}

// WithDecoderConfig allows callers to adjust the mapstructure config directly.
func WithDecoderConfig[T any](configure func(*mapstructure.DecoderConfig)) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if configure != nil {
			d.configure = append(d.configure, configure)
		}
	}
}

// WithCustomDecoder replaces the default decoding path.
func WithCustomDecoder[T any](decoder CustomDecoder[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.custom = decoder
	}
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode converts tree into T applying configured hooks. tree is cloned first
// so hooks may mutate freely.
func (d *Decoder[T]) Decode(ctx Context, tree map[string]any) (T, error) {
	var zero T

	if tree == nil {
		return zero, fmt.Errorf("hydrate: document is nil for %q", ctx.File)
	}

	current, _ := document.Clone(tree).(map[string]any)

	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: pre-hook for %q failed: %w", ctx.File, err)
		}
		if next != nil {
			current = next
		}
	}

	var result T
	if d.custom != nil {
		var err error
		result, err = d.custom(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: custom decoder for %q failed: %w", ctx.File, err)
		}
	} else {
		cfg := &mapstructure.DecoderConfig{
			Result:           &result,
			TagName:          "yaml",
			WeaklyTypedInput: true,
		}
		for _, configure := range d.configure {
			if configure != nil {
				configure(cfg)
			}
		}
		decoder, err := mapstructure.NewDecoder(cfg)
		if err != nil {
			return zero, fmt.Errorf("hydrate: configure decoder for %q: %w", ctx.File, err)
		}
		if err := decoder.Decode(current); err != nil {
			return zero, fmt.Errorf("hydrate: decode %q: %w", ctx.File, err)
		}
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, &result); err != nil {
			return zero, fmt.Errorf("hydrate: post-hook for %q failed: %w", ctx.File, err)
		}
	}

	return result, nil
}
