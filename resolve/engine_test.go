package resolve

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-slsconfig/document"
	"github.com/goliatone/go-slsconfig/pkg/activity"
)

func resolveTree(t *testing.T, tree map[string]any, opt map[string]string, opts ...Option) (map[string]any, Report, error) {
	t.Helper()
	doc := document.New(tree)
	report, err := NewEngine(opts...).Resolve(context.Background(), Request{
		Document:   doc,
		RootFolder: "/srv/app",
		File:       "/srv/app/serverless.yml",
		Opt:        opt,
	})
	root, _ := doc.Root().(map[string]any)
	return root, report, err
}

func TestResolveIsIdempotentOnConcreteInput(t *testing.T) {
	tree := map[string]any{
		"service":  "graphql",
		"provider": map[string]any{"name": "aws", "memory": 512},
		"list":     []any{"a", map[string]any{"b": true}},
	}
	want := document.Clone(tree)

	got, report, err := resolveTree(t, tree, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected tree (-want +got):\n%s", diff)
	}
	if report.Passes != 1 || report.Resolved != 0 {
		t.Fatalf("expected a single empty pass, got %+v", report)
	}
}

func TestResolveOptDefaultAndOverride(t *testing.T) {
	cases := []struct {
		name string
		opt  map[string]string
		want string
	}{
		{name: "default", opt: nil, want: "dev"},
		{name: "empty option falls back", opt: map[string]string{"stage": ""}, want: "dev"},
		{name: "override", opt: map[string]string{"stage": "prod"}, want: "prod"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tree := map[string]any{"custom": map[string]any{"stage": "${opt:stage, 'dev'}"}}
			got, _, err := resolveTree(t, tree, tc.opt)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if stage := got["custom"].(map[string]any)["stage"]; stage != tc.want {
				t.Fatalf("expected %q, got %v", tc.want, stage)
			}
		})
	}
}

func TestResolveMissingOptionIsFatal(t *testing.T) {
	tree := map[string]any{"custom": map[string]any{"region": "${opt:region}"}}
	_, _, err := resolveTree(t, tree, nil)
	if !errors.Is(err, ErrMissingOption) {
		t.Fatalf("expected ErrMissingOption, got %v", err)
	}
	var resolveErr *Error
	if !errors.As(err, &resolveErr) || resolveErr.Path != "custom.region" {
		t.Fatalf("expected error at custom.region, got %#v", err)
	}
}

func TestResolveSelfTransitiveAndSplice(t *testing.T) {
	tree := map[string]any{
		"custom":   map[string]any{"stage": `${opt:stage, "dev"}`},
		"provider": map[string]any{"stage": "${self:custom.stage}"},
		"resources": map[string]any{
			"TableName": "user_${self:provider.stage}",
		},
	}

	got, report, err := resolveTree(t, tree, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := map[string]any{
		"custom":    map[string]any{"stage": "dev"},
		"provider":  map[string]any{"stage": "dev"},
		"resources": map[string]any{"TableName": "user_dev"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected tree (-want +got):\n%s", diff)
	}
	if report.Passes > 4 {
		t.Fatalf("expected at most N+1 passes for 3 tokens, got %d", report.Passes)
	}
	if report.Resolved != 3 {
		t.Fatalf("expected 3 substitutions, got %d", report.Resolved)
	}
}

func TestResolveSpliceWithOverride(t *testing.T) {
	tree := map[string]any{
		"provider":  map[string]any{"stage": "${opt:stage}"},
		"TableName": "user_${self:provider.stage}",
	}
	got, _, err := resolveTree(t, tree, map[string]string{"stage": "prod"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got["TableName"] != "user_prod" {
		t.Fatalf("expected user_prod, got %v", got["TableName"])
	}
}

func TestResolveNestedTokenAcrossPasses(t *testing.T) {
	throughput := map[string]any{"ReadCapacityUnits": 2, "WriteCapacityUnits": 2}
	tree := map[string]any{
		"custom": map[string]any{
			"dynamodb": map[string]any{
				"devProvisionedThroughput":  map[string]any{"ReadCapacityUnits": 1, "WriteCapacityUnits": 1},
				"prodProvisionedThroughput": throughput,
			},
		},
		"provider": map[string]any{"stage": "${opt:stage}"},
		"resources": map[string]any{
			"Properties": map[string]any{
				"ProvisionedThroughput": "${self:custom.dynamodb.${self:provider.stage}ProvisionedThroughput}",
			},
		},
	}

	got, report, err := resolveTree(t, tree, map[string]string{"stage": "prod"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	value := got["resources"].(map[string]any)["Properties"].(map[string]any)["ProvisionedThroughput"]
	if diff := cmp.Diff(throughput, value); diff != "" {
		t.Fatalf("unexpected throughput (-want +got):\n%s", diff)
	}
	if report.Passes < 2 {
		t.Fatalf("expected at least two passes, got %d", report.Passes)
	}

	// substituted mappings are copies, not aliases of the source node
	value.(map[string]any)["ReadCapacityUnits"] = 99
	if throughput["ReadCapacityUnits"] != 2 {
		t.Fatalf("expected source mapping untouched")
	}
}

func TestResolveSelfCycleIsInfiniteLoop(t *testing.T) {
	tree := map[string]any{
		"a": "${self:b}",
		"b": "${self:a}",
	}
	_, _, err := resolveTree(t, tree, nil)
	if !IsInfiniteLoop(err) {
		t.Fatalf("expected infinite loop error, got %v", err)
	}
	var resolveErr *Error
	if !errors.As(err, &resolveErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "a"}, resolveErr.Chain); diff != "" {
		t.Fatalf("unexpected chain (-want +got):\n%s", diff)
	}
}

func TestResolveSelfReferencingItselfIsInfiniteLoop(t *testing.T) {
	_, _, err := resolveTree(t, map[string]any{"a": "x-${self:a}"}, nil)
	if !IsInfiniteLoop(err) {
		t.Fatalf("expected infinite loop error, got %v", err)
	}
}

func TestResolveStructuredSelfCycles(t *testing.T) {
	cases := []struct {
		name  string
		tree  map[string]any
		chain []string
	}{
		{
			name:  "target contains the reference",
			tree:  map[string]any{"a": map[string]any{"b": "${self:a}"}},
			chain: []string{"a.b", "a"},
		},
		{
			name: "mappings referencing each other",
			tree: map[string]any{
				"a": map[string]any{"x": "${self:b}"},
				"b": map[string]any{"y": "${self:a}"},
			},
			chain: []string{"a.x", "b.y", "a.x"},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			report, err := NewEngine().Resolve(ctx, Request{Document: document.New(tc.tree), File: "serverless.yml"})
			if !IsInfiniteLoop(err) {
				t.Fatalf("expected infinite loop error after %d passes, got %v", report.Passes, err)
			}
			var resolveErr *Error
			if !errors.As(err, &resolveErr) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if diff := cmp.Diff(tc.chain, resolveErr.Chain); diff != "" {
				t.Fatalf("unexpected chain (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveStructuredSelfWaitsForNestedTokens(t *testing.T) {
	tree := map[string]any{
		"b": "${self:z}",
		"z": map[string]any{"x": "${opt:stage}"},
	}
	got, _, err := resolveTree(t, tree, map[string]string{"stage": "prod"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := map[string]any{"x": "prod"}
	if diff := cmp.Diff(want, got["b"]); diff != "" {
		t.Fatalf("unexpected copy (-want +got):\n%s", diff)
	}
}

func TestResolvePassCeiling(t *testing.T) {
	calls := 0
	loader := FileLoaderFunc(func(_ context.Context, _ string, _ int) (any, error) {
		calls++
		return fmt.Sprintf("${file(./step-%d.yml)}", calls), nil
	})
	doc := document.New(map[string]any{"v": "${file(./step-0.yml)}"})

	report, err := NewEngine(WithFileLoader(loader)).Resolve(context.Background(), Request{
		Document:   doc,
		RootFolder: "/srv/app",
	})
	if !IsInfiniteLoop(err) {
		t.Fatalf("expected infinite loop error, got %v", err)
	}
	if calls != MaxPasses {
		t.Fatalf("expected %d substitutions before the ceiling, got %d", MaxPasses, calls)
	}
	if report.Passes != MaxPasses {
		t.Fatalf("expected report to stop at pass %d, got %d", MaxPasses, report.Passes)
	}
}

func TestResolveMissingSelfTarget(t *testing.T) {
	tree := map[string]any{"provider": map[string]any{"stage": "${self:custom.stgae}"}}
	_, _, err := resolveTree(t, tree, nil)
	if !errors.Is(err, ErrMissingSelfTarget) {
		t.Fatalf("expected ErrMissingSelfTarget, got %v", err)
	}
	if !strings.Contains(err.Error(), "custom.stgae") || !strings.Contains(err.Error(), "provider.stage") {
		t.Fatalf("expected both paths in message, got %q", err.Error())
	}
}

func TestResolveSelfDefaultCoversMissingTarget(t *testing.T) {
	tree := map[string]any{"region": "${self:provider.region, 'us-east-1'}"}
	got, _, err := resolveTree(t, tree, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got["region"] != "us-east-1" {
		t.Fatalf("expected default, got %v", got["region"])
	}
}

func TestResolveWholeTokenKeepsType(t *testing.T) {
	tree := map[string]any{
		"custom":  map[string]any{"memory": 512, "debug": true},
		"memory":  "${self:custom.memory}",
		"debug":   "${self:custom.debug}",
		"label":   "mem-${self:custom.memory}",
		"flagged": "debug=${self:custom.debug}",
	}
	got, _, err := resolveTree(t, tree, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got["memory"] != 512 || got["debug"] != true {
		t.Fatalf("expected typed values, got %v %v", got["memory"], got["debug"])
	}
	if got["label"] != "mem-512" || got["flagged"] != "debug=true" {
		t.Fatalf("expected spliced strings, got %v %v", got["label"], got["flagged"])
	}
}

func TestResolveStructuredSpliceIsAnError(t *testing.T) {
	tree := map[string]any{
		"custom": map[string]any{"obj": map[string]any{"a": 1}},
		"name":   "prefix_${self:custom.obj}",
	}
	_, _, err := resolveTree(t, tree, nil)
	if !errors.Is(err, ErrStructuredSplice) {
		t.Fatalf("expected ErrStructuredSplice, got %v", err)
	}
}

func TestResolveEnvFallsBackToEmpty(t *testing.T) {
	lookup := func(name string) (string, bool) {
		if name == "SET_VAR" {
			return "value", true
		}
		return "", false
	}
	tree := map[string]any{
		"unset":     "${env:UNSET_VAR_XYZ}",
		"set":       "${env:SET_VAR}",
		"defaulted": "${env:UNSET_VAR_XYZ, 'fallback'}",
		"spliced":   "pre-${env:UNSET_VAR_XYZ}-post",
	}
	got, _, err := resolveTree(t, tree, nil, WithEnvLookup(lookup))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := map[string]any{
		"unset":     "",
		"set":       "value",
		"defaulted": "fallback",
		"spliced":   "pre--post",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected tree (-want +got):\n%s", diff)
	}
}

func TestResolveFileReferenceExtraction(t *testing.T) {
	var requested []string
	loader := FileLoaderFunc(func(_ context.Context, path string, depth int) (any, error) {
		requested = append(requested, path)
		if depth != 1 {
			t.Fatalf("expected depth 1, got %d", depth)
		}
		return map[string]any{"CREDS": map[string]any{"key": "abc"}}, nil
	})
	tree := map[string]any{
		"key":   "${file(../creds.yml):CREDS.key}",
		"whole": "${file(../creds.yml)}",
	}
	got, _, err := resolveTree(t, tree, nil, WithFileLoader(loader))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got["key"] != "abc" {
		t.Fatalf("expected abc, got %v", got["key"])
	}
	if diff := cmp.Diff(map[string]any{"CREDS": map[string]any{"key": "abc"}}, got["whole"]); diff != "" {
		t.Fatalf("unexpected whole document (-want +got):\n%s", diff)
	}
	want := filepath.Join("/srv", "creds.yml")
	for _, path := range requested {
		if path != want {
			t.Fatalf("expected %s, got %s", want, path)
		}
	}
}

func TestResolveFileErrors(t *testing.T) {
	cases := []struct {
		name   string
		loaded any
		token  string
		want   error
	}{
		{name: "empty", loaded: map[string]any{}, token: "${file(./a.yml)}", want: ErrEmptyFile},
		{name: "nil", loaded: nil, token: "${file(./a.yml):x}", want: ErrEmptyFile},
		{name: "missing value", loaded: map[string]any{"x": 1}, token: "${file(./a.yml):y.z}", want: ErrMissingFileValue},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			loader := FileLoaderFunc(func(context.Context, string, int) (any, error) { return tc.loaded, nil })
			_, _, err := resolveTree(t, map[string]any{"v": tc.token}, nil, WithFileLoader(loader))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	failing := FileLoaderFunc(func(context.Context, string, int) (any, error) {
		return nil, &Error{File: "/srv/a.yml", Err: ErrMissingFile}
	})
	_, _, err := resolveTree(t, map[string]any{"v": "${file(./a.yml)}"}, nil, WithFileLoader(failing))
	var resolveErr *Error
	if !errors.As(err, &resolveErr) || resolveErr.File != "/srv/a.yml" || resolveErr.Path != "v" {
		t.Fatalf("expected loader error annotated with path, got %#v", err)
	}
}

func TestResolveFileDepthCeiling(t *testing.T) {
	doc := document.New(map[string]any{"v": "${file(./loop.yml)}"})
	loader := FileLoaderFunc(func(context.Context, string, int) (any, error) {
		t.Fatalf("loader should not be called past the depth ceiling")
		return nil, nil
	})
	_, err := NewEngine(WithFileLoader(loader)).Resolve(context.Background(), Request{
		Document: doc,
		Depth:    MaxDepth,
	})
	if !IsInfiniteLoop(err) {
		t.Fatalf("expected infinite loop error, got %v", err)
	}
}

func TestResolveUnsupportedKindsWarnAndPassThrough(t *testing.T) {
	capture := &activity.CaptureHook{}
	warnings := &recordingLogger{}
	tree := map[string]any{
		"arn":    "${cf:stack.Output}",
		"secret": "${ssm:/app/secret}",
		"blob":   "${s3:bucket/key}",
		"other":  "${vault:secret}",
		"stage":  "${opt:stage, 'dev'}",
	}

	got, report, err := resolveTree(t, tree, nil,
		WithLogger(warnings),
		WithEmitter(activity.NewEmitter(activity.Hooks{capture}, activity.Config{Enabled: true})),
	)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got["arn"] != "${cf:stack.Output}" || got["stage"] != "dev" {
		t.Fatalf("unexpected tree: %v", got)
	}
	if diff := cmp.Diff([]string{"arn", "blob", "other", "secret"}, report.Unresolved); diff != "" {
		t.Fatalf("unexpected unresolved list (-want +got):\n%s", diff)
	}

	unsupported := capture.ByVerb(activity.VerbTokenUnsupported)
	if len(unsupported) != 4 {
		t.Fatalf("expected one unsupported event per token, got %d", len(unsupported))
	}
	kinds := map[string]string{}
	for _, event := range unsupported {
		kinds[event.ObjectID] = event.Kind
	}
	want := map[string]string{"arn": "cf", "secret": "ssm", "blob": "s3", "other": "unrecognized"}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Fatalf("unexpected kinds (-want +got):\n%s", diff)
	}
	if warnings.count("slsconfig: unsupported reference left unresolved") != 4 {
		t.Fatalf("expected one warning per token, got %v", warnings.messages)
	}
	if len(capture.ByVerb(activity.VerbTokenResolved)) != 1 {
		t.Fatalf("expected the opt token to be reported as resolved")
	}
}

func TestResolveStrictFailsOnLeftovers(t *testing.T) {
	_, _, err := resolveTree(t, map[string]any{"arn": "${cf:stack.Output}"}, nil, WithStrict(true))
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved, got %v", err)
	}
}

func TestResolveHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEngine().Resolve(ctx, Request{Document: document.New(map[string]any{"a": "${opt:x, 'y'}"})})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSignatureIsOrderIndependent(t *testing.T) {
	a := document.Discover(map[string]any{"x": "${opt:a}", "y": "${opt:b}"})
	b := []*document.TokenRef{a[1], a[0]}
	if Signature(a) != Signature(b) {
		t.Fatalf("expected equal signatures")
	}
	if Signature(a) != "x-${opt:a}_y-${opt:b}" {
		t.Fatalf("unexpected signature %q", Signature(a))
	}
}

type recordingLogger struct {
	messages []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.messages = append(l.messages, msg)
}
func (l *recordingLogger) Error(msg string, _ ...any) {
	l.messages = append(l.messages, msg)
}

func (l *recordingLogger) count(msg string) int {
	n := 0
	for _, m := range l.messages {
		if m == msg {
			n++
		}
	}
	return n
}
