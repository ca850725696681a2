package slsconfig

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	celgo "github.com/google/cel-go/cel"
	"github.com/spf13/cast"
)

// predicate evaluates a compiled where clause against one function.
type predicate interface {
	eval(vars map[string]any) (bool, error)
}

// functionFilter decides which functions contribute their environment.
type functionFilter struct {
	names  map[string]struct{}
	where  predicate
	source string
}

func newFunctionFilter(names []string, where string, lang WhereLang) (*functionFilter, error) {
	filter := &functionFilter{source: strings.TrimSpace(where)}
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			if filter.names == nil {
				filter.names = map[string]struct{}{}
			}
			filter.names[name] = struct{}{}
		}
	}
	if filter.source == "" {
		return filter, nil
	}

	var err error
	switch lang {
	case WhereLangExpr, "":
		filter.where, err = compileExpr(filter.source)
	case WhereLangCEL:
		filter.where, err = compileCEL(filter.source)
	default:
		return nil, fmt.Errorf("slsconfig: unknown where language %q", lang)
	}
	if err != nil {
		return nil, fmt.Errorf("slsconfig: compile where %q: %w", filter.source, err)
	}
	return filter, nil
}

// match reports whether fn passes both the name list and the predicate. The
// predicate sees name, handler, runtime, environment and events; runtime
// falls back to the provider runtime.
func (f *functionFilter) match(name string, fn map[string]any, providerRuntime any) (bool, error) {
	if f.names != nil {
		if _, ok := f.names[name]; !ok {
			return false, nil
		}
	}
	if f.where == nil {
		return true, nil
	}

	runtime := cast.ToString(fn["runtime"])
	if runtime == "" {
		runtime = cast.ToString(providerRuntime)
	}
	environment, _ := fn["environment"].(map[string]any)
	if environment == nil {
		environment = map[string]any{}
	}
	events, _ := fn["events"].([]any)
	if events == nil {
		events = []any{}
	}
	vars := map[string]any{
		"name":        name,
		"handler":     cast.ToString(fn["handler"]),
		"runtime":     runtime,
		"environment": environment,
		"events":      events,
	}
	matched, err := f.where.eval(vars)
	if err != nil {
		return false, fmt.Errorf("slsconfig: evaluate where %q for function %s: %w", f.source, name, err)
	}
	return matched, nil
}

type exprPredicate struct {
	program *vm.Program
}

func compileExpr(source string) (predicate, error) {
	program, err := expr.Compile(source, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	return &exprPredicate{program: program}, nil
}

func (p *exprPredicate) eval(vars map[string]any) (bool, error) {
	out, err := expr.Run(p.program, vars)
	if err != nil {
		return false, err
	}
	matched, _ := out.(bool)
	return matched, nil
}

type celPredicate struct {
	program celgo.Program
}

func compileCEL(source string) (predicate, error) {
	env, err := celgo.NewEnv(
		celgo.Variable("name", celgo.StringType),
		celgo.Variable("handler", celgo.StringType),
		celgo.Variable("runtime", celgo.StringType),
		celgo.Variable("environment", celgo.MapType(celgo.StringType, celgo.DynType)),
		celgo.Variable("events", celgo.ListType(celgo.DynType)),
	)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Parse(source)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	checked, issues := env.Check(ast)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if !checked.OutputType().IsExactType(celgo.BoolType) && !checked.OutputType().IsExactType(celgo.DynType) {
		return nil, fmt.Errorf("expression yields %s, want bool", checked.OutputType())
	}
	program, err := env.Program(checked)
	if err != nil {
		return nil, err
	}
	return &celPredicate{program: program}, nil
}

func (p *celPredicate) eval(vars map[string]any) (bool, error) {
	out, _, err := p.program.Eval(vars)
	if err != nil {
		return false, err
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression yields %T, want bool", out.Value())
	}
	return matched, nil
}
