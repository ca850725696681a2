package token

import "strings"

// Kind identifies the source a reference reads from.
type Kind string

const (
	KindUnrecognized Kind = ""
	KindSelf         Kind = "self"
	KindOpt          Kind = "opt"
	KindFile         Kind = "file"
	KindSls          Kind = "sls"
	KindEnv          Kind = "env"
	KindCF           Kind = "cf"
	KindS3           Kind = "s3"
	KindSSM          Kind = "ssm"
)

// Reference is the parsed form of a token expression. The concrete type is
// one of Self, Opt, File, Env, Sls, CF, S3, SSM or Unrecognized.
type Reference interface {
	Kind() Kind
	isReference()
}

// Target is the dotted lookup and optional default shared by every
// recognized reference kind.
type Target struct {
	Path   []string
	Alt    string
	HasAlt bool
}

// DotPath joins Path with dots.
func (t Target) DotPath() string {
	return strings.Join(t.Path, ".")
}

// Default returns the fallback literal when one was declared.
func (t Target) Default() (string, bool) {
	return t.Alt, t.HasAlt
}

// Name returns the first path segment, used by opt and env lookups.
func (t Target) Name() string {
	if len(t.Path) == 0 {
		return ""
	}
	return strings.TrimSpace(t.Path[0])
}

type (
	// Self points into the document being resolved.
	Self struct{ Target }
	// Opt points into caller supplied option values.
	Opt struct{ Target }
	// Env points at a process environment variable.
	Env struct{ Target }
	// Sls is a framework variable such as instanceId.
	Sls struct{ Target }
	// CF is a CloudFormation stack output.
	CF struct{ Target }
	// S3 is an object stored in a bucket.
	S3 struct{ Target }
	// SSM is a parameter store entry.
	SSM struct{ Target }
)

// File points into another document. FilePath is relative to the folder of
// the referencing document and Target holds the lookup inside it.
type File struct {
	FilePath string
	Target
}

// Unrecognized holds an expression whose keyword is not part of the grammar.
type Unrecognized struct {
	Keyword string
	Expr    string
}

func (Self) Kind() Kind         { return KindSelf }
func (Opt) Kind() Kind          { return KindOpt }
func (Env) Kind() Kind          { return KindEnv }
func (Sls) Kind() Kind          { return KindSls }
func (CF) Kind() Kind           { return KindCF }
func (S3) Kind() Kind           { return KindS3 }
func (SSM) Kind() Kind          { return KindSSM }
func (File) Kind() Kind         { return KindFile }
func (Unrecognized) Kind() Kind { return KindUnrecognized }

func (Self) isReference()         {}
func (Opt) isReference()          {}
func (Env) isReference()          {}
func (Sls) isReference()          {}
func (CF) isReference()           {}
func (S3) isReference()           {}
func (SSM) isReference()          {}
func (File) isReference()         {}
func (Unrecognized) isReference() {}

// Parse classifies a token expression by its leading keyword.
func Parse(expr string) Reference {
	expr = strings.TrimSpace(expr)
	keyword, rest, ok := splitKeyword(expr)
	if !ok {
		return Unrecognized{Expr: expr}
	}

	switch Kind(keyword) {
	case KindFile:
		return parseFile(expr, rest)
	case KindSelf:
		return Self{parseTarget(rest)}
	case KindOpt:
		return Opt{parseTarget(rest)}
	case KindEnv:
		return Env{parseTarget(rest)}
	case KindSls:
		return Sls{parseTarget(rest)}
	case KindCF:
		return CF{parseTarget(rest)}
	case KindS3:
		return S3{parseTarget(rest)}
	case KindSSM:
		return SSM{parseTarget(rest)}
	}
	return Unrecognized{Keyword: keyword, Expr: expr}
}

func splitKeyword(expr string) (keyword, rest string, ok bool) {
	i := strings.IndexAny(expr, ":(")
	if i <= 0 {
		return "", "", false
	}
	keyword = strings.TrimSpace(expr[:i])
	if expr[i] == '(' {
		return keyword, expr[i:], true
	}
	return keyword, expr[i+1:], true
}

// parseFile handles `file(<path>)[:<dotted.path>]`.
func parseFile(expr, rest string) Reference {
	if !strings.HasPrefix(rest, "(") {
		return Unrecognized{Keyword: string(KindFile), Expr: expr}
	}
	end := strings.Index(rest, ")")
	if end < 0 {
		return Unrecognized{Keyword: string(KindFile), Expr: expr}
	}
	filePath := strings.TrimSpace(rest[1:end])
	if filePath == "" {
		return Unrecognized{Keyword: string(KindFile), Expr: expr}
	}

	ref := File{FilePath: filePath}
	tail := strings.TrimSpace(rest[end+1:])
	switch {
	case tail == "":
	case strings.HasPrefix(tail, ":"):
		ref.Target = parseTarget(tail[1:])
	default:
		return Unrecognized{Keyword: string(KindFile), Expr: expr}
	}
	return ref
}

func parseTarget(rest string) Target {
	body, alt, hasAlt := strings.Cut(rest, ",")
	body = strings.TrimSpace(body)

	var target Target
	if body != "" {
		target.Path = strings.Split(body, ".")
	}
	if hasAlt {
		target.Alt = unquote(strings.TrimSpace(alt))
		target.HasAlt = true
	}
	return target
}

func unquote(value string) string {
	if len(value) < 2 {
		return value
	}
	first, last := value[0], value[len(value)-1]
	if first == last && (first == '\'' || first == '"') {
		return value[1 : len(value)-1]
	}
	return value
}
