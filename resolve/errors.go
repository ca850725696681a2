package resolve

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInfiniteLoop is returned when the pass or file depth ceiling is hit,
	// or when a self reference chain leads back to itself.
	ErrInfiniteLoop = errors.New("infinite loop detected")
	// ErrMissingOption is returned for an opt reference with no value and no default.
	ErrMissingOption = errors.New("missing option")
	// ErrMissingSelfTarget is returned when a self reference points nowhere.
	ErrMissingSelfTarget = errors.New("self reference target not found")
	// ErrMissingFile is returned when a document does not exist.
	ErrMissingFile = errors.New("file not found")
	// ErrEmptyFile is returned when a document has no content.
	ErrEmptyFile = errors.New("file is empty")
	// ErrMissingFileValue is returned when a file reference path is absent from the loaded document.
	ErrMissingFileValue = errors.New("file reference target not found")
	// ErrMalformedDocument wraps decoder failures.
	ErrMalformedDocument = errors.New("malformed document")
	// ErrStructuredSplice is returned when a mapping or sequence would be
	// spliced into a string with surrounding text.
	ErrStructuredSplice = errors.New("cannot splice a structured value into a partial string")
	// ErrUnsupportedReference tags warnings for kinds that are parsed but never resolved.
	ErrUnsupportedReference = errors.New("unsupported reference kind")
	// ErrUnresolved is returned in strict mode when tokens survive the fixed point.
	ErrUnresolved = errors.New("unresolved tokens remain")
)

// Error carries the location of a resolution failure.
type Error struct {
	Path   string
	Token  string
	File   string
	Chain  []string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("slsconfig: ")
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString("resolution failed")
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " path=%s", e.Path)
	}
	if e.Token != "" {
		fmt.Fprintf(&b, " token=%q", e.Token)
	}
	if e.File != "" {
		fmt.Fprintf(&b, " file=%s", e.File)
	}
	if len(e.Chain) > 0 {
		fmt.Fprintf(&b, " chain=%s", strings.Join(e.Chain, " -> "))
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsInfiniteLoop reports whether err stems from a cycle or a counter ceiling.
func IsInfiniteLoop(err error) bool {
	return errors.Is(err, ErrInfiniteLoop)
}

// wrapError attaches location fields to err without wrapping an *Error twice.
func wrapError(err error, path, tok, file string) error {
	if err == nil {
		return nil
	}

	var resolveErr *Error
	if errors.As(err, &resolveErr) {
		if resolveErr.Path == "" {
			resolveErr.Path = path
		}
		if resolveErr.Token == "" {
			resolveErr.Token = tok
		}
		if resolveErr.File == "" {
			resolveErr.File = file
		}
		return err
	}

	return &Error{
		Path:  path,
		Token: tok,
		File:  file,
		Err:   err,
	}
}
