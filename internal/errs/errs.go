// internal/errs/errs.go
package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error kinds. Every error produced by the scoring core wraps exactly one of these,
// so callers can branch with errors.Is.
var (
	// ErrMalformedInput marks text logs or payloads that break tokenizer or grammar rules.
	ErrMalformedInput = errors.New("malformed input")

	// ErrInvalidOperation marks requests that are well-formed but violate a game rule.
	ErrInvalidOperation = errors.New("invalid domain operation")

	// ErrConsistencyMismatch marks a replayed log whose computed scores disagree with the declared ones.
	ErrConsistencyMismatch = errors.New("consistency mismatch")

	// ErrNotFound marks unknown rulesets, players, aliases, sessions or events.
	ErrNotFound = errors.New("not found")
)

// Error carries a kind plus enough context to render a precise message.
// Code is the stable numeric code used by the text-log parser (0 when not applicable).
type Error struct {
	Kind    error
	Code    int
	Message string
	Token   string // offending token, if any
	Line    int    // statement line in a text log, 1-based; 0 if unknown
	Round   int    // round index the error relates to; 0 if unknown
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Code != 0 {
		fmt.Fprintf(&b, " [%d]", e.Code)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Token != "" {
		fmt.Fprintf(&b, " (token %q)", e.Token)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
	}
	if e.Round > 0 {
		fmt.Fprintf(&b, " in round %d", e.Round)
	}
	return b.String()
}

// Unwrap lets errors.Is match the kind sentinel.
func (e *Error) Unwrap() error { return e.Kind }

// Invalid builds an ErrInvalidOperation error.
func Invalid(format string, args ...any) *Error {
	return &Error{Kind: ErrInvalidOperation, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds an ErrNotFound error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

// Malformed builds an ErrMalformedInput error with a parser code.
func Malformed(code int, token, format string, args ...any) *Error {
	return &Error{Kind: ErrMalformedInput, Code: code, Token: token, Message: fmt.Sprintf(format, args...)}
}

// WithCode returns a copy of e carrying a parser code and token.
func (e *Error) WithCode(code int, token string) *Error {
	c := *e
	c.Code = code
	c.Token = token
	return &c
}

// AtLine returns a copy of e annotated with a statement line.
func (e *Error) AtLine(line int) *Error {
	c := *e
	c.Line = line
	return &c
}

// AtRound returns a copy of e annotated with a round index.
func (e *Error) AtRound(round int) *Error {
	c := *e
	c.Round = round
	return &c
}

// MismatchError reports declared vs computed final scores of a replayed log.
type MismatchError struct {
	Declared map[string]int
	Computed map[string]int
}

func (e *MismatchError) Error() string {
	keys := make([]string, 0, len(e.Declared))
	for k := range e.Declared {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var diffs []string
	for _, k := range keys {
		if e.Declared[k] != e.Computed[k] {
			diffs = append(diffs, fmt.Sprintf("%s declared %d, computed %d", k, e.Declared[k], e.Computed[k]))
		}
	}
	return fmt.Sprintf("%s: %s", ErrConsistencyMismatch, strings.Join(diffs, "; "))
}

// Unwrap lets errors.Is match ErrConsistencyMismatch.
func (e *MismatchError) Unwrap() error { return ErrConsistencyMismatch }

// CodeOf extracts the parser code from err, or 0.
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}
