package runtime

import (
	"strconv"
	"strings"
)

// Stage is the step of the load/register/lookup/call sequence that failed.
type Stage string

const (
	StageConvert  Stage = "convert"
	StageLoad     Stage = "load"
	StageRegister Stage = "register"
	StageLookup   Stage = "lookup"
	StageCall     Stage = "call"
)

// Kind categorizes the failure within a stage.
type Kind string

const (
	KindSyntax        Kind = "syntax"
	KindMalformed     Kind = "malformed"
	KindInvalid       Kind = "invalid"
	KindNameConflict  Kind = "name_conflict"
	KindInstantiation Kind = "instantiation"
	KindNotFound      Kind = "not_found"
	KindArityMismatch Kind = "arity_mismatch"
	KindTypeMismatch  Kind = "type_mismatch"
	KindTrap          Kind = "trap"
	KindInvalidInput  Kind = "invalid_input"
	KindClosed        Kind = "closed"
)

// Sentinels for errors.Is. They match any *Error of the same kind,
// whatever its stage.
var (
	ErrSyntax        = &Error{Kind: KindSyntax}
	ErrMalformed     = &Error{Kind: KindMalformed}
	ErrInvalid       = &Error{Kind: KindInvalid}
	ErrNameConflict  = &Error{Kind: KindNameConflict}
	ErrInstantiation = &Error{Kind: KindInstantiation}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrArityMismatch = &Error{Kind: KindArityMismatch}
	ErrTypeMismatch  = &Error{Kind: KindTypeMismatch}
	ErrTrap          = &Error{Kind: KindTrap}
	ErrInvalidInput  = &Error{Kind: KindInvalidInput}
	ErrClosed        = &Error{Kind: KindClosed}
)

// Error is the structured error returned by every operation in this package.
type Error struct {
	Cause  error
	Stage  Stage
	Kind   Kind
	Name   string // module registration name or export name, when relevant
	Detail string
	Line   int // 1-based source line for conversion errors, 0 if unknown
}

func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Stage))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Name != "" {
		b.WriteString(" ")
		b.WriteString(strconv.Quote(e.Name))
	}
	if e.Line > 0 {
		b.WriteString(" at line ")
		b.WriteString(strconv.Itoa(e.Line))
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on kind, and on stage when the target names one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Stage != "" && t.Stage != e.Stage {
		return false
	}
	return t.Kind == e.Kind
}

func newError(stage Stage, kind Kind, name, detail string, cause error) *Error {
	return &Error{
		Stage:  stage,
		Kind:   kind,
		Name:   name,
		Detail: detail,
		Cause:  cause,
	}
}
