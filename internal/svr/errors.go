package svr

import "errors"

// Kind classifies engine errors.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConfig is a malformed or missing configuration at construction.
	KindConfig
	// KindUnknownField is a feature spec naming an unregistered field.
	KindUnknownField
	// KindUnknownType is a feature spec naming an unregistered transform.
	KindUnknownType
	// KindInvalidArgument is a request value out of range.
	KindInvalidArgument
	// KindModel is a failure inside the scoring model or feature renderer.
	KindModel
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config error"
	case KindUnknownField:
		return "unknown field"
	case KindUnknownType:
		return "unknown type"
	case KindInvalidArgument:
		return "invalid argument"
	case KindModel:
		return "model error"
	default:
		return "unknown error"
	}
}

// Error is an engine error tagged with a Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches a bare kind sentinel such as ErrInvalidArgument.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Err == nil && t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrConfig          = &Error{Kind: KindConfig}
	ErrUnknownField    = &Error{Kind: KindUnknownField}
	ErrUnknownType     = &Error{Kind: KindUnknownType}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrModel           = &Error{Kind: KindModel}
)

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
