package helper

import "strings"

// Error carries the original error together with the chain of operations
// that were running when it occurred, outermost first.
type Error struct {
	Original error
	Trace    []string
}

// NewError wraps original with trace. Wrapping an *Error prepends
// the trace instead of nesting.
func NewError(trace string, original error) error {
	if e, ok := original.(*Error); ok {
		return &Error{
			Original: e.Original,
			Trace:    append([]string{trace}, e.Trace...),
		}
	}
	return &Error{Original: original, Trace: []string{trace}}
}

func (e *Error) Error() string {
	msg := "<nil>"
	if e.Original != nil {
		msg = e.Original.Error()
	}
	if len(e.Trace) == 0 {
		return msg
	}
	return strings.Join(e.Trace, ": ") + ": " + msg
}

func (e *Error) Unwrap() error {
	return e.Original
}
