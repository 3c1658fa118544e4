package unitkit

import (
	"fmt"
	"strings"
)

// Exception is a named failure raised with Raise.
type Exception struct {
	Name   string
	Reason string
}

func (e *Exception) Error() string {
	return e.Name + ": " + e.Reason
}

// Raise panics with an *Exception carrying name and the formatted reason.
func Raise(name, format string, args ...any) {
	panic(&Exception{Name: name, Reason: fmt.Sprintf(format, args...)})
}

// Describe renders a recovered panic value as "<type>: <message>".
func Describe(v any) string {
	switch e := v.(type) {
	case *Exception:
		return "Exception: " + e.Name + " " + e.Reason
	case error:
		return typeName(v) + ": " + e.Error()
	default:
		return typeName(v) + ": " + fmt.Sprint(v)
	}
}

// exceptionName is the name RaisesNamed matches against.
func exceptionName(v any) string {
	if e, ok := v.(*Exception); ok {
		return e.Name
	}
	return typeName(v)
}

func typeName(v any) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", v), "*")
}
