package unitkit

import (
	"fmt"
	"math"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
)

// T records the outcome of one test case. Assertions never stop the test:
// a failing assertion is recorded and the body keeps running.
type T struct {
	suite    string
	name     string
	rep      *reporter
	failures []string
}

// Name returns the test name.
func (t *T) Name() string { return t.name }

// Suite returns the name of the suite the test belongs to.
func (t *T) Suite() string { return t.suite }

// Failed reports whether any assertion has failed so far.
func (t *T) Failed() bool { return len(t.failures) > 0 }

// Failures returns the recorded failure messages in order.
func (t *T) Failures() []string {
	out := make([]string, len(t.failures))
	copy(out, t.failures)
	return out
}

// Log writes a log line into the report.
func (t *T) Log(args ...any) {
	t.rep.emit(TagLog, fmt.Sprint(args...))
}

// Logf is Log with a format string.
func (t *T) Logf(format string, args ...any) {
	t.rep.emit(TagLog, fmt.Sprintf(format, args...))
}

// check records a failure when ok is false. It must be called directly from
// an exported assertion so the caller location points at the test body.
func (t *T) check(ok bool, format string, args ...any) bool {
	if ok {
		return true
	}
	msg := fmt.Sprintf(format, args...)
	if _, file, line, found := runtime.Caller(2); found {
		msg = fmt.Sprintf("%s:%d: %s", filepath.Base(file), line, msg)
	}
	t.failures = append(t.failures, msg)
	return false
}

func (t *T) recordPanic(v any) {
	t.failures = append(t.failures, Describe(v))
}

// Pass records an explicit success.
func (t *T) Pass() bool { return true }

// Fail records an unconditional failure.
func (t *T) Fail(msg string) bool {
	if msg == "" {
		msg = "failed"
	}
	return t.check(false, "%s", msg)
}

// Failf records an unconditional failure with a formatted message.
func (t *T) Failf(format string, args ...any) bool {
	return t.check(false, format, args...)
}

// True passes when cond holds.
func (t *T) True(cond bool) bool {
	return t.check(cond, "expected true, got false")
}

// False passes when cond does not hold.
func (t *T) False(cond bool) bool {
	return t.check(!cond, "expected false, got true")
}

// Nil passes for nil and for typed nil pointers, maps, slices and the like.
func (t *T) Nil(v any) bool {
	return t.check(isNil(v), "expected nil, got %#v", v)
}

// NotNil is the inverse of Nil.
func (t *T) NotNil(v any) bool {
	return t.check(!isNil(v), "expected a non-nil value")
}

// IntsEqual passes when got equals want.
func (t *T) IntsEqual(want, got int) bool {
	return t.check(want == got, "expected %d, got %d", want, got)
}

// IntsNotEqual fails when a equals b.
func (t *T) IntsNotEqual(a, b int) bool {
	return t.check(a != b, "expected a value other than %d", a)
}

// FloatsEqual passes when got is within delta of want.
func (t *T) FloatsEqual(want, got, delta float64) bool {
	return t.check(math.Abs(want-got) <= delta, "expected %g within %g, got %g", want, delta, got)
}

// FloatsNotEqual passes when a and b differ by more than delta.
func (t *T) FloatsNotEqual(a, b, delta float64) bool {
	return t.check(math.Abs(a-b) > delta, "expected a value more than %g away from %g, got %g", delta, a, b)
}

// ObjectsEqual compares with reflect.DeepEqual.
func (t *T) ObjectsEqual(want, got any) bool {
	return t.check(reflect.DeepEqual(want, got), "expected %#v, got %#v", want, got)
}

// ObjectsNotEqual is the inverse of ObjectsEqual.
func (t *T) ObjectsNotEqual(a, b any) bool {
	return t.check(!reflect.DeepEqual(a, b), "expected a value not equal to %#v", a)
}

// ObjectsSame passes when a and b are the same object: the same pointer,
// map, channel, function or slice backing array. Plain values are the same
// object only when they are comparable and equal.
func (t *T) ObjectsSame(a, b any) bool {
	return t.check(same(a, b), "expected %#v and %#v to be the same object", a, b)
}

// ObjectsNotSame is the inverse of ObjectsSame.
func (t *T) ObjectsNotSame(a, b any) bool {
	return t.check(!same(a, b), "expected distinct objects, got %#v twice", a)
}

// StringsEqual passes when got equals want.
func (t *T) StringsEqual(want, got string) bool {
	return t.check(want == got, "expected %q, got %q", want, got)
}

// StringsNotEqual fails when a equals b.
func (t *T) StringsNotEqual(a, b string) bool {
	return t.check(a != b, "expected a string other than %q", a)
}

// StringContains passes when substr occurs in s.
func (t *T) StringContains(s, substr string) bool {
	return t.check(strings.Contains(s, substr), "expected %q to contain %q", s, substr)
}

// StringDoesNotContain fails when substr occurs in s.
func (t *T) StringDoesNotContain(s, substr string) bool {
	return t.check(!strings.Contains(s, substr), "expected %q not to contain %q", s, substr)
}

// Raises passes when fn panics. The panic is consumed.
func (t *T) Raises(fn func()) bool {
	_, raised := capture(fn)
	return t.check(raised, "expected a panic, got none")
}

// RaisesNamed passes when fn panics with an *Exception called name, or with
// a value whose type name is name.
func (t *T) RaisesNamed(name string, fn func()) bool {
	v, raised := capture(fn)
	if !raised {
		return t.check(false, "expected %s to be raised, got none", name)
	}
	got := exceptionName(v)
	return t.check(got == name, "expected %s to be raised, got %s", name, Describe(v))
}

// DoesNotRaise fails when fn panics. The panic is consumed.
func (t *T) DoesNotRaise(fn func()) bool {
	v, raised := capture(fn)
	if raised {
		return t.check(false, "unexpected panic: %s", Describe(v))
	}
	return true
}

func capture(fn func()) (value any, raised bool) {
	raised = true
	defer func() {
		if raised {
			value = recover()
		}
	}()
	fn()
	raised = false
	return nil, false
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map,
		reflect.Pointer, reflect.Slice, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}

func same(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	if va.Type().Comparable() {
		return a == b
	}
	return false
}
