/*
package dep provides utilities for dependency injection.

okay, just the one.
*/
package dep

import (
	"fmt"
	"reflect"
	"runtime"
)

// Required returns t, or panics with the caller's location if t is a zero
// interface or nil pointer.  Wiring bugs should die at construction, not
// as a nil dereference three calls later.
func Required[T any](t T) T {
	v := reflect.ValueOf(t)
	if v.IsValid() && !(v.Kind() == reflect.Pointer && v.IsNil()) {
		return t
	}
	pc, file, line, ok := runtime.Caller(1)
	if !ok {
		panic(fmt.Sprintf("missing required dependency of type %T", t))
	}
	if fn := runtime.FuncForPC(pc); fn != nil {
		panic(fmt.Sprintf("missing required dependency in %s (%s:%d)", fn.Name(), file, line))
	}
	panic(fmt.Sprintf("missing required dependency (%s:%d)", file, line))
}
