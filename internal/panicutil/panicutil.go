// Package panicutil turns panics raised by caller-supplied callbacks into
// ordinary errors so that a misbehaving operation settles its waiters
// instead of tearing down the process from a timer goroutine.
package panicutil

import (
	"github.com/sourcegraph/conc/panics"
)

// Call runs f and returns its error. If f panics, the recovered value is
// returned as a *panics.ErrRecovered error carrying the stack trace.
func Call(f func() error) (err error) {
	var pc panics.Catcher
	pc.Try(func() {
		err = f()
	})
	if r := pc.Recovered(); r != nil {
		return r.AsError()
	}
	return err
}

// Value is the generic form of Call for callbacks that produce a value.
// On panic the zero value is returned with the recovered error.
func Value[T any](f func() (T, error)) (v T, err error) {
	err = Call(func() error {
		var ferr error
		v, ferr = f()
		return ferr
	})
	return v, err
}
