package safe

import (
	"fmt"
	"reflect"

	"github.com/TUK-curriculum/frontend-tuk-navi/logger"
	"github.com/TUK-curriculum/frontend-tuk-navi/tools/errs"
	"go.uber.org/zap"
)

// MustNotNil panics if the given value is nil.
// Useful for enforcing required collaborators during construction.
func MustNotNil(v any, name string) {
	if v == nil {
		panic(fmt.Sprintf("%s must not be nil", name))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			panic(fmt.Sprintf("%s must not be nil", name))
		}
	}
}

// Go starts f on a new goroutine and recovers from a panic in it,
// so that one bad callback doesn't crash the client.
func Go(name string, f func()) {
	go func() {
		defer Recover(name)
		f()
	}()
}

// Recover is meant to be deferred.
func Recover(name string) {
	if r := recover(); r != nil {
		logger.Log.Error("panic recovered",
			zap.String("goroutine", name),
			zap.Error(errs.ErrPanic(r)),
			zap.Stack("stack"))
	}
}
