package core

import (
	"reflect"

	"github.com/encodeous/dodag/state"
)

func moduleName(m state.NyModule) string {
	return reflect.TypeOf(m).String()
}

// Get returns the module of type T registered on s.
func Get[T state.NyModule](s *state.State) T {
	t := reflect.TypeFor[T]()
	return s.Modules[t.String()].(T)
}
