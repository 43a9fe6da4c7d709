package core

import (
	"reflect"

	"github.com/encodeous/wireline/state"
)

// AddCost adds link costs, saturating at state.INF.
func AddCost(a, b int) int {
	if a >= state.INF || b >= state.INF {
		return state.INF
	}
	return min(state.INF, a+b)
}

func Get[T state.NyModule](s *state.State) T {
	t := reflect.TypeFor[T]()
	return s.Modules[t.String()].(T)
}
