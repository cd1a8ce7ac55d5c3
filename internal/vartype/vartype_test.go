// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package vartype

import "testing"

func TestVariable(t *testing.T) {
	t.Run("zero value is unset", func(t *testing.T) {
		var v VarFloat64
		if v.IsSet() {
			t.Error("expected zero variable to be unset")
		}
		if v.String() != "unknown" {
			t.Errorf("expected string to be %q, got %q", "unknown", v.String())
		}
	})
	t.Run("set and reset", func(t *testing.T) {
		var v VarString
		v.Set("network")
		got, ok := v.Get()
		if !ok || got != "network" {
			t.Errorf("expected set value %q, got %q (set: %t)", "network", got, ok)
		}
		v.Reset()
		if v.IsSet() || v.Value() != "" {
			t.Error("expected reset to clear the variable")
		}
	})
	t.Run("copies are independent", func(t *testing.T) {
		a := NewVariable(20.0)
		b := a
		b.Set(30)
		if a.Value() != 20 {
			t.Errorf("expected original to keep its value, got %f", a.Value())
		}
	})
}
