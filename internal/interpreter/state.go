// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package interpreter

import (
	"reflect"
	"strconv"
	"sync"

	"github.com/MKhiriev/go-schema-sync/models"
)

// State variable scopes. Lookups check local first, so local declarations
// shadow global ones of the same name.
const (
	ScopeLocal  = "local"
	ScopeGlobal = "global"
)

// Declared state variable types.
const (
	TypeNumber  = "number"
	TypeString  = "string"
	TypeBoolean = "boolean"
	TypeAny     = "any"
)

// StateListener observes changes to one named variable.
type StateListener func(name string, oldValue, newValue any)

// StateSnapshot is a point-in-time copy of both scopes, taken around an
// update so user-entered values can be restored afterwards.
type StateSnapshot struct {
	Local  map[string]any
	Global map[string]any
}

// StateStore holds the interpreter's state variables in two scopes.
type StateStore struct {
	mu        sync.Mutex
	local     map[string]any
	global    map[string]any
	decls     map[string]models.StateDecl
	listeners map[string][]StateListener

	// changed is the coarse "something changed" notification, independent
	// from per-name listeners. The runtime uses it to schedule rebuilds.
	changed []func()
}

func NewStateStore() *StateStore {
	return &StateStore{
		local:     make(map[string]any),
		global:    make(map[string]any),
		decls:     make(map[string]models.StateDecl),
		listeners: make(map[string][]StateListener),
	}
}

// Get looks a variable up, local scope first.
func (s *StateStore) Get(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.local[name]; ok {
		return v, true
	}
	if v, ok := s.global[name]; ok {
		return v, true
	}
	return nil, false
}

// SetValue writes a variable into its declared scope (local when
// undeclared). Writing a value equal to the current one is a no-op: neither
// per-name listeners nor the coarse change notification fire.
func (s *StateStore) SetValue(name string, value any) {
	s.mu.Lock()

	scope := s.scopeOf(name)
	old, existed := scope[name]
	if existed && valuesEqual(old, value) {
		s.mu.Unlock()
		return
	}
	scope[name] = value

	listeners := append([]StateListener(nil), s.listeners[name]...)
	changed := append([]func(){}, s.changed...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(name, old, value)
	}
	for _, fn := range changed {
		fn()
	}
}

// Subscribe registers a listener for one variable name.
func (s *StateStore) Subscribe(name string, fn StateListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[name] = append(s.listeners[name], fn)
}

// OnChange registers a coarse listener invoked after any effective write.
func (s *StateStore) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changed = append(s.changed, fn)
}

// Declare records variable declarations and seeds initial values for names
// not yet present in their scope. Declaration never notifies.
func (s *StateStore) Declare(decls []models.StateDecl) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range decls {
		s.decls[d.Name] = d
		scope := s.local
		if d.Scope == ScopeGlobal {
			scope = s.global
		}
		if _, exists := scope[d.Name]; !exists {
			scope[d.Name] = d.Initial
		}
	}
}

// Preserve snapshots both scopes.
func (s *StateStore) Preserve() StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StateSnapshot{
		Local:  copyValues(s.local),
		Global: copyValues(s.global),
	}
}

// Restore replaces both scopes with a previously taken snapshot, without
// notifying listeners.
func (s *StateStore) Restore(snap StateSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.local = copyValues(snap.Local)
	s.global = copyValues(snap.Global)
}

// Reset drops all values and declarations.
func (s *StateStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.local = make(map[string]any)
	s.global = make(map[string]any)
	s.decls = make(map[string]models.StateDecl)
}

// Migrate carries values across a schema update. For each new declaration
// the old value is kept when its declared type is convertible to the new
// one; otherwise, and for variables the old schema never declared, the new
// declaration's initial value applies. Variables absent from the new
// declarations are dropped.
func (s *StateStore) Migrate(oldDefs, newDefs []models.StateDecl) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldByName := make(map[string]models.StateDecl, len(oldDefs))
	for _, d := range oldDefs {
		oldByName[d.Name] = d
	}

	local := make(map[string]any)
	global := make(map[string]any)
	decls := make(map[string]models.StateDecl, len(newDefs))

	for _, d := range newDefs {
		decls[d.Name] = d
		value := d.Initial

		if oldDecl, declared := oldByName[d.Name]; declared {
			if oldValue, exists := s.lookupLocked(d.Name); exists {
				if converted, ok := convertValue(oldValue, oldDecl.Type, d.Type); ok {
					value = converted
				}
			}
		}

		if d.Scope == ScopeGlobal {
			global[d.Name] = value
		} else {
			local[d.Name] = value
		}
	}

	s.local = local
	s.global = global
	s.decls = decls
}

func (s *StateStore) lookupLocked(name string) (any, bool) {
	if v, ok := s.local[name]; ok {
		return v, true
	}
	if v, ok := s.global[name]; ok {
		return v, true
	}
	return nil, false
}

func (s *StateStore) scopeOf(name string) map[string]any {
	if d, ok := s.decls[name]; ok && d.Scope == ScopeGlobal {
		return s.global
	}
	if _, ok := s.local[name]; ok {
		return s.local
	}
	if _, ok := s.global[name]; ok {
		return s.global
	}
	return s.local
}

// convertValue decides whether a value declared as oldType may be carried
// into a variable declared as newType, converting representation where the
// types require it. Numeric-to-numeric always carries; strings carry into
// number/boolean by parsing; "any" carries in both directions.
func convertValue(value any, oldType, newType string) (any, bool) {
	if oldType == newType || oldType == TypeAny || newType == TypeAny {
		return value, true
	}

	if oldType == TypeNumber && newType == TypeNumber {
		return value, true
	}

	if oldType == TypeString {
		str, isString := value.(string)
		if !isString {
			return nil, false
		}
		switch newType {
		case TypeNumber:
			if n, err := strconv.ParseFloat(str, 64); err == nil {
				return n, true
			}
		case TypeBoolean:
			if b, err := strconv.ParseBool(str); err == nil {
				return b, true
			}
		}
	}

	return nil, false
}

// valuesEqual goes through reflect.DeepEqual but first normalizes the
// common JSON-decoded numeric case so 1 (int) and 1.0 (float64) compare
// equal.
func valuesEqual(a, b any) bool {
	if fa, okA := asFloat(a); okA {
		if fb, okB := asFloat(b); okB {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func copyValues(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
