package interpreter

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
)

// PropKind declares the value type a renderer expects for one prop, driving
// string coercion after binding resolution.
type PropKind int

const (
	PropAny PropKind = iota
	PropString
	PropNumber
	PropBool
)

// EventCallback is the invocable form of an event-binding descriptor. The
// data argument carries runtime information from the triggering element
// (input text, list index); it is merged into the bound payload only when
// the descriptor set withData.
type EventCallback func(data map[string]any)

var (
	// dollarBinding matches a string that is exactly one state reference.
	dollarBinding = regexp.MustCompile(`^\$([A-Za-z_][A-Za-z0-9_]*)$`)

	// braceBinding matches embedded {{name}} segments inside a string.
	braceBinding = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)
)

// propResolver substitutes state bindings and event descriptors into prop
// values. It is a pure lookup evaluator over the two binding forms; prop
// strings are never evaluated as code.
type propResolver struct {
	state  *StateStore
	events *EventBridge
}

// resolveProps resolves every prop value, then coerces strings whose target
// kind the renderer declared.
func (r *propResolver) resolveProps(props map[string]any, kinds map[string]PropKind) map[string]any {
	resolved := make(map[string]any, len(props))
	for name, value := range props {
		v := r.resolveValue(value)
		if kind, declared := kinds[name]; declared {
			v = coerceValue(v, kind)
		}
		resolved[name] = v
	}
	return resolved
}

func (r *propResolver) resolveValue(value any) any {
	switch v := value.(type) {
	case string:
		return r.resolveString(v)
	case map[string]any:
		if binding, ok := asEventBinding(v); ok {
			return r.bindEvent(binding)
		}
		resolved := make(map[string]any, len(v))
		for k, elem := range v {
			resolved[k] = r.resolveValue(elem)
		}
		return resolved
	case []any:
		resolved := make([]any, len(v))
		for i, elem := range v {
			resolved[i] = r.resolveValue(elem)
		}
		return resolved
	default:
		return value
	}
}

// resolveString handles the two binding forms. A string that is exactly
// "$name" takes the variable's current value with its native type; a string
// embedding "{{name}}" segments substitutes each one textually. Unresolved
// names yield an empty value, never an error.
func (r *propResolver) resolveString(s string) any {
	if m := dollarBinding.FindStringSubmatch(s); m != nil {
		if v, ok := r.state.Get(m[1]); ok {
			return v
		}
		return ""
	}

	if !braceBinding.MatchString(s) {
		return s
	}
	return braceBinding.ReplaceAllStringFunc(s, func(match string) string {
		name := braceBinding.FindStringSubmatch(match)[1]
		v, ok := r.state.Get(name)
		if !ok || v == nil {
			return ""
		}
		return fmt.Sprint(v)
	})
}

type eventBinding struct {
	action   string
	payload  map[string]any
	async    bool
	withData bool
}

// asEventBinding recognizes the event-binding descriptor shape: an object
// with an "action" string plus only the optional payload/async/withData
// fields. Objects with any other key are plain data.
func asEventBinding(m map[string]any) (eventBinding, bool) {
	action, ok := m["action"].(string)
	if !ok || action == "" {
		return eventBinding{}, false
	}

	b := eventBinding{action: action}
	for key, value := range m {
		switch key {
		case "action":
		case "payload":
			payload, isMap := value.(map[string]any)
			if !isMap && value != nil {
				return eventBinding{}, false
			}
			b.payload = payload
		case "async":
			flag, isBool := value.(bool)
			if !isBool {
				return eventBinding{}, false
			}
			b.async = flag
		case "withData":
			flag, isBool := value.(bool)
			if !isBool {
				return eventBinding{}, false
			}
			b.withData = flag
		default:
			return eventBinding{}, false
		}
	}
	return b, true
}

func (r *propResolver) bindEvent(b eventBinding) EventCallback {
	bridge := r.events
	return func(data map[string]any) {
		payload := copyValues(b.payload)
		if b.withData {
			for k, v := range data {
				payload[k] = v
			}
		}
		if b.async {
			bridge.TriggerEventAsync(context.Background(), b.action, payload)
			return
		}
		bridge.TriggerEvent(b.action, payload)
	}
}

// coerceValue converts string values into the kind the renderer expects.
// Values that cannot be parsed stay as they are except the empty string,
// which becomes the kind's zero value.
func coerceValue(value any, kind PropKind) any {
	s, isString := value.(string)
	if !isString {
		return value
	}

	switch kind {
	case PropNumber:
		if s == "" {
			return float64(0)
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n
		}
	case PropBool:
		if s == "" {
			return false
		}
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return value
}
