// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package interpreter

import (
	"fmt"
	"strings"
	"sync"
)

// RenderFunc turns one resolved node (children already built) into an
// element.
type RenderFunc func(node *ResolvedNode) (*Element, error)

// Registration couples a renderer with the prop kinds it expects; declared
// kinds drive string coercion before the renderer runs.
type Registration struct {
	Render    RenderFunc
	PropKinds map[string]PropKind
}

// Registry resolves semantic type names to renderers. Custom registrations
// take precedence over the built-in set, so an output layer (or a plugin)
// may override any built-in type by name. Lookup goes through an alias
// table first; names are case-insensitive.
type Registry struct {
	mu      sync.RWMutex
	aliases map[string]string
	custom  map[string]Registration
	builtin map[string]Registration
}

// Canonical built-in type names.
const (
	TypeContainer = "container"
	TypeText      = "text"
	TypePressable = "pressable"
	TypeList      = "list"
	TypeImage     = "image"
	TypeInput     = "input"
	TypeToggle    = "toggle"
	TypeRow       = "row"
	TypeColumn    = "column"

	// TypePlaceholder is the synthetic type the interpreter emits for
	// unknown types, unsupported versions, empty trees and contained
	// renderer failures.
	TypePlaceholder = "placeholder"
)

// NewRegistry builds a registry with the built-in renderer set and the
// default alias table installed.
func NewRegistry() *Registry {
	r := &Registry{
		aliases: make(map[string]string),
		custom:  make(map[string]Registration),
		builtin: builtinRegistrations(),
	}

	defaults := map[string]string{
		"view":       TypeContainer,
		"group":      TypeContainer,
		"box":        TypeContainer,
		"label":      TypeText,
		"button":     TypePressable,
		"link":       TypePressable,
		"scroll":     TypeList,
		"scrollview": TypeList,
		"scrollable": TypeList,
		"img":        TypeImage,
		"textinput":  TypeInput,
		"text-input": TypeInput,
		"textfield":  TypeInput,
		"switch":     TypeToggle,
		"checkbox":   TypeToggle,
		"radio":      TypeToggle,
		"vstack":     TypeColumn,
		"hstack":     TypeRow,
	}
	for alias, canonical := range defaults {
		r.aliases[alias] = canonical
	}

	return r
}

// RegisterRenderer installs a custom renderer for a type name, shadowing a
// built-in of the same name.
func (r *Registry) RegisterRenderer(name string, reg Registration) error {
	if reg.Render == nil {
		return fmt.Errorf("renderer for %q has no render function", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom[normalizeType(name)] = reg
	return nil
}

// RegisterAlias maps an additional type name onto a canonical one.
func (r *Registry) RegisterAlias(alias, canonical string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[normalizeType(alias)] = normalizeType(canonical)
}

// Resolve maps a type name through the alias table to a renderer. Custom
// registrations win over built-ins.
func (r *Registry) Resolve(typeName string) (Registration, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	canonical := normalizeType(typeName)
	if target, aliased := r.aliases[canonical]; aliased {
		canonical = target
	}

	if reg, ok := r.custom[canonical]; ok {
		return reg, canonical, true
	}
	if reg, ok := r.builtin[canonical]; ok {
		return reg, canonical, true
	}
	return Registration{}, canonical, false
}

func normalizeType(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// builtinRegistrations returns the fixed built-in renderer set. These
// produce structurally complete elements with plain-text views; richer
// output layers register custom renderers over the same names.
func builtinRegistrations() map[string]Registration {
	return map[string]Registration{
		TypeContainer: {Render: renderStack("\n")},
		TypeColumn:    {Render: renderStack("\n")},
		TypeRow:       {Render: renderStack("  ")},
		TypeList: {
			Render:    renderList,
			PropKinds: map[string]PropKind{"limit": PropNumber},
		},
		TypeText: {Render: renderText},
		TypePressable: {
			Render:    renderPressable,
			PropKinds: map[string]PropKind{"disabled": PropBool},
		},
		TypeInput: {
			Render:    renderInput,
			PropKinds: map[string]PropKind{"maxLength": PropNumber},
		},
		TypeToggle: {
			Render:    renderToggle,
			PropKinds: map[string]PropKind{"value": PropBool},
		},
		TypeImage: {
			Render:    renderImage,
			PropKinds: map[string]PropKind{"width": PropNumber, "height": PropNumber},
		},
		TypePlaceholder: {Render: renderPlaceholder},
	}
}

func renderStack(separator string) RenderFunc {
	return func(node *ResolvedNode) (*Element, error) {
		el := node.Element()
		el.View = func(width int) string {
			parts := make([]string, 0, len(el.Children))
			for _, child := range el.Children {
				parts = append(parts, child.Render(width))
			}
			return strings.Join(parts, separator)
		}
		return el, nil
	}
}

func renderList(node *ResolvedNode) (*Element, error) {
	el := node.Element()
	el.View = func(width int) string {
		lines := make([]string, 0, len(el.Children))
		for _, child := range el.Children {
			lines = append(lines, "• "+child.Render(width))
		}
		if el.Lazy {
			lines = append(lines, fmt.Sprintf("… (%d items)", len(el.Children)))
		}
		return strings.Join(lines, "\n")
	}
	return el, nil
}

func renderText(node *ResolvedNode) (*Element, error) {
	el := node.Element()
	el.View = func(int) string {
		return el.StringProp("value")
	}
	return el, nil
}

func renderPressable(node *ResolvedNode) (*Element, error) {
	el := node.Element()
	el.View = func(int) string {
		label := el.StringProp("label")
		if label == "" && len(el.Children) > 0 {
			label = el.Children[0].Render(0)
		}
		if el.BoolProp("disabled") {
			return "( " + label + " )"
		}
		return "[ " + label + " ]"
	}
	return el, nil
}

func renderInput(node *ResolvedNode) (*Element, error) {
	el := node.Element()
	el.View = func(int) string {
		if value := el.StringProp("value"); value != "" {
			return value + "▏"
		}
		return el.StringProp("placeholder") + "▏"
	}
	return el, nil
}

func renderToggle(node *ResolvedNode) (*Element, error) {
	el := node.Element()
	el.View = func(int) string {
		mark := "[ ]"
		if el.BoolProp("value") {
			mark = "[x]"
		}
		if label := el.StringProp("label"); label != "" {
			return mark + " " + label
		}
		return mark
	}
	return el, nil
}

func renderImage(node *ResolvedNode) (*Element, error) {
	el := node.Element()
	el.View = func(int) string {
		return "⌧ " + el.StringProp("src")
	}
	return el, nil
}

func renderPlaceholder(node *ResolvedNode) (*Element, error) {
	el := node.Element()
	el.View = func(width int) string {
		lines := []string{"‹" + el.StringProp("label") + "›"}
		for _, child := range el.Children {
			lines = append(lines, child.Render(width))
		}
		return strings.Join(lines, "\n")
	}
	return el, nil
}
