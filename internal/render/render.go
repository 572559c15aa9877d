// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package render is the terminal output layer for the device runtime. It
// registers lipgloss-styled renderers over the interpreter's built-in type
// names, so interpreted trees come out as framed, styled terminal text
// instead of the bare structural dump.
package render

import (
	"fmt"
	"strings"

	"github.com/MKhiriev/go-schema-sync/internal/interpreter"
	"github.com/charmbracelet/lipgloss"
)

// lazyVisible is how many items of a lazily rendered list are materialized
// before the faint "more" tail.
const lazyVisible = 10

// Install registers the terminal renderer set on a registry, shadowing the
// interpreter's plain built-ins.
func Install(registry *interpreter.Registry) error {
	renderers := map[string]interpreter.Registration{
		interpreter.TypeContainer: {Render: stack(lipgloss.Left)},
		interpreter.TypeColumn:    {Render: stack(lipgloss.Left)},
		interpreter.TypeRow:       {Render: row},
		interpreter.TypeText:      {Render: text},
		interpreter.TypePressable: {
			Render:    pressable,
			PropKinds: map[string]interpreter.PropKind{"disabled": interpreter.PropBool},
		},
		interpreter.TypeList: {Render: list},
		interpreter.TypeInput: {
			Render:    input,
			PropKinds: map[string]interpreter.PropKind{"maxLength": interpreter.PropNumber},
		},
		interpreter.TypeToggle: {
			Render:    toggle,
			PropKinds: map[string]interpreter.PropKind{"value": interpreter.PropBool},
		},
		interpreter.TypeImage: {
			Render:    image,
			PropKinds: map[string]interpreter.PropKind{"width": interpreter.PropNumber, "height": interpreter.PropNumber},
		},
		interpreter.TypePlaceholder: {Render: placeholder},
	}

	for name, reg := range renderers {
		if err := registry.RegisterRenderer(name, reg); err != nil {
			return fmt.Errorf("error installing %s renderer: %w", name, err)
		}
	}
	return nil
}

// StatusLine renders the runtime's one-line connection/busy indicator.
func StatusLine(text string) string {
	return statusStyle.Render(text)
}

// Overlay renders a prominent framed message (version warnings, fatal
// errors requiring rejoin).
func Overlay(text string) string {
	return overlayStyle.Render(text)
}

func stack(align lipgloss.Position) interpreter.RenderFunc {
	return func(node *interpreter.ResolvedNode) (*interpreter.Element, error) {
		el := node.Element()
		el.View = func(width int) string {
			parts := childViews(el, width)
			return lipgloss.JoinVertical(align, parts...)
		}
		return el, nil
	}
}

func row(node *interpreter.ResolvedNode) (*interpreter.Element, error) {
	el := node.Element()
	el.View = func(width int) string {
		parts := childViews(el, width)
		for i := range parts {
			if i > 0 {
				parts[i] = "  " + parts[i]
			}
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	}
	return el, nil
}

func text(node *interpreter.ResolvedNode) (*interpreter.Element, error) {
	el := node.Element()
	el.View = func(width int) string {
		style := textStyle
		if width > 0 {
			style = style.MaxWidth(width)
		}
		return style.Render(el.StringProp("value"))
	}
	return el, nil
}

func pressable(node *interpreter.ResolvedNode) (*interpreter.Element, error) {
	el := node.Element()
	el.View = func(width int) string {
		label := el.StringProp("label")
		if label == "" && len(el.Children) > 0 {
			label = el.Children[0].Render(width)
		}
		if el.BoolProp("disabled") {
			return disabledStyle.Render(label)
		}
		return buttonStyle.Render(label)
	}
	return el, nil
}

func list(node *interpreter.ResolvedNode) (*interpreter.Element, error) {
	el := node.Element()
	el.View = func(width int) string {
		visible := el.Children
		var tail string
		if el.Lazy && len(visible) > lazyVisible {
			tail = lazyTailStyle.Render(fmt.Sprintf("… %d more", len(visible)-lazyVisible))
			visible = visible[:lazyVisible]
		}

		lines := make([]string, 0, len(visible)+1)
		for _, child := range visible {
			lines = append(lines, "• "+child.Render(width))
		}
		if tail != "" {
			lines = append(lines, tail)
		}
		return strings.Join(lines, "\n")
	}
	return el, nil
}

func input(node *interpreter.ResolvedNode) (*interpreter.Element, error) {
	el := node.Element()
	el.View = func(int) string {
		value := el.StringProp("value")
		if value == "" {
			value = el.StringProp("placeholder")
		}
		return inputStyle.Render(value + "▏")
	}
	return el, nil
}

func toggle(node *interpreter.ResolvedNode) (*interpreter.Element, error) {
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

func image(node *interpreter.ResolvedNode) (*interpreter.Element, error) {
	el := node.Element()
	el.View = func(int) string {
		alt := el.StringProp("alt")
		if alt == "" {
			alt = el.StringProp("src")
		}
		return imageStyle.Render("⌧ " + alt)
	}
	return el, nil
}

func placeholder(node *interpreter.ResolvedNode) (*interpreter.Element, error) {
	el := node.Element()
	el.View = func(width int) string {
		out := placeholderStyle.Render("‹" + el.StringProp("label") + "›")
		for _, child := range el.Children {
			out = lipgloss.JoinVertical(lipgloss.Left, out, child.Render(width))
		}
		return out
	}
	return el, nil
}

func childViews(el *interpreter.Element, width int) []string {
	parts := make([]string, 0, len(el.Children))
	for _, child := range el.Children {
		parts = append(parts, child.Render(width))
	}
	return parts
}
