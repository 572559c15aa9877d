package interpreter

import (
	"fmt"
	"strings"

	"github.com/MKhiriev/go-schema-sync/models"
)

// Element is one concrete UI element built from a description node. The
// interpreter produces a tree of these; a renderer set (terminal, headless)
// decides how each one turns into output.
type Element struct {
	// ID is the originating description node's id; synthetic elements
	// (implicit root grouping, placeholders) carry generated ids.
	ID string

	// Key is the stable identity token from the KeyGenerator. Equal keys
	// across rebuilds mean "same element".
	Key string

	// Type is the canonical (alias-resolved) type name.
	Type string

	// Props holds the fully resolved props: bindings substituted, event
	// descriptors turned into EventCallback values, strings coerced.
	Props map[string]any

	Children []*Element

	// Lazy hints that the child list exceeded the virtualization threshold
	// and should not be materialized eagerly by the output layer.
	Lazy bool

	// View renders the element into terminal text. Set by the renderer;
	// when nil, Render falls back to dumping the children.
	View func(width int) string
}

// Render produces the element's terminal representation.
func (e *Element) Render(width int) string {
	if e.View != nil {
		return e.View(width)
	}
	lines := make([]string, 0, len(e.Children))
	for _, child := range e.Children {
		lines = append(lines, child.Render(width))
	}
	return strings.Join(lines, "\n")
}

// StringProp returns a prop as text, empty when absent.
func (e *Element) StringProp(name string) string {
	v, ok := e.Props[name]
	if !ok || v == nil {
		return ""
	}
	if s, isString := v.(string); isString {
		return s
	}
	return fmt.Sprint(v)
}

// BoolProp returns a prop as a boolean, false when absent or non-boolean.
func (e *Element) BoolProp(name string) bool {
	b, _ := e.Props[name].(bool)
	return b
}

// Callback returns the EventCallback resolved for a prop, nil when the prop
// is absent or not an event binding.
func (e *Element) Callback(name string) EventCallback {
	cb, _ := e.Props[name].(EventCallback)
	return cb
}

// ResolvedNode is what a renderer receives: the node's identity, resolved
// props and already-built children. Children always build before their
// parent.
type ResolvedNode struct {
	ID   string
	Type string
	Key  string

	Props map[string]any

	Children []*Element

	// LazyChildren is set when the child list exceeds the lazy threshold.
	LazyChildren bool

	// Callbacks maps declared event names to invocable callbacks routed
	// through the EventBridge.
	Callbacks map[string]EventCallback

	Meta models.NodeMeta
}

// Element materializes the node into a bare element; renderers start from
// this and attach their View.
func (n *ResolvedNode) Element() *Element {
	return &Element{
		ID:       n.ID,
		Key:      n.Key,
		Type:     n.Type,
		Props:    n.Props,
		Children: n.Children,
		Lazy:     n.LazyChildren,
	}
}
