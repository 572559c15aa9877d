// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

// UIDescription is the framework-neutral document describing a UI tree.
// It is produced by editor-side tooling and consumed by the client
// interpreter; the broker treats it as opaque content apart from delta
// computation and checksums.
type UIDescription struct {
	// Version is the description format version (semver).
	Version string `json:"version"`

	Metadata DescriptionMeta `json:"metadata"`

	// Nodes is the ordered root sequence of the tree.
	Nodes []DescriptionNode `json:"nodes"`

	Theme      map[string]any `json:"theme,omitempty"`
	Navigation map[string]any `json:"navigation,omitempty"`
}

// DescriptionMeta records provenance of a description document.
type DescriptionMeta struct {
	// SourceKind names the producer (e.g. "file", "editor", "generator").
	SourceKind string `json:"sourceKind"`

	// SourceRef points back at the source (path, URL, document id).
	SourceRef string `json:"sourceRef"`

	// GeneratedAt is the capture time in epoch milliseconds. It is zeroed
	// before checksum computation so recaptures of identical content hash
	// identically.
	GeneratedAt int64 `json:"generatedAt"`
}

// DescriptionNode is one node of the UI tree. IDs are unique within one
// tree, not globally; the interpreter derives stable rendering keys from
// them.
type DescriptionNode struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	// Props holds arbitrary values. Strings may embed state bindings
	// ("$name", "{{name}}") and objects may describe event bindings; both
	// are resolved by the interpreter, never by the broker.
	Props map[string]any `json:"props,omitempty"`

	Children []DescriptionNode `json:"children,omitempty"`

	State  []StateDecl `json:"state,omitempty"`
	Events []EventDecl `json:"events,omitempty"`

	Metadata NodeMeta `json:"metadata"`
}

// StateDecl declares one state variable owned by a node.
type StateDecl struct {
	Name string `json:"name"`

	// Type is the declared value type: number, string, boolean, or any.
	Type string `json:"type"`

	// Scope is local or global; local declarations shadow global ones.
	Scope string `json:"scope"`

	// Initial is the value the variable takes on first interpretation and
	// after an incompatible migration.
	Initial any `json:"initial,omitempty"`

	Mutable bool `json:"mutable"`
}

// EventDecl declares an event a node emits and the action name it maps to.
type EventDecl struct {
	Name   string `json:"name"`
	Action string `json:"action"`
}

// NodeMeta carries editor-facing metadata about a node.
type NodeMeta struct {
	// Line is the 1-based source line the node was generated from.
	Line int `json:"line"`

	Documentation string `json:"documentation,omitempty"`
}
