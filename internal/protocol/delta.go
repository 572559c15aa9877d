// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package protocol

import (
	"bytes"

	"github.com/MKhiriev/go-schema-sync/models"
)

// DefaultDeltaThreshold is the changed-node count at which the dispatcher
// stops sending deltas and falls back to a full update.
const DefaultDeltaThreshold = 10

// CalculateDelta computes the minimal diff between two description trees.
//
// The unit of change is a root-sequence node together with its whole
// subtree: ids present only in newSchema are added, ids present in both but
// structurally unequal are modified (full replacement), ids present only in
// oldSchema are removed. Version, theme and navigation are compared
// separately into MetadataChanges.
//
// Added and modified entries follow newSchema's declared order; removed ids
// follow oldSchema's.
func CalculateDelta(oldSchema, newSchema *models.UIDescription) *models.SchemaDelta {
	delta := &models.SchemaDelta{
		Added:    []models.DescriptionNode{},
		Modified: []models.DescriptionNode{},
		Removed:  []string{},
	}
	if oldSchema == nil || newSchema == nil {
		return delta
	}

	oldIndex := make(map[string]*models.DescriptionNode, len(oldSchema.Nodes))
	for i := range oldSchema.Nodes {
		oldIndex[oldSchema.Nodes[i].ID] = &oldSchema.Nodes[i]
	}
	newIndex := make(map[string]*models.DescriptionNode, len(newSchema.Nodes))
	for i := range newSchema.Nodes {
		newIndex[newSchema.Nodes[i].ID] = &newSchema.Nodes[i]
	}

	for i := range newSchema.Nodes {
		node := &newSchema.Nodes[i]
		prev, existed := oldIndex[node.ID]
		switch {
		case !existed:
			delta.Added = append(delta.Added, *node)
		case !NodesEqual(prev, node):
			delta.Modified = append(delta.Modified, *node)
		}
	}

	for i := range oldSchema.Nodes {
		if _, kept := newIndex[oldSchema.Nodes[i].ID]; !kept {
			delta.Removed = append(delta.Removed, oldSchema.Nodes[i].ID)
		}
	}

	delta.MetadataChanges = metadataChanges(oldSchema, newSchema)

	return delta
}

// NodesEqual reports whether two nodes are structurally equal, children
// included. Cheap shape checks (type, child count, prop-key count) run
// first so large trees short-circuit before the full comparison.
func NodesEqual(a, b *models.DescriptionNode) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Type != b.Type {
		return false
	}
	if len(a.Children) != len(b.Children) {
		return false
	}
	if len(a.Props) != len(b.Props) {
		return false
	}

	// Full structural comparison over the canonical serialization. Going
	// through JSON makes hand-built trees (int props) and decoded trees
	// (float64 props) compare by value rather than by Go type.
	rawA, errA := canonicalJSON(a)
	rawB, errB := canonicalJSON(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(rawA, rawB)
}

// ShouldUseIncremental reports whether a delta is worth sending instead of a
// full update: true iff the node-level change count is strictly between
// zero and threshold. Zero changes mean nothing to send; threshold or more
// mean a full update is cheaper to apply.
func ShouldUseIncremental(delta *models.SchemaDelta, threshold int) bool {
	if threshold <= 0 {
		threshold = DefaultDeltaThreshold
	}
	total := delta.Total()
	return total > 0 && total < threshold
}

// ApplyDelta produces the tree that results from patching base with delta.
// Modified nodes are replaced in place, added nodes are appended in delta
// order, removed ids are dropped. base is not mutated.
func ApplyDelta(base *models.UIDescription, delta *models.SchemaDelta) *models.UIDescription {
	if base == nil {
		return nil
	}
	next := *base
	if delta == nil {
		next.Nodes = append([]models.DescriptionNode(nil), base.Nodes...)
		return &next
	}

	modified := make(map[string]*models.DescriptionNode, len(delta.Modified))
	for i := range delta.Modified {
		modified[delta.Modified[i].ID] = &delta.Modified[i]
	}
	removed := make(map[string]struct{}, len(delta.Removed))
	for _, id := range delta.Removed {
		removed[id] = struct{}{}
	}

	nodes := make([]models.DescriptionNode, 0, len(base.Nodes)+len(delta.Added))
	for i := range base.Nodes {
		id := base.Nodes[i].ID
		if _, gone := removed[id]; gone {
			continue
		}
		if repl, ok := modified[id]; ok {
			nodes = append(nodes, *repl)
			continue
		}
		nodes = append(nodes, base.Nodes[i])
	}
	nodes = append(nodes, delta.Added...)
	next.Nodes = nodes

	if mc := delta.MetadataChanges; mc != nil {
		if mc.Version != nil {
			next.Version = *mc.Version
		}
		if mc.Theme != nil {
			next.Theme = mc.Theme
		}
		if mc.Navigation != nil {
			next.Navigation = mc.Navigation
		}
	}

	return &next
}

func metadataChanges(oldSchema, newSchema *models.UIDescription) *models.MetadataChanges {
	var mc models.MetadataChanges
	changed := false

	if oldSchema.Version != newSchema.Version {
		v := newSchema.Version
		mc.Version = &v
		changed = true
	}
	if !genericEqual(oldSchema.Theme, newSchema.Theme) {
		mc.Theme = newSchema.Theme
		changed = true
	}
	if !genericEqual(oldSchema.Navigation, newSchema.Navigation) {
		mc.Navigation = newSchema.Navigation
		changed = true
	}

	if !changed {
		return nil
	}
	return &mc
}

func genericEqual(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	rawA, errA := canonicalJSON(a)
	rawB, errB := canonicalJSON(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(rawA, rawB)
}
