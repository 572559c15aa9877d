package models

// SchemaDelta is the minimal diff between two description trees. Modified
// nodes are full replacements by id; removed entries are ids only.
type SchemaDelta struct {
	Added    []DescriptionNode `json:"added"`
	Modified []DescriptionNode `json:"modified"`
	Removed  []string          `json:"removed"`

	// MetadataChanges carries version/theme/navigation changes that are not
	// attributable to any single node.
	MetadataChanges *MetadataChanges `json:"metadataChanges,omitempty"`
}

// MetadataChanges describes document-level differences between two trees.
// Nil pointer fields mean "unchanged".
type MetadataChanges struct {
	Version    *string        `json:"version,omitempty"`
	Theme      map[string]any `json:"theme,omitempty"`
	Navigation map[string]any `json:"navigation,omitempty"`
}

// Total reports the number of node-level changes. Metadata-only changes do
// not count toward the incremental-update threshold.
func (d *SchemaDelta) Total() int {
	if d == nil {
		return 0
	}
	return len(d.Added) + len(d.Modified) + len(d.Removed)
}

// Empty reports whether the delta contains no changes at all, node-level or
// metadata-level.
func (d *SchemaDelta) Empty() bool {
	return d.Total() == 0 && (d == nil || d.MetadataChanges == nil)
}
