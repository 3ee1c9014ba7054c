package model

import (
	"encoding/json"
	"fmt"
)

// FieldUpdate proposes overwriting one field of an existing entity,
// addressed by name
type FieldUpdate struct {
	Name     string `json:"name"`
	Field    string `json:"field"`
	NewValue string `json:"new_value"`
}

// RelationUpdate proposes a directed relation from one character to another
type RelationUpdate struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// LocationConnection proposes adjacency between two locations. The proposal
// lists one direction; the reconciler commits both.
type LocationConnection struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Changeset is an externally produced proposal of entity and relation
// mutations. It is ephemeral: the caller filters it down to the accepted
// subset and the reconciler consumes it exactly once.
type Changeset struct {
	CharUpdates     []FieldUpdate        `json:"char_updates"`
	ItemUpdates     []FieldUpdate        `json:"item_updates"`
	NewChars        []Character          `json:"new_chars"`
	NewItems        []Item               `json:"new_items"`
	NewLocs         []Location           `json:"new_locs"`
	RelationUpdates []RelationUpdate     `json:"relation_updates"`
	LocConnections  []LocationConnection `json:"loc_connections"`
}

// IsEmpty reports whether the changeset proposes nothing
func (c *Changeset) IsEmpty() bool {
	return len(c.CharUpdates) == 0 &&
		len(c.ItemUpdates) == 0 &&
		len(c.NewChars) == 0 &&
		len(c.NewItems) == 0 &&
		len(c.NewLocs) == 0 &&
		len(c.RelationUpdates) == 0 &&
		len(c.LocConnections) == 0
}

// ParseChangeset is the parse boundary for externally produced changesets.
// Unparsable input is rejected wholesale; nothing reaches the reconciler.
func ParseChangeset(data []byte) (*Changeset, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty changeset payload")
	}

	changeset := &Changeset{}
	if err := json.Unmarshal(data, changeset); err != nil {
		return nil, fmt.Errorf("malformed changeset: %w", err)
	}

	return changeset, nil
}
