package model

// Relation is a directed social relation stored on the source character only.
// The target side never carries a mirrored entry.
type Relation struct {
	Target string `json:"target"`
	Type   string `json:"type"`
}

// Character represents a character record. Name is the identity key within a
// book: no two characters in the same book share a name.
type Character struct {
	Name      string     `json:"name"`
	Gender    string     `json:"gender,omitempty"`
	Role      string     `json:"role,omitempty"`
	Status    string     `json:"status,omitempty"`
	Bio       string     `json:"bio,omitempty"`
	Relations []Relation `json:"relations"`
}

// RelationTo returns the relation entry pointing at target, or nil
func (c *Character) RelationTo(target string) *Relation {
	for i := range c.Relations {
		if c.Relations[i].Target == target {
			return &c.Relations[i]
		}
	}
	return nil
}
