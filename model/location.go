package model

// Location represents a place record. Name is the identity key. Neighbors is
// kept symmetric by the reconciler: if A lists B, B lists A. Parent points at
// an enclosing location and stays one-directional.
type Location struct {
	Name      string   `json:"name"`
	Faction   string   `json:"faction,omitempty"`
	Desc      string   `json:"desc,omitempty"`
	Neighbors []string `json:"neighbors"`
	Parent    string   `json:"parent,omitempty"`
}

// HasNeighbor reports whether name is already in the adjacency list
func (l *Location) HasNeighbor(name string) bool {
	for _, n := range l.Neighbors {
		if n == name {
			return true
		}
	}
	return false
}
