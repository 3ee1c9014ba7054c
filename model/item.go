package model

// Item represents an item record. Name is the identity key. Owner refers to a
// character by name but is not enforced as a foreign key.
type Item struct {
	Name  string `json:"name"`
	Type  string `json:"type,omitempty"`
	Owner string `json:"owner,omitempty"`
	Desc  string `json:"desc,omitempty"`
}
