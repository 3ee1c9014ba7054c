package model

// TimeInfo tracks the in-story time of a chapter
type TimeInfo struct {
	Label    string   `json:"label"`
	Duration string   `json:"duration"`
	Events   []string `json:"events"`
}

// UnknownTimeInfo is the sentinel used when a chapter has no time analysis yet
func UnknownTimeInfo() TimeInfo {
	return TimeInfo{
		Label:    "unknown time",
		Duration: "-",
		Events:   []string{},
	}
}

// Chapter is one entry of the ordered chapter manifest. ID is the stable
// cross-reference used by chunk IDs and retrieval exclusion.
type Chapter struct {
	ID       int      `json:"id"`
	Title    string   `json:"title"`
	VolumeID string   `json:"volume_id"`
	Outline  string   `json:"outline,omitempty"`
	Summary  string   `json:"summary,omitempty"`
	TimeInfo TimeInfo `json:"time_info"`
}

// Volume groups chapters in the manifest
type Volume struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Order int    `json:"order"`
}

// Settings holds the book-level free-form setting texts
type Settings struct {
	WorldView   string `json:"world_view"`
	Characters  string `json:"characters"`
	BookSummary string `json:"book_summary"`
}
