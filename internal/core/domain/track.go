package domain

// Track represents a playable catalog track matched to a symphony.
type Track struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Artist   string   `json:"artist"`
	URL      string   `json:"url"`      // preview audio, may expire
	Keywords []string `json:"keywords"` // never populated
}
