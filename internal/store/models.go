package store

import "time"

// Macro is a named, parameterized sequence of speaker commands.
// The definition holds step templates separated by " : ", each step being
// "speaker action args..." with positional placeholders {1}..{12}.
type Macro struct {
	Name        string      `json:"name"`
	Definition  string      `json:"definition"`
	Description string      `json:"description,omitempty"`
	Category    string      `json:"category,omitempty"`
	Favorite    bool        `json:"favorite"`
	Parameters  []Parameter `json:"parameters,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Parameter declares one positional macro parameter.
// Positions are 1-based and must be contiguous. The type tag is a display
// hint ("string", "speaker", "volume", ...) and is not enforced.
type Parameter struct {
	Position    int    `json:"position"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
	Default     string `json:"default,omitempty"`
}

// Speaker is the last-known state of a networked playback device.
// It mirrors the live device, not an authoritative record: entries are
// refreshed whenever the proxy answers and served as a fallback when it
// does not.
type Speaker struct {
	Name        string    `json:"name"`
	Address     string    `json:"address,omitempty"`
	Coordinator bool      `json:"coordinator"`
	Group       string    `json:"group,omitempty"`
	Volume      int       `json:"volume"`
	Muted       bool      `json:"muted"`
	Track       string    `json:"track,omitempty"`
	State       string    `json:"state,omitempty"` // "playing", "paused", "stopped"
	SeenAt      time.Time `json:"seen_at"`
}
