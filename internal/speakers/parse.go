package speakers

import (
	"strconv"
	"strings"
)

// ListItem is one entry of a numbered list the soco-cli tool prints for
// favorites, playlists, and radio stations ("3: Morning Jazz").
type ListItem struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
}

// QueueItem is one entry of the queue listing.
type QueueItem struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Album     string `json:"album"`
	IsCurrent bool   `json:"is_current"`
}

// Status words soco-cli prints on their own that must not be mistaken for
// list entries.
var invalidListEntries = map[string]struct{}{
	"on": {}, "off": {}, "stopped": {}, "playing": {}, "paused": {},
	"transitioning": {}, "in progress": {}, "shuffle": {}, "repeat": {},
	"crossfade": {},
}

// ParseNumberedList extracts "N: name" entries from soco-cli output.
// Unparseable lines and known status responses are skipped.
func ParseNumberedList(output string) []ListItem {
	var items []ListItem
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if _, ok := invalidListEntries[strings.ToLower(trimmed)]; ok {
			continue
		}

		colon := strings.Index(trimmed, ":")
		if colon <= 0 {
			continue
		}
		number, err := strconv.Atoi(strings.TrimSpace(trimmed[:colon]))
		if err != nil {
			continue
		}
		name := strings.TrimSpace(trimmed[colon+1:])
		if name == "" {
			continue
		}
		if _, ok := invalidListEntries[strings.ToLower(name)]; ok {
			continue
		}
		items = append(items, ListItem{Number: number, Name: name})
	}
	return items
}

// ParseQueue extracts queue entries from soco-cli output. Lines look like
// "  3: Artist: X | Album: Y | Title: Z", with the current track marked by
// "*" or "*>".
func ParseQueue(output string) []QueueItem {
	var items []QueueItem
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		isCurrent := strings.Contains(line, "*")
		trimmed := strings.ReplaceAll(line, "*>", "")
		trimmed = strings.ReplaceAll(trimmed, "*", "")
		trimmed = strings.TrimSpace(trimmed)

		colon := strings.Index(trimmed, ":")
		if colon <= 0 {
			continue
		}
		number, err := strconv.Atoi(strings.TrimSpace(trimmed[:colon]))
		if err != nil {
			continue
		}
		content := strings.TrimSpace(trimmed[colon+1:])

		item := QueueItem{Number: number, IsCurrent: isCurrent}
		for _, part := range strings.Split(content, "|") {
			part = strings.TrimSpace(part)
			lower := strings.ToLower(part)
			switch {
			case strings.HasPrefix(lower, "artist:"):
				item.Artist = strings.TrimSpace(part[len("artist:"):])
			case strings.HasPrefix(lower, "album:"):
				item.Album = strings.TrimSpace(part[len("album:"):])
			case strings.HasPrefix(lower, "title:"):
				item.Title = strings.TrimSpace(part[len("title:"):])
			}
		}
		// Unstructured lines carry the whole content as the title.
		if item.Title == "" && item.Artist == "" {
			item.Title = content
		}
		items = append(items, item)
	}
	return items
}
