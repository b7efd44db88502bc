package main

import (
	"encoding/json"
	"net/http"
	"sort"
)

// ControlDoc describes one command a viewer can send over /ws and the input
// that usually triggers it.
type ControlDoc struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Shortcut    string `json:"shortcut,omitempty"`
	Example     string `json:"example"`
}

var defaultControlDocs = []ControlDoc{
	{
		ID:          "aim-a",
		Label:       "Fire Blue Portal",
		Description: "Cast from the player's centre toward the cursor and open portal A on the first portal-friendly surface.",
		Shortcut:    "Left mouse button",
		Example:     `{"type":"aim","channel":"A","target":{"X":640,"Y":120}}`,
	},
	{
		ID:          "aim-b",
		Label:       "Fire Orange Portal",
		Description: "Same as the blue portal but opens portal B, replacing any previous B.",
		Shortcut:    "Right mouse button",
		Example:     `{"type":"aim","channel":"B","target":{"X":80,"Y":450}}`,
	},
	{
		ID:          "move",
		Label:       "Move",
		Description: "Replace the held movement input. Send again with every flag false to stop.",
		Shortcut:    "A / D, Arrow Left / Arrow Right",
		Example:     `{"type":"move","right":true}`,
	},
	{
		ID:          "jump",
		Label:       "Jump",
		Description: "Jump while grounded. Combine with left or right to jump sideways.",
		Shortcut:    "Space, W",
		Example:     `{"type":"move","jump":true}`,
	},
	{
		ID:          "reset",
		Label:       "Reset Level",
		Description: "Respawn every actor and close both portals.",
		Shortcut:    "Keyboard R",
		Example:     `{"type":"reset"}`,
	},
}

// controlDocsHandler serves the command reference sorted by label.
func controlDocsHandler(w http.ResponseWriter, r *http.Request) {
	docs := append([]ControlDoc(nil), defaultControlDocs...)
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Label == docs[j].Label {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].Label < docs[j].Label
	})
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(docs); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
