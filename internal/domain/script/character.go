package script

import "sort"

// Character is one entry of config/characters.yaml
type Character struct {
	Name              string `json:"name" yaml:"name"`
	SpeakerID         *int   `json:"speakerId" yaml:"speakerId"`
	Voice             string `json:"voice,omitempty" yaml:"voice,omitempty"`
	Position          string `json:"position,omitempty" yaml:"position,omitempty"`
	Color             string `json:"color,omitempty" yaml:"color,omitempty"`
	DefaultPauseAfter int    `json:"defaultPauseAfter,omitempty" yaml:"defaultPauseAfter,omitempty"`
}

// Speaker identifies a voice on the synthesis side
type Speaker struct {
	Character string
	ID        int
	// Voice is a backend specific voice name, used by engines without numeric speakers
	Voice string
}

// Roster maps character ids to their configuration
type Roster map[string]Character

// Speaker resolves the synthesis speaker of a character. A character
// missing from the roster or without a speakerId has no mapping.
func (r Roster) Speaker(character string) (Speaker, bool) {
	c, ok := r[character]
	if !ok || c.SpeakerID == nil {
		return Speaker{}, false
	}
	return Speaker{Character: character, ID: *c.SpeakerID, Voice: c.Voice}, true
}

// SpeakerMap returns character -> speaker id for every mapped character
func (r Roster) SpeakerMap() map[string]int {
	m := make(map[string]int)
	for id, c := range r {
		if c.SpeakerID != nil {
			m[id] = *c.SpeakerID
		}
	}
	return m
}

// IDs returns the character ids in a stable order
func (r Roster) IDs() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultRoster is the built-in pair of characters
func DefaultRoster() Roster {
	zundamon, metan := 3, 2
	return Roster{
		"zundamon": {Name: "ずんだもん", SpeakerID: &zundamon, Position: "right", Color: "#228B22", DefaultPauseAfter: 15},
		"metan":    {Name: "四国めたん", SpeakerID: &metan, Position: "left", Color: "#FF1493", DefaultPauseAfter: 15},
	}
}
