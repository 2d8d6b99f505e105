package page

import (
	"math"
	"strings"
)

// Role says whether a region is read by the narrator or spoken by a character.
type Role string

const (
	RoleNarration Role = "narration"
	RoleDialogue  Role = "dialogue"
)

// CharacterType is the coarse narrative role assigned by the page classifier.
type CharacterType string

const (
	Hero        CharacterType = "Hero"
	Rival       CharacterType = "Rival"
	Heroine     CharacterType = "Heroine"
	Mentor      CharacterType = "Mentor"
	ComicRelief CharacterType = "ComicRelief"
	Narrator    CharacterType = "Narrator"
	Villain     CharacterType = "Villain"
	Mob         CharacterType = "Mob"
)

func (c CharacterType) String() string {
	return string(c)
}

// Box is [yMin, xMin, yMax, xMax] on the classifier's 0-1000 canvas.
type Box []float64

// Valid reports whether the box has exactly four finite, ordered coordinates.
func (b Box) Valid() bool {
	if len(b) != 4 {
		return false
	}
	for _, v := range b {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b[0] <= b[2] && b[1] <= b[3]
}

func (b Box) YMin() float64 { return b[0] }
func (b Box) XMin() float64 { return b[1] }
func (b Box) YMax() float64 { return b[2] }
func (b Box) XMax() float64 { return b[3] }

// TextRegion is one detected block of text on a page.
type TextRegion struct {
	Box            Box           `json:"box"`
	Role           Role          `json:"role,omitempty"`
	CharacterType  CharacterType `json:"characterType"`
	Character      string        `json:"character,omitempty"`
	VoiceArchetype string        `json:"voiceArchetype,omitempty"`
	Emotion        string        `json:"emotion,omitempty"`
	Text           string        `json:"text"`
	PanelNumber    int           `json:"panelNumber,omitempty"`
	ReadingOrder   int           `json:"readingOrder"`
}

// SpeakerKey is the identifier used to bind a voice: the named character when
// the classifier supplied one, otherwise the character type.
func (r TextRegion) SpeakerKey() string {
	if name := strings.TrimSpace(r.Character); name != "" {
		return name
	}
	return string(r.CharacterType)
}

// ScriptLine is a region placed in final reading order.
type ScriptLine struct {
	TextRegion
}

// Script is an ordered page script.
type Script []ScriptLine

// Regions strips the assigned numbering and returns the underlying regions.
func (s Script) Regions() []TextRegion {
	regions := make([]TextRegion, 0, len(s))
	for _, line := range s {
		r := line.TextRegion
		r.PanelNumber = 0
		r.ReadingOrder = 0
		regions = append(regions, r)
	}
	return regions
}

// Panels returns the number of distinct panels in the script.
func (s Script) Panels() int {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1].PanelNumber
}
