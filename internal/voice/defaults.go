package voice

import (
	"strings"

	"koescroll/internal/domain/page"
)

// Premade ElevenLabs voices used as defaults.
const (
	VoiceAdam   = "pNInz6obpgDQGcFmaJgB"
	VoiceAntoni = "ErXwobaYiN019PkySvjV"
	VoiceRachel = "21m00Tcm4TlvDq8ikWAM"
	VoiceArnold = "VR6AewLTigWG4xSOukaG"
	VoiceJosh   = "TxGEqnHWrfWFTfGW9XjX"
	VoiceBella  = "EXAVITQu4vr4xnSDxMaL"
	VoiceElli   = "MF3mGyEYCl7XYWbV9V6O"
	VoiceSam    = "yoZ06aMxZJJ28mfd3POQ"
	VoiceDomi   = "AZnzlk1XvdvUeBnXmlld"
	VoiceClyde  = "2EiwWnXFnvU5JabPnv8n"
	VoiceFin    = "D38z5RcWu1voky8WS1ja"
	VoiceCallum = "N2lVS1w4EtoT3dr4eOWO"

	DefaultVoice = VoiceAdam
)

// Defaults holds the fixed tables consulted when a character has no binding.
// Keys are matched case-insensitively.
type Defaults struct {
	Archetypes map[string]string
	Categories map[string]string
	Fallback   string
}

// StandardDefaults returns the built-in archetype and category tables.
func StandardDefaults() Defaults {
	return Defaults{
		Archetypes: map[string]string{
			"heroic_youth":     VoiceJosh,
			"stoic_warrior":    VoiceArnold,
			"gentle_heroine":   VoiceBella,
			"energetic_girl":   VoiceElli,
			"tsundere":         VoiceDomi,
			"wise_elder":       VoiceClyde,
			"comic_sidekick":   VoiceSam,
			"menacing_villain": VoiceCallum,
			"cold_rival":       VoiceAntoni,
			"gruff_brute":      VoiceArnold,
			"calm_narrator":    VoiceAdam,
			"mischievous":      VoiceFin,
		},
		Categories: map[string]string{
			string(page.Hero):        VoiceJosh,
			string(page.Rival):       VoiceAntoni,
			string(page.Heroine):     VoiceRachel,
			string(page.Mentor):      VoiceClyde,
			string(page.ComicRelief): VoiceSam,
			string(page.Narrator):    VoiceAdam,
			string(page.Villain):     VoiceCallum,
			string(page.Mob):         VoiceFin,
		},
		Fallback: DefaultVoice,
	}
}

// Merge overlays non-empty entries of o onto d.
func (d Defaults) Merge(o Defaults) Defaults {
	out := Defaults{
		Archetypes: normalizeTable(d.Archetypes),
		Categories: normalizeTable(d.Categories),
		Fallback:   d.Fallback,
	}
	for k, v := range normalizeTable(o.Archetypes) {
		out.Archetypes[k] = v
	}
	for k, v := range normalizeTable(o.Categories) {
		out.Categories[k] = v
	}
	if o.Fallback != "" {
		out.Fallback = o.Fallback
	}
	return out
}

func normalizeTable(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out[NormalizeKey(k)] = v
		}
	}
	return out
}

func lookup(table map[string]string, key string) (string, bool) {
	if key == "" {
		return "", false
	}
	if v, ok := table[key]; ok {
		return v, true
	}
	for k, v := range table {
		if NormalizeKey(k) == key {
			return v, true
		}
	}
	return "", false
}

// NormalizeKey lower-cases and trims a character identifier.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
