package narration

import "regexp"

// SimilarityBoost is sent with every request; only stability, style and
// speed vary with the scene.
const SimilarityBoost = 0.75

// Delivery is the speaking style inferred from a line of text.
type Delivery struct {
	Label     string
	Stability float64
	Style     float64
	Speed     float64
}

var (
	DeliveryAction    = Delivery{Label: "action", Stability: 0.3, Style: 0.7, Speed: 1.2}
	DeliveryEmotional = Delivery{Label: "emotional", Stability: 0.4, Style: 0.9, Speed: 0.9}
	DeliveryWhisper   = Delivery{Label: "whisper", Stability: 0.8, Style: 0.1, Speed: 0.8}
	DeliveryNormal    = Delivery{Label: "normal", Stability: 0.6, Style: 0.3, Speed: 1.0}
)

// Checked in order; the first match wins.
var deliveryRules = []struct {
	pattern  *regexp.Regexp
	delivery Delivery
}{
	{regexp.MustCompile(`(?i)!{2,}|\b(attack|fight|run|watch out)\b|\bnow!`), DeliveryAction},
	{regexp.MustCompile(`(?i)\?{2,}|\b(why|please|love|hate|sob)\b|\bno!`), DeliveryEmotional},
	{regexp.MustCompile(`(?i)\.{3}|…|\b(sh+h|quiet|whisper\w*)\b`), DeliveryWhisper},
}

// DetectSceneEmotion classifies text into a delivery profile.
func DetectSceneEmotion(text string) Delivery {
	for _, rule := range deliveryRules {
		if rule.pattern.MatchString(text) {
			return rule.delivery
		}
	}
	return DeliveryNormal
}
