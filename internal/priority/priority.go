// Package priority computes the deterministic urgency score for a ticket
// from its (request type, sentiment, segment) triple.
//
// Scoring runs over the raw Russian labels the NLP model returns, before
// normalization; the model's own priority field is never trusted.
package priority

import "github.com/ticketfire/backend/internal/models"

// Raw Russian labels, exactly as the model returns them. Scoring happens
// against these before the canonical English mapping is applied, because
// the mapping is lossy (several Russian phrasings fold onto one English
// enumerator) and the calibration was done against the originals.
const (
	rawFraud       = "Мошеннические действия"
	rawAppFailure  = "Неработоспособность приложения"
	rawComplaint   = "Жалоба"
	rawClaim       = "Претензия"
	rawDataChange  = "Смена данных"
	rawConsultation = "Консультация"
	rawSpam        = "Спам"

	rawNegative = "Негативная"
	rawNeutral  = "Нейтральная"
	rawPositive = "Положительная"
)

var baseScoreRaw = map[string]int{
	rawFraud:        9,
	rawAppFailure:   7,
	rawComplaint:    6,
	rawClaim:        4,
	rawDataChange:   5,
	rawConsultation: 4,
	rawSpam:         1,
}

var sentimentAdjRaw = map[string]int{
	rawNegative: 2,
	rawNeutral:  0,
	rawPositive: -1,
}

var segmentBonus = map[string]int{
	models.SegmentVIP:      2,
	models.SegmentPriority: 1,
	models.SegmentMass:     0,
}

// ScoreRaw computes priority from the model's raw Russian request_type
// and sentiment labels plus the canonical segment. This is the path
// internal/nlp uses right after parsing the model response, before any
// canonicalization.
func ScoreRaw(rawType, rawSentiment, segment string) int {
	if rawType == rawSpam {
		return 1
	}

	base, ok := baseScoreRaw[rawType]
	if !ok {
		base = 4
	}
	raw := base + sentimentAdjRaw[rawSentiment] + segmentBonus[segment]

	p := clamp(1, 10, raw)
	if rawType == rawFraud {
		p = max(p, 9)
	}
	return p
}

// Canonical English labels mirrored from the raw ones above, for callers
// that only hold the normalized enum and still need a consistent score.
var baseScoreCanonical = map[string]int{
	models.TypeFraudulentActivity: 9,
	models.TypeAppMalfunction:     7,
	models.TypeComplaint:          6,
	models.TypeClaim:              4,
	models.TypeDataChange:         5,
	models.TypeConsultation:       4,
	models.TypeSpam:               1,
}

var sentimentAdjCanonical = map[string]int{
	models.SentimentNegative: 2,
	models.SentimentNeutral:  0,
	models.SentimentPositive: -1,
}

// Score computes priority from canonical English enumerators. Same
// formula and overrides as ScoreRaw, over the mapped vocabulary.
func Score(requestType, sentiment, segment string) int {
	if requestType == models.TypeSpam {
		return 1
	}

	base, ok := baseScoreCanonical[requestType]
	if !ok {
		base = 4
	}
	raw := base + sentimentAdjCanonical[sentiment] + segmentBonus[segment]

	p := clamp(1, 10, raw)
	if requestType == models.TypeFraudulentActivity {
		p = max(p, 9)
	}
	return p
}

func clamp(lo, hi, v int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
