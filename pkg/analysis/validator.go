package analysis

import (
	"encoding/json"
	"strings"

	"chart-analysis-be/internal/pkg/logger"
)

// ParseState tags how much of the model reply could be recovered.
type ParseState string

const (
	ParseOkComplete ParseState = "PARSE_OK_COMPLETE"
	ParseOkPartial  ParseState = "PARSE_OK_PARTIAL" // legacy field aliases were mapped
	ParseFailed     ParseState = "PARSE_FAILED"     // synthesized from keyword scanning
)

// Closed vocabularies for the structured fields.
const (
	PredictionUp       = "Up"
	PredictionDown     = "Down"
	PredictionSideways = "Sideways"

	SessionAsia   = "Asia"
	SessionLondon = "London"
	SessionNY     = "NY"
	SessionSydney = "Sydney"

	ConfidenceLow    = "Low"
	ConfidenceMedium = "Medium"
	ConfidenceHigh   = "High"
)

// confidenceScores is the fixed tier-to-score mapping exposed to callers.
// The raw model value is never passed through un-normalized.
var confidenceScores = map[string]float64{
	ConfidenceLow:    0.5,
	ConfidenceMedium: 0.7,
	ConfidenceHigh:   0.9,
}

const maxFallbackReasoning = 500

// Result is the validated analysis produced from one model reply. Immutable
// after creation.
type Result struct {
	Prediction string     `json:"prediction"`
	Session    string     `json:"session"`
	Confidence string     `json:"confidence"`
	Reasoning  string     `json:"reasoning"`
	Score      float64    `json:"score"`
	State      ParseState `json:"state"`
	Raw        string     `json:"-"`
}

// Degraded reports whether the result came out of the fallback path, i.e.
// the parse itself should be trusted less than the model text.
func (r *Result) Degraded() bool {
	return r.State == ParseFailed
}

// Validator turns raw model replies into Results. It never returns an error:
// an unparseable reply resolves to a best-effort fallback Result.
type Validator struct {
	logger logger.ILogger
}

func NewValidator(log logger.ILogger) *Validator {
	return &Validator{logger: log}
}

// modelReply accepts both the current field names and the legacy aliases
// older prompt versions produced (direction/rationale). Aliases are resolved
// in one mapping step below, not spread through the codebase.
type modelReply struct {
	Prediction string `json:"prediction"`
	Direction  string `json:"direction"`
	Session    string `json:"session"`
	Confidence string `json:"confidence"`
	Reasoning  string `json:"reasoning"`
	Rationale  string `json:"rationale"`
}

func (v *Validator) Validate(rawText string) *Result {
	cleaned := stripCodeFence(rawText)

	var reply modelReply
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil {
		return v.fallback(rawText)
	}

	state := ParseOkComplete

	prediction := reply.Prediction
	if prediction == "" && reply.Direction != "" {
		prediction = reply.Direction
		state = ParseOkPartial
	}
	reasoning := reply.Reasoning
	if reasoning == "" && reply.Rationale != "" {
		reasoning = reply.Rationale
		state = ParseOkPartial
	}

	if prediction == "" || reply.Session == "" || reply.Confidence == "" || reasoning == "" {
		return v.fallback(rawText)
	}

	confidence := v.normalizeConfidence(reply.Confidence)

	return &Result{
		Prediction: normalizePrediction(prediction),
		Session:    normalizeSession(reply.Session),
		Confidence: confidence,
		Reasoning:  reasoning,
		Score:      confidenceScores[confidence],
		State:      state,
		Raw:        rawText,
	}
}

// fallback keyword-scans the raw text for direction/session/confidence
// vocabulary and truncates the text into the reasoning field, so callers
// always receive a usable Result.
func (v *Validator) fallback(rawText string) *Result {
	lower := strings.ToLower(rawText)

	prediction := PredictionSideways
	switch {
	case containsAny(lower, "down", "bearish", "sell", "short"):
		prediction = PredictionDown
	case containsAny(lower, "up", "bullish", "buy", "long"):
		prediction = PredictionUp
	}

	session := SessionLondon
	switch {
	case strings.Contains(lower, "asia"):
		session = SessionAsia
	case strings.Contains(lower, "sydney"):
		session = SessionSydney
	case containsAny(lower, "new york", "ny session", "ny "):
		session = SessionNY
	case strings.Contains(lower, "london"):
		session = SessionLondon
	}

	confidence := ConfidenceMedium
	switch {
	case containsAny(lower, "high confidence", "very confident", "strong"):
		confidence = ConfidenceHigh
	case containsAny(lower, "low confidence", "uncertain", "weak"):
		confidence = ConfidenceLow
	}

	reasoning := strings.TrimSpace(rawText)
	if len(reasoning) > maxFallbackReasoning {
		reasoning = reasoning[:maxFallbackReasoning] + "..."
	}

	v.logger.Warn("analysis", "Model reply unparseable, synthesized fallback result", map[string]interface{}{
		"prediction": prediction, "session": session, "confidence": confidence,
	})

	return &Result{
		Prediction: prediction,
		Session:    session,
		Confidence: confidence,
		Reasoning:  reasoning,
		Score:      confidenceScores[confidence],
		State:      ParseFailed,
		Raw:        rawText,
	}
}

func (v *Validator) normalizeConfidence(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return ConfidenceLow
	case "medium", "mid", "moderate":
		return ConfidenceMedium
	case "high":
		return ConfidenceHigh
	}
	v.logger.Warn("analysis", "Unknown confidence tier, clamping to Medium", map[string]interface{}{
		"value": raw,
	})
	return ConfidenceMedium
}

func normalizePrediction(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "up", "bullish", "long":
		return PredictionUp
	case "down", "bearish", "short":
		return PredictionDown
	case "sideways", "flat", "neutral", "range":
		return PredictionSideways
	}
	return strings.TrimSpace(raw)
}

func normalizeSession(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "asia", "asian", "tokyo":
		return SessionAsia
	case "london", "lo":
		return SessionLondon
	case "ny", "new york", "newyork":
		return SessionNY
	case "sydney":
		return SessionSydney
	}
	return strings.TrimSpace(raw)
}

// stripCodeFence unwraps replies the model wrapped in markdown fences, a
// common habit of chat-tuned models even when asked for bare JSON.
func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func containsAny(text string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}
