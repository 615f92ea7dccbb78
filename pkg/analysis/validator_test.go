package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chart-analysis-be/internal/pkg/logger"
)

func newTestValidator() *Validator {
	return NewValidator(logger.NewNopLogger())
}

func TestValidateCompleteReply(t *testing.T) {
	v := newTestValidator()

	result := v.Validate(`{"prediction":"Up","session":"London","confidence":"High","reasoning":"test"}`)

	assert.Equal(t, ParseOkComplete, result.State)
	assert.Equal(t, "Up", result.Prediction)
	assert.Equal(t, "London", result.Session)
	assert.Equal(t, "High", result.Confidence)
	assert.Equal(t, "test", result.Reasoning)
	assert.Equal(t, 0.9, result.Score)
	assert.False(t, result.Degraded())
}

func TestValidateMapsLegacyAliases(t *testing.T) {
	v := newTestValidator()

	result := v.Validate(`{"direction":"Down","rationale":"x","session":"NY","confidence":"Low"}`)

	assert.Equal(t, ParseOkPartial, result.State)
	assert.Equal(t, "Down", result.Prediction)
	assert.Equal(t, "x", result.Reasoning)
	assert.Equal(t, "NY", result.Session)
	assert.Equal(t, 0.5, result.Score)
}

func TestValidateFallbackFromFreeText(t *testing.T) {
	v := newTestValidator()

	result := v.Validate("...price likely to break down during London session, high confidence...")

	assert.Equal(t, ParseFailed, result.State)
	assert.Equal(t, "Down", result.Prediction)
	assert.Equal(t, "London", result.Session)
	assert.Equal(t, "High", result.Confidence)
	assert.NotEmpty(t, result.Reasoning)
	assert.True(t, result.Degraded())
}

func TestValidateMissingFieldsFallsBack(t *testing.T) {
	v := newTestValidator()

	result := v.Validate(`{"prediction":"Up"}`)

	assert.Equal(t, ParseFailed, result.State)
}

func TestValidateClampsUnknownConfidence(t *testing.T) {
	v := newTestValidator()

	result := v.Validate(`{"prediction":"Sideways","session":"Asia","confidence":"extreme","reasoning":"r"}`)

	assert.Equal(t, ParseOkComplete, result.State)
	assert.Equal(t, "Medium", result.Confidence)
	assert.Equal(t, 0.7, result.Score)
}

func TestValidateStripsCodeFence(t *testing.T) {
	v := newTestValidator()

	fenced := "```json\n{\"prediction\":\"Down\",\"session\":\"Sydney\",\"confidence\":\"Medium\",\"reasoning\":\"fenced\"}\n```"
	result := v.Validate(fenced)

	assert.Equal(t, ParseOkComplete, result.State)
	assert.Equal(t, "Down", result.Prediction)
	assert.Equal(t, "Sydney", result.Session)
	assert.Equal(t, "fenced", result.Reasoning)
}

func TestValidateNormalizesVocabulary(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name           string
		raw            string
		wantPrediction string
		wantSession    string
	}{
		{"bullish maps to Up", `{"prediction":"bullish","session":"new york","confidence":"High","reasoning":"r"}`, "Up", "NY"},
		{"flat maps to Sideways", `{"prediction":"flat","session":"tokyo","confidence":"Low","reasoning":"r"}`, "Sideways", "Asia"},
		{"short maps to Down", `{"prediction":"short","session":"london","confidence":"Medium","reasoning":"r"}`, "Down", "London"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(tt.raw)
			require.NotEqual(t, ParseFailed, result.State)
			assert.Equal(t, tt.wantPrediction, result.Prediction)
			assert.Equal(t, tt.wantSession, result.Session)
		})
	}
}

func TestValidateTruncatesLongFallbackReasoning(t *testing.T) {
	v := newTestValidator()

	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'a'
	}
	result := v.Validate(string(long))

	assert.Equal(t, ParseFailed, result.State)
	assert.LessOrEqual(t, len(result.Reasoning), maxFallbackReasoning+3)
}
