package analyzer

import (
	"strings"

	"github.com/otherjamesbrown/scribe-cli/pkg/logging"
)

// turnTypeSynonyms maps type labels the model drifts into back to the
// canonical set.
var turnTypeSynonyms = map[string]string{
	"statement":   TurnTypeMonologue,
	"comment":     TurnTypeMonologue,
	"discussion":  TurnTypeMonologue,
	"context":     TurnTypeMonologue,
	"other":       TurnTypeMonologue,
	"response":    TurnTypeAnswer,
	"reply":       TurnTypeAnswer,
	"follow-up":   TurnTypeFollowup,
	"follow up":   TurnTypeFollowup,
	"questioning": TurnTypeQuestion,
}

var allowedTurnTypes = map[string]bool{
	TurnTypeQuestion:     true,
	TurnTypeAnswer:       true,
	TurnTypeFollowup:     true,
	TurnTypeMonologue:    true,
	TurnTypeHousekeeping: true,
}

// NormalizeTurns repairs model output in place: unknown turn types collapse
// to monologue, question likelihoods clamp to [0, 1], and missing idx values
// are backfilled sequentially.
func NormalizeTurns(turns []Turn, logger logging.Logger) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	for i := range turns {
		t := &turns[i]

		typeKey := strings.ToLower(strings.TrimSpace(t.Type))
		switch {
		case allowedTurnTypes[typeKey]:
			t.Type = typeKey
		case turnTypeSynonyms[typeKey] != "":
			t.Type = turnTypeSynonyms[typeKey]
		default:
			if typeKey != "" {
				logger.Warn("unknown turn type, defaulting to monologue",
					logging.F("type", t.Type),
					logging.F("idx", t.Idx))
			}
			t.Type = TurnTypeMonologue
		}

		if t.QuestionLikelihood < 0 {
			t.QuestionLikelihood = 0
		} else if t.QuestionLikelihood > 1 {
			t.QuestionLikelihood = 1
		}

		t.Speaker = strings.TrimSpace(t.Speaker)
	}

	// Backfill idx when the model forgot to number the turns.
	if needsReindex(turns) {
		for i := range turns {
			turns[i].Idx = i
		}
	}
}

// needsReindex reports whether the per-chunk idx sequence is unusable:
// anything other than a strict 0..n-1 run.
func needsReindex(turns []Turn) bool {
	for i, t := range turns {
		if t.Idx != i {
			return true
		}
	}
	return false
}
