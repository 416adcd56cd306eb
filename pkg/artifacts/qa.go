// Package artifacts builds the downstream outputs of a processed meeting:
// Q&A groupings, calendar files, and the processing manifest.
package artifacts

import (
	"strings"

	"github.com/otherjamesbrown/scribe-cli/pkg/analyzer"
	"github.com/otherjamesbrown/scribe-cli/pkg/logging"
)

// QA group type values.
const (
	QATypeExchange     = "qa_exchange"
	QATypeMonologue    = "monologue"
	QATypeDiscussion   = "discussion"
	QATypeHousekeeping = "housekeeping"
)

// QATurn references a turn inside a group by its global index.
type QATurn struct {
	Idx     int    `json:"idx" yaml:"idx"`
	Role    string `json:"role" yaml:"role"`
	Speaker string `json:"speaker" yaml:"speaker"`
	Text    string `json:"text" yaml:"text"`
}

// QAGroup is a coherent exchange, discussion, or standalone segment.
type QAGroup struct {
	GroupID int      `json:"group_id" yaml:"group_id"`
	Type    string   `json:"type" yaml:"type"`
	Topic   string   `json:"topic" yaml:"topic"`
	StartTS string   `json:"start_ts" yaml:"start_ts"`
	EndTS   string   `json:"end_ts" yaml:"end_ts"`
	Turns   []QATurn `json:"turns" yaml:"turns"`
}

var allowedQATypes = map[string]bool{
	QATypeExchange:     true,
	QATypeMonologue:    true,
	QATypeDiscussion:   true,
	QATypeHousekeeping: true,
}

// qaTypeSynonyms maps group type labels the model drifts into back to the
// canonical set.
var qaTypeSynonyms = map[string]string{
	"q&a":                 QATypeExchange,
	"qa":                  QATypeExchange,
	"qa exchange":         QATypeExchange,
	"question-answer":     QATypeExchange,
	"question/answer":     QATypeExchange,
	"question and answer": QATypeExchange,
	"q and a":             QATypeExchange,
}

// roleSynonyms maps turn role labels to their canonical forms.
var roleSynonyms = map[string]string{
	"follow-up":  "followup",
	"follow up":  "followup",
	"contextual": "context",
	"questioning": "question",
	"answering":   "answer",
}

// questionThreshold is the minimum question likelihood for a turn to open
// a Q&A exchange.
const questionThreshold = 0.5

// GroupTurns folds the merged turn sequence into coherent groups. A
// sufficiently likely question opens an exchange that absorbs following
// answers and followups; monologues and housekeeping stand alone; everything
// else accumulates into discussion groups.
func GroupTurns(turns []analyzer.Turn) []QAGroup {
	var groups []QAGroup
	var current *QAGroup

	flush := func() {
		if current != nil && len(current.Turns) > 0 {
			groups = append(groups, *current)
		}
		current = nil
	}

	open := func(groupType string, t analyzer.Turn, role string) {
		flush()
		current = &QAGroup{
			Type:    groupType,
			StartTS: t.StartTS,
			EndTS:   t.EndTS,
			Turns:   []QATurn{{Idx: t.Idx, Role: role, Speaker: t.Speaker, Text: t.Text}},
		}
	}

	absorb := func(t analyzer.Turn, role string) {
		current.EndTS = t.EndTS
		current.Turns = append(current.Turns, QATurn{Idx: t.Idx, Role: role, Speaker: t.Speaker, Text: t.Text})
	}

	for _, t := range turns {
		switch t.Type {
		case "question":
			if t.QuestionLikelihood >= questionThreshold {
				open(QATypeExchange, t, "question")
			} else if current != nil && current.Type == QATypeExchange {
				absorb(t, "followup")
			} else if current != nil && current.Type == QATypeDiscussion {
				absorb(t, "context")
			} else {
				open(QATypeDiscussion, t, "context")
			}
		case "answer":
			if current != nil && current.Type == QATypeExchange {
				absorb(t, "answer")
			} else if current != nil && current.Type == QATypeDiscussion {
				absorb(t, "context")
			} else {
				open(QATypeDiscussion, t, "context")
			}
		case "followup":
			if current != nil && (current.Type == QATypeExchange || current.Type == QATypeDiscussion) {
				absorb(t, "followup")
			} else {
				open(QATypeDiscussion, t, "followup")
			}
		case "monologue":
			open(QATypeMonologue, t, "context")
			flush()
		case "housekeeping":
			open(QATypeHousekeeping, t, "context")
			flush()
		default:
			if current != nil && current.Type == QATypeDiscussion {
				absorb(t, "context")
			} else {
				open(QATypeDiscussion, t, "context")
			}
		}
	}
	flush()

	for i := range groups {
		groups[i].GroupID = i + 1
	}
	return groups
}

// NormalizeQAGroups repairs model output in place: unknown group types
// collapse to discussion, missing or unusable group IDs are backfilled
// sequentially from 1, and turn roles are canonicalized.
func NormalizeQAGroups(groups []QAGroup, logger logging.Logger) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	for i := range groups {
		g := &groups[i]

		typeKey := strings.ToLower(strings.TrimSpace(g.Type))
		switch {
		case allowedQATypes[typeKey]:
			g.Type = typeKey
		case qaTypeSynonyms[typeKey] != "":
			logger.Info("remapping group type",
				logging.F("from", g.Type),
				logging.F("to", qaTypeSynonyms[typeKey]),
				logging.F("group_id", g.GroupID))
			g.Type = qaTypeSynonyms[typeKey]
		default:
			if typeKey != "" {
				logger.Warn("unknown group type, defaulting to discussion",
					logging.F("type", g.Type),
					logging.F("group_id", g.GroupID))
			}
			g.Type = QATypeDiscussion
		}

		if g.GroupID <= 0 {
			g.GroupID = i + 1
		}

		for j := range g.Turns {
			roleKey := strings.ToLower(strings.TrimSpace(g.Turns[j].Role))
			if canonical, ok := roleSynonyms[roleKey]; ok {
				roleKey = canonical
			}
			g.Turns[j].Role = roleKey
		}
	}
}
