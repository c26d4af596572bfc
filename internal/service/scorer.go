package service

import (
	"fmt"
	"strings"

	"github.com/screening-server/internal/domain"
)

// Score computes the result of a possibly partial response set. It is pure:
// the same inputs always produce an equal result and nothing is mutated.
// Answers for ordinals the instrument does not define are ignored.
func Score(inst *domain.Instrument, answers domain.Responses) *domain.ScoringResult {
	total := 0
	answered := 0
	for _, item := range inst.Items {
		if score, ok := answers[item.Ordinal]; ok {
			total += score
			answered++
		}
	}

	missing := inst.Missing(answers)
	complete := len(missing) == 0

	result := &domain.ScoringResult{
		InstrumentID: inst.ID,
		Total:        total,
		MaxTotal:     inst.MaxTotal(),
		Answered:     answered,
		MissingItems: missing,
		Complete:     complete,
		DomainScores: inst.DomainScores(answers),
		DomainMax:    inst.DomainMax(),
		Flags:        inst.Flags(total, answers, complete),
	}

	if band, ok := inst.Classify(total); ok {
		result.Severity = band.Label
		result.SeverityKey = band.Key
		result.Interpretation = band.Interpretation
		result.Guidance = band.Guidance
	}
	return result
}

// ComposeNarrative builds the respondent-facing summary of a result: the
// total and band, the band guidance, the supplementary answers and the
// narrative of every raised flag in rule order.
func ComposeNarrative(inst *domain.Instrument, result *domain.ScoringResult, supplementary map[string]string) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Total score %d of %d, in the %s range.", result.Total, result.MaxTotal, result.Severity))
	if result.Guidance != "" {
		parts = append(parts, result.Guidance)
	} else if result.Interpretation != "" {
		parts = append(parts, result.Interpretation)
	}

	for _, q := range inst.Supplementary {
		answer, ok := supplementary[q.Key]
		if !ok {
			continue
		}
		if text := q.Narrative[answer]; text != "" {
			parts = append(parts, text)
		}
	}

	for _, r := range inst.Rules {
		if result.Flags[r.Flag] && r.Narrative != "" {
			parts = append(parts, strings.TrimSpace(r.Narrative))
		}
	}

	return strings.Join(parts, " ")
}
