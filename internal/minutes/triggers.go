package minutes

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DecisionTitle names the agenda item created for a decision made before
// any agenda item exists.
const DecisionTitle = "Decisão"

// DeadlineLayout formats ActionItem.Deadline
const DeadlineLayout = "2006-01-02"

type triggerRule struct {
	Type    TriggerType
	Pattern *regexp.Regexp
}

// Evaluated in order. Each rule yields at most one match per text.
var triggerRules = []triggerRule{
	{TriggerTask, regexp.MustCompile(`(?i)(?:criar|adicionar|nova)\s+(?:uma\s+)?tarefa[:\s]+([^.!?]+)`)},
	{TriggerTask, regexp.MustCompile(`(?i)(?:precisamos|temos\s+que|fica\s+responsável\s+por)\s+([^.!?]+)`)},
	{TriggerTask, regexp.MustCompile(`(?i)\bação[:\s]+([^.!?]+)`)},

	{TriggerReminder, regexp.MustCompile(`(?i)(?:lembrar|lembre|lembrete)(?:\s+de)?[:\s]+([^.!?]+)`)},
	{TriggerReminder, regexp.MustCompile(`(?i)não\s+(?:podemos\s+)?esquecer\s+(?:de\s+)?([^.!?]+)`)},

	{TriggerDecision, regexp.MustCompile(`(?i)(?:ficou\s+decidido|foi\s+decidido|decidimos)\s+(?:que\s+)?([^.!?]+)`)},
	{TriggerDecision, regexp.MustCompile(`(?i)a\s+decisão\s+(?:é|foi)\s+([^.!?]+)`)},
	{TriggerDecision, regexp.MustCompile(`(?i)(?:aprovamos|foi\s+aprovad[oa])[:\s]+([^.!?]+)`)},

	{TriggerRisk, regexp.MustCompile(`(?i)(?:risco|perigo)(?:\s+de|\s+é|\s*:)\s*([^.!?]+)`)},
	{TriggerRisk, regexp.MustCompile(`(?i)((?:pode|poderia)\s+(?:dar\s+errado|atrasar|falhar)[^.!?]*)`)},
	{TriggerRisk, regexp.MustCompile(`(?i)(?:problema|preocupação)[:\s]+([^.!?]+)`)},

	{TriggerHighlight, regexp.MustCompile(`(?i)(?:importante|destaque|atenção)[:\s]+([^.!?]+)`)},
	{TriggerHighlight, regexp.MustCompile(`(?i)(?:vale\s+(?:a\s+pena\s+)?destacar|ponto\s+chave)\s+(?:que\s+)?([^.!?]+)`)},
}

// FindTriggers returns one match per rule that matches text, in rule order.
// Matches are not deduplicated.
func FindTriggers(text string) []TriggerMatch {
	text = norm.NFC.String(text)

	var matches []TriggerMatch
	for _, rule := range triggerRules {
		m := rule.Pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		matches = append(matches, TriggerMatch{
			Type:    rule.Type,
			Text:    strings.TrimSpace(m[1]),
			Context: text,
		})
	}
	return matches
}

// UpdateWithTriggers folds matches into m and returns it. A task naming a
// dd/mm/yyyy date gets it as its deadline.
// Risks and highlights have no structural effect.
func UpdateWithTriggers(m *MeetingMinutes, matches []TriggerMatch) *MeetingMinutes {
	for _, match := range matches {
		if match.Text == "" {
			continue
		}
		switch match.Type {
		case TriggerTask:
			item := ActionItem{Task: match.Text}
			if d, ok := ExtractDate(match.Text); ok {
				item.Deadline = d.Format(DeadlineLayout)
			}
			m.AddActionItem(item)
		case TriggerReminder:
			m.AddNextStep(match.Text)
		case TriggerDecision:
			if n := len(m.AgendaItems); n > 0 {
				m.AgendaItems[n-1].Decision = match.Text
			} else {
				m.AddAgendaItem(AgendaItem{
					Title:      DecisionTitle,
					Discussion: match.Context,
					Decision:   match.Text,
				})
			}
		}
	}
	return m
}
