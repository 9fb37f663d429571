// Package minutes holds the meeting minutes aggregate and the pattern tables
// that turn transcript text into minutes entries and calendar intents.
package minutes

import "time"

// Participant is someone identified as present in the meeting
type Participant struct {
	Name string `json:"name" yaml:"name"`
	Role string `json:"role,omitempty" yaml:"role,omitempty"`
}

// AgendaItem is a discussed topic and its outcome
type AgendaItem struct {
	Title      string `json:"title" yaml:"title"`
	Discussion string `json:"discussion,omitempty" yaml:"discussion,omitempty"`
	Decision   string `json:"decision,omitempty" yaml:"decision,omitempty"`
}

// ActionItem is a task assigned during the meeting
type ActionItem struct {
	Task        string `json:"task" yaml:"task"`
	Responsible string `json:"responsible,omitempty" yaml:"responsible,omitempty"`
	Deadline    string `json:"deadline,omitempty" yaml:"deadline,omitempty"`
}

// MeetingMinutes is the structured record derived from a transcript.
// Lists only grow; entries are unique on their key field.
type MeetingMinutes struct {
	Title        string        `json:"title,omitempty" yaml:"title,omitempty"`
	Date         string        `json:"date,omitempty" yaml:"date,omitempty"`
	Participants []Participant `json:"participants" yaml:"participants"`
	AgendaItems  []AgendaItem  `json:"agendaItems" yaml:"agendaItems"`
	ActionItems  []ActionItem  `json:"actionItems" yaml:"actionItems"`
	NextSteps    []string      `json:"nextSteps" yaml:"nextSteps"`
}

// AddParticipant appends a participant unless one with the same name exists
func (m *MeetingMinutes) AddParticipant(name string) bool {
	for _, p := range m.Participants {
		if p.Name == name {
			return false
		}
	}
	m.Participants = append(m.Participants, Participant{Name: name})
	return true
}

// AddAgendaItem appends an item unless one with the same title exists
func (m *MeetingMinutes) AddAgendaItem(item AgendaItem) bool {
	for _, a := range m.AgendaItems {
		if a.Title == item.Title {
			return false
		}
	}
	m.AgendaItems = append(m.AgendaItems, item)
	return true
}

// AddActionItem appends an item unless one with the same task exists
func (m *MeetingMinutes) AddActionItem(item ActionItem) bool {
	for _, a := range m.ActionItems {
		if a.Task == item.Task {
			return false
		}
	}
	m.ActionItems = append(m.ActionItems, item)
	return true
}

// AddNextStep appends a step unless it is already listed
func (m *MeetingMinutes) AddNextStep(step string) bool {
	for _, s := range m.NextSteps {
		if s == step {
			return false
		}
	}
	m.NextSteps = append(m.NextSteps, step)
	return true
}

// TriggerType categorizes a recognized phrase
type TriggerType string

const (
	TriggerTask         TriggerType = "task"
	TriggerReminder     TriggerType = "reminder"
	TriggerDecision     TriggerType = "decision"
	TriggerRisk         TriggerType = "risk"
	TriggerHighlight    TriggerType = "highlight"
	TriggerDeadline     TriggerType = "deadline"
	TriggerDocument     TriggerType = "document"
	TriggerLegal        TriggerType = "legal"
	TriggerConfidential TriggerType = "confidential"
	TriggerAgreement    TriggerType = "agreement"
	TriggerFollowup     TriggerType = "followup"
	TriggerSchedule     TriggerType = "schedule"
	TriggerNote         TriggerType = "note"
)

// TriggerMatch is one phrase recognized in transcript text
type TriggerMatch struct {
	Type    TriggerType `json:"type" yaml:"type"`
	Text    string      `json:"text" yaml:"text"`
	Context string      `json:"context,omitempty" yaml:"context,omitempty"`
}

// IntentType categorizes a scheduling intent
type IntentType string

const (
	IntentMeeting  IntentType = "meeting"
	IntentTask     IntentType = "task"
	IntentDeadline IntentType = "deadline"
)

// CalendarIntent is a scheduling request found in transcript text
type CalendarIntent struct {
	Type        IntentType `json:"type" yaml:"type"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	StartTime   *time.Time `json:"startTime,omitempty" yaml:"startTime,omitempty"`
	EndTime     *time.Time `json:"endTime,omitempty" yaml:"endTime,omitempty"`
	Location    string     `json:"location,omitempty" yaml:"location,omitempty"`
}

// Label describes a trigger category for display
type Label struct {
	Type        TriggerType `json:"type" yaml:"type"`
	Label       string      `json:"label" yaml:"label"`
	Description string      `json:"description" yaml:"description"`
}

// Labels is the display vocabulary. It is wider than what FindTriggers
// extracts; the extra categories are only ever applied by hand.
var Labels = []Label{
	{TriggerTask, "Tarefa", "Algo que precisa ser feito"},
	{TriggerReminder, "Lembrete", "Algo para não esquecer"},
	{TriggerDecision, "Decisão", "Decisão tomada na reunião"},
	{TriggerHighlight, "Destaque", "Ponto importante da discussão"},
	{TriggerDeadline, "Prazo", "Data limite combinada"},
	{TriggerDocument, "Documento", "Documento citado ou a ser produzido"},
	{TriggerLegal, "Jurídico", "Assunto com implicação legal"},
	{TriggerConfidential, "Confidencial", "Informação sigilosa"},
	{TriggerAgreement, "Acordo", "Acordo entre as partes"},
	{TriggerFollowup, "Acompanhamento", "Assunto para retomar depois"},
	{TriggerSchedule, "Agenda", "Compromisso a ser agendado"},
	{TriggerNote, "Nota", "Observação geral"},
}

// LabelFor returns the display label for a trigger type
func LabelFor(t TriggerType) (Label, bool) {
	for _, l := range Labels {
		if l.Type == t {
			return l, true
		}
	}
	return Label{}, false
}
