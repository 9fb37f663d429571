package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lexiqai/meeting-recorder/internal/minutes"
	"github.com/lexiqai/meeting-recorder/internal/speaker"
	"github.com/spf13/cobra"
)

var analyzeAt string

// Analysis is what analyze finds in a piece of transcript text
type Analysis struct {
	Speaker         string                   `json:"speaker,omitempty" yaml:"speaker,omitempty"`
	Triggers        []minutes.TriggerMatch   `json:"triggers" yaml:"triggers"`
	Minutes         *minutes.MeetingMinutes  `json:"minutes" yaml:"minutes"`
	CalendarIntents []minutes.CalendarIntent `json:"calendarIntents" yaml:"calendarIntents"`
}

func newAnalyzeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [text]",
		Short: "Find names, minutes triggers and calendar intents in text",
		Long: `Analyze runs the transcript text rules on the given text, or on stdin
when no text is given.

Relative dates such as "amanhã" resolve against --at, which defaults to now.`,
		Example: `  recorder analyze "Meu nome é Ana. Vamos criar uma tarefa: revisar o contrato."
  cat notes.txt | recorder analyze -o yaml`,
		RunE: runAnalyze,
	}
	cmd.Flags().StringVar(&analyzeAt, "at", "", "Reference time (RFC3339 or YYYY-MM-DD)")
	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("no text to analyze")
	}

	ref, err := parseReferenceTime(analyzeAt, time.Now())
	if err != nil {
		return err
	}

	a := analyzeText(text, ref)
	return render(cmd.OutOrStdout(), outputFormat, a, a.writeText)
}

func analyzeText(text string, ref time.Time) *Analysis {
	a := &Analysis{Minutes: &minutes.MeetingMinutes{Date: ref.Format("2006-01-02")}}
	if name, ok := speaker.ExtractName(text); ok {
		a.Speaker = name
		a.Minutes.AddParticipant(name)
	}
	a.Triggers = minutes.FindTriggers(text)
	minutes.UpdateWithTriggers(a.Minutes, a.Triggers)
	a.CalendarIntents = minutes.FindCalendarIntents(text, ref)
	return a
}

func parseReferenceTime(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: use RFC3339 or YYYY-MM-DD", value)
	}
	return t, nil
}

func (a *Analysis) writeText(w io.Writer) error {
	if a.Speaker != "" {
		fmt.Fprintf(w, "Speaker: %s\n", a.Speaker)
	}

	if len(a.Triggers) == 0 {
		fmt.Fprintln(w, "No triggers found.")
	} else {
		fmt.Fprintf(w, "Triggers (%d):\n", len(a.Triggers))
		for _, m := range a.Triggers {
			label := string(m.Type)
			if l, ok := minutes.LabelFor(m.Type); ok {
				label = l.Label
			}
			fmt.Fprintf(w, "  %-14s %s\n", label, m.Text)
		}
	}

	if len(a.CalendarIntents) > 0 {
		fmt.Fprintf(w, "Calendar intents (%d):\n", len(a.CalendarIntents))
		for _, ci := range a.CalendarIntents {
			when := "unscheduled"
			if ci.StartTime != nil {
				when = ci.StartTime.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "  %-9s %-16s %s", ci.Type, when, ci.Title)
			if ci.Location != "" {
				fmt.Fprintf(w, " @ %s", ci.Location)
			}
			fmt.Fprintln(w)
		}
	}
	return nil
}
