package minutes

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

type intentRule struct {
	Type    IntentType
	Title   string
	Pattern *regexp.Regexp
}

var intentRules = []intentRule{
	{IntentMeeting, "Reunião", regexp.MustCompile(`(?i)(?:reunião|reuniao|encontro|call)\s+(?:marcad[ao]\s+)?(?:para|em|no\s+dia|dia)\s+[^.!?]+`)},
	{IntentMeeting, "Reunião", regexp.MustCompile(`(?i)(?:marcar|agendar)\s+(?:uma\s+)?(?:reunião|reuniao|call|conversa)[^.!?]*`)},

	{IntentTask, "Tarefa", regexp.MustCompile(`(?i)tarefa\s+(?:para|até)\s+[^.!?]+`)},
	{IntentTask, "Tarefa", regexp.MustCompile(`(?i)(?:entregar|concluir|finalizar)\s+[^.!?]+`)},

	{IntentDeadline, "Prazo", regexp.MustCompile(`(?i)(?:prazo|deadline)\s+[^.!?]+`)},
	{IntentDeadline, "Prazo", regexp.MustCompile(`(?i)(?:vence|vencimento)\s+[^.!?]+`)},
	{IntentDeadline, "Prazo", regexp.MustCompile(`(?i)até\s+(?:o\s+dia\s+)?\d{1,2}/\d{1,2}/\d{4}`)},
}

var (
	numericDate  = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	spelledDate  = regexp.MustCompile(`(?i)\b(\d{1,2})\s+de\s+(janeiro|fevereiro|março|marco|abril|maio|junho|julho|agosto|setembro|outubro|novembro|dezembro)(?:\s+de\s+(\d{4}))?`)
	clockTime    = regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})(?:\s*(am|pm)\b)?`)
	roomLocation = regexp.MustCompile(`(?i)\bsala\s+([\p{L}\d-]+)`)
)

var months = map[string]time.Month{
	"janeiro":   time.January,
	"fevereiro": time.February,
	"março":     time.March,
	"marco":     time.March,
	"abril":     time.April,
	"maio":      time.May,
	"junho":     time.June,
	"julho":     time.July,
	"agosto":    time.August,
	"setembro":  time.September,
	"outubro":   time.October,
	"novembro":  time.November,
	"dezembro":  time.December,
}

// FindCalendarIntents returns scheduling intents whose matched context holds
// a date or a time. ref supplies the year for dates without one and the day
// for times without a date. Results are not deduplicated.
func FindCalendarIntents(text string, ref time.Time) []CalendarIntent {
	text = norm.NFC.String(text)

	var intents []CalendarIntent
	for _, rule := range intentRules {
		context := rule.Pattern.FindString(text)
		if context == "" {
			continue
		}

		date, hasDate := findDate(context, ref)
		hour, minute, hasTime := findTime(context)
		if !hasDate && !hasTime {
			continue
		}

		day := ref
		if hasDate {
			day = date
		}
		start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, ref.Location())
		if hasTime {
			start = start.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
		}

		intent := CalendarIntent{
			Type:        rule.Type,
			Title:       rule.Title,
			Description: strings.TrimSpace(context),
			StartTime:   &start,
		}
		if m := roomLocation.FindStringSubmatch(context); m != nil {
			intent.Location = "Sala " + m[1]
		}
		intents = append(intents, intent)
	}
	return intents
}

// ExtractDate parses the first dd/mm/yyyy token in text
func ExtractDate(text string) (time.Time, bool) {
	m := numericDate.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	return validDate(year, time.Month(month), day, time.Local)
}

func findDate(text string, ref time.Time) (time.Time, bool) {
	if m := numericDate.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if d, ok := validDate(year, time.Month(month), day, ref.Location()); ok {
			return d, true
		}
	}
	if m := spelledDate.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[1])
		month := months[strings.ToLower(m[2])]
		year := ref.Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
		}
		return validDate(year, month, day, ref.Location())
	}
	return time.Time{}, false
}

// validDate rejects dates time.Date would normalize, such as 31/02
func validDate(year int, month time.Month, day int, loc *time.Location) (time.Time, bool) {
	d := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if d.Year() != year || d.Month() != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

func findTime(text string) (hour, minute int, ok bool) {
	m := clockTime.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	switch strings.ToLower(m[3]) {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}
