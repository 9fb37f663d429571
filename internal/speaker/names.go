package speaker

import (
	"regexp"
	"strings"
)

// A sequence of capitalized words
const namePattern = `(\p{Lu}\p{Ll}+(?:\s+\p{Lu}\p{Ll}+)*)`

// Tried in order; the first match wins
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i:meu\s+nome\s+é)\s+` + namePattern),
	regexp.MustCompile(`(?i:me\s+chamo)\s+` + namePattern),
	regexp.MustCompile(`(?i:\bsou)\s+` + namePattern),
	regexp.MustCompile(namePattern + `\s+(?i:falando)\b`),
}

// ExtractName returns the name a speaker introduces themselves with
func ExtractName(text string) (string, bool) {
	for _, re := range namePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if name := strings.TrimSpace(m[1]); name != "" {
				return name, true
			}
		}
	}
	return "", false
}
