package crawler

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar date format of resolved posting dates
const DateLayout = "2006-01-02"

type dateRule struct {
	name    string
	resolve func(lower string, now time.Time) (time.Time, bool)
}

var (
	daysAgoRegex  = regexp.MustCompile(`(\d+)\s*(?:jour|day)`)
	weeksAgoRegex = regexp.MustCompile(`(\d+)\s*(?:semaine|week)`)
)

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func phraseRule(name string, days int, phrases ...string) dateRule {
	return dateRule{
		name: name,
		resolve: func(lower string, now time.Time) (time.Time, bool) {
			if !containsAny(lower, phrases...) {
				return time.Time{}, false
			}
			return now.AddDate(0, 0, -days), true
		},
	}
}

func countRule(name string, re *regexp.Regexp, daysPerUnit int) dateRule {
	return dateRule{
		name: name,
		resolve: func(lower string, now time.Time) (time.Time, bool) {
			m := re.FindStringSubmatch(lower)
			if m == nil {
				return time.Time{}, false
			}
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return time.Time{}, false
			}
			return now.AddDate(0, 0, -n*daysPerUnit), true
		},
	}
}

// dateRules are evaluated in order against the lower-cased text; the first
// rule that resolves wins. "less than a week" and "month" are fixed
// approximations.
var dateRules = []dateRule{
	phraseRule("today", 0, "aujourd'hui", "today"),
	phraseRule("yesterday", 1, "hier", "yesterday"),
	countRule("days", daysAgoRegex, 1),
	countRule("weeks", weeksAgoRegex, 7),
	phraseRule("less-than-a-week", 3, "moins d'une semaine", "less than a week"),
	phraseRule("month", 30, "mois", "month"),
}

// ResolveDate converts a relative posting date into YYYY-MM-DD using now as
// the reference. Unrecognized text is returned unchanged; empty text yields nil.
func ResolveDate(text string, now time.Time) *string {
	if text == "" {
		return nil
	}

	lower := strings.ToLower(text)
	for _, rule := range dateRules {
		if t, ok := rule.resolve(lower, now); ok {
			resolved := t.Format(DateLayout)
			return &resolved
		}
	}

	return &text
}
