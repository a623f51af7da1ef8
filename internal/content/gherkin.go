package content

import (
	"strings"

	"github.com/dgallion1/speclint/internal/report"
)

// Step is one Given/When/Then/And/But line.
type Step struct {
	Keyword string // canonical: Given, When, Then, And, But
	Text    string
	Line    int
	Column  int
}

var stepKeywords = map[string]string{
	"given": "Given", "when": "When", "then": "Then", "and": "And", "but": "But",
}

// Steps extracts step lines from blocks. Lines that do not open with a step
// keyword are ignored.
func Steps(blocks []Block) []Step {
	var steps []Step
	for _, b := range blocks {
		for i, line := range strings.Split(b.Text, "\n") {
			clean := strings.ReplaceAll(listMarker.ReplaceAllString(line, ""), "**", "")
			clean = strings.ReplaceAll(clean, "__", "")
			word, rest := firstWord(clean)
			kw, ok := stepKeywords[strings.ToLower(strings.TrimRight(word, ":"))]
			if !ok {
				continue
			}
			col := b.Column
			if i > 0 {
				col = 1
			}
			steps = append(steps, Step{Keyword: kw, Text: strings.TrimSpace(rest), Line: b.Line + i, Column: col})
		}
	}
	return steps
}

// Gherkin requires every scenario to state Given, When and Then in order.
type Gherkin struct {
	name string
}

func (v *Gherkin) Name() string { return v.name }

func (v *Gherkin) Validate(t Target) []report.ValidationError {
	steps := Steps(t.Blocks)
	if len(steps) == 0 {
		return []report.ValidationError{contentError(t, t.Line, t.Column, "scenario has no Given/When/Then clauses")}
	}

	var out []report.ValidationError
	fail := func(s Step, format string, args ...any) {
		out = append(out, contentError(t, s.Line, s.Column, format, args...))
	}

	var given, when, then bool
	var start Step
	last := ""
	closeScenario := func() {
		if !given && !when && !then {
			return
		}
		var missing []string
		if !given {
			missing = append(missing, "Given")
		}
		if !when {
			missing = append(missing, "When")
		}
		if !then {
			missing = append(missing, "Then")
		}
		if len(missing) > 0 {
			fail(start, "scenario is missing %s", strings.Join(missing, ", "))
		}
	}

	for _, s := range steps {
		switch s.Keyword {
		case "Given":
			if then {
				closeScenario()
				given, when, then = false, false, false
			}
			if when {
				fail(s, "Given must come before When")
			}
		case "When":
			if then {
				fail(s, "When after Then; start a new scenario with Given")
			}
		case "Then":
		default:
			if last == "" {
				fail(s, "%s without a preceding Given, When or Then", s.Keyword)
			}
			continue
		}
		if !given && !when && !then {
			start = s
		}
		switch s.Keyword {
		case "Given":
			given = true
		case "When":
			when = true
		case "Then":
			then = true
		}
		last = s.Keyword
	}
	closeScenario()
	return out
}
