package content

import (
	"fmt"
	"strings"

	"github.com/dgallion1/speclint/internal/report"
)

// EARSPattern is the shape of a parsed requirement.
type EARSPattern string

const (
	Ubiquitous  EARSPattern = "ubiquitous"
	EventDriven EARSPattern = "event-driven"
	Unwanted    EARSPattern = "unwanted"
	StateDriven EARSPattern = "state-driven"
	Optional    EARSPattern = "optional"
	ComplexEARS EARSPattern = "complex"
)

// Requirement is a parsed EARS statement.
type Requirement struct {
	Pattern EARSPattern
	Where   string
	While   string
	When    string
	If      string
	Subject string
	Modal   string
	Action  string
}

// GrammarError is a clause-level parse failure.
type GrammarError struct {
	Message string
}

func (e *GrammarError) Error() string { return e.Message }

func grammarErr(format string, args ...any) error {
	return &GrammarError{Message: fmt.Sprintf(format, args...)}
}

var modals = map[string]bool{
	"shall": true, "should": true, "will": true, "must": true,
	"may": true, "can": true, "could": true, "would": true,
}

// precondition keywords and their required order.
var clauseRank = map[string]int{"WHERE": 0, "WHILE": 1, "WHEN": 2, "IF": 2}

// ParseEARS parses one requirement statement. modal is the required modal
// verb, "shall" when empty.
func ParseEARS(text, modal string) (*Requirement, error) {
	if modal == "" {
		modal = "shall"
	}
	rest := strings.Join(strings.Fields(stripLead(text)), " ")
	if rest == "" {
		return nil, grammarErr("empty requirement")
	}

	req := &Requirement{}
	lastRank, lastKw := -1, ""
	for {
		kw, after := firstWord(rest)
		rank, isClause := clauseRank[strings.ToUpper(kw)]
		if !isClause {
			break
		}
		kw = strings.ToUpper(kw)
		if rank < lastRank {
			return nil, grammarErr("%s clause must come before %s clause", kw, lastKw)
		}
		if rank == lastRank {
			return nil, grammarErr("%s clause cannot follow %s clause", kw, lastKw)
		}
		comma := strings.Index(after, ",")
		if comma < 0 {
			return nil, grammarErr("%s clause must end with a comma", kw)
		}
		clause := strings.TrimSpace(after[:comma])
		if clause == "" {
			return nil, grammarErr("empty %s clause", kw)
		}
		rest = strings.TrimSpace(after[comma+1:])

		switch kw {
		case "WHERE":
			req.Where = clause
		case "WHILE":
			req.While = clause
		case "WHEN":
			req.When = clause
		case "IF":
			req.If = clause
			next, afterThen := firstWord(rest)
			if !strings.EqualFold(next, "THEN") {
				return nil, grammarErr("IF clause requires THEN")
			}
			rest = strings.TrimSpace(afterThen)
		}
		lastRank, lastKw = rank, kw
	}

	words := strings.Fields(rest)
	at := -1
	for i, w := range words {
		if modals[strings.ToLower(strings.Trim(w, ".,;:!?*_"))] {
			at = i
			break
		}
	}
	if at < 0 {
		return nil, grammarErr("missing modal verb (expected %q)", modal)
	}
	found := strings.ToLower(strings.Trim(words[at], ".,;:!?*_"))
	if found != modal {
		return nil, grammarErr("wrong modal verb %q (expected %q)", found, modal)
	}
	if at == 0 {
		return nil, grammarErr("missing subject before %q", modal)
	}
	if at == len(words)-1 {
		return nil, grammarErr("missing action after %q", modal)
	}
	req.Subject = strings.Join(words[:at], " ")
	req.Modal = found
	req.Action = strings.Join(words[at+1:], " ")
	req.Pattern = patternOf(req)
	return req, nil
}

func patternOf(r *Requirement) EARSPattern {
	var set []EARSPattern
	if r.Where != "" {
		set = append(set, Optional)
	}
	if r.While != "" {
		set = append(set, StateDriven)
	}
	if r.When != "" {
		set = append(set, EventDriven)
	}
	if r.If != "" {
		set = append(set, Unwanted)
	}
	switch len(set) {
	case 0:
		return Ubiquitous
	case 1:
		return set[0]
	}
	return ComplexEARS
}

func firstWord(s string) (word, rest string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i+1:]
}

// EARS validates each block as one requirement statement.
type EARS struct {
	name  string
	modal string
}

func (v *EARS) Name() string { return v.name }

func (v *EARS) Validate(t Target) []report.ValidationError {
	var out []report.ValidationError
	for _, b := range t.Blocks {
		if _, err := ParseEARS(b.Text, v.modal); err != nil {
			out = append(out, contentError(t, b.Line, b.Column, "requirement syntax: %v", err))
		}
	}
	return out
}
