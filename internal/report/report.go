// Package report defines validation findings, collects them safely from
// concurrent passes, and renders the final report.
package report

import (
	"fmt"
	"sort"
	"sync"
)

// Severity of a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Category is the error taxonomy bucket a finding belongs to.
type Category string

const (
	CategorySchema         Category = "schema"
	CategoryTypeAssignment Category = "type_assignment"
	CategoryStructure      Category = "structure"
	CategoryContent        Category = "content"
	CategoryIdentifier     Category = "identifier"
	CategoryReference      Category = "reference"
	CategoryIO             Category = "io"
)

// ValidationError is one finding against a document.
type ValidationError struct {
	Severity Severity `json:"severity"`
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Column   int      `json:"column"`
	Category Category `json:"category"`
	Message  string   `json:"message"`
}

func (e ValidationError) String() string {
	return fmt.Sprintf("%s:%d:%d: %s [%s] %s", e.File, e.Line, e.Column, e.Severity, e.Category, e.Message)
}

// Errorf builds an error-severity finding.
func Errorf(cat Category, file string, line, col int, format string, args ...any) ValidationError {
	return ValidationError{
		Severity: SeverityError,
		File:     file,
		Line:     line,
		Column:   col,
		Category: cat,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Warnf builds a warning-severity finding.
func Warnf(cat Category, file string, line, col int, format string, args ...any) ValidationError {
	e := Errorf(cat, file, line, col, format, args...)
	e.Severity = SeverityWarning
	return e
}

// Summary counts documents per tier and findings per severity.
type Summary struct {
	Documents int `json:"documents"`
	Typed     int `json:"typed"`
	Unmanaged int `json:"unmanaged"`
	Excluded  int `json:"excluded"`
	Ambiguous int `json:"ambiguous"`
	Errors    int `json:"errors"`
	Warnings  int `json:"warnings"`
	Infos     int `json:"infos"`
}

// Report is the result of one validation run.
type Report struct {
	Findings []ValidationError `json:"findings"`
	Summary  Summary           `json:"summary"`
	Aborted  bool              `json:"aborted"`
}

// Failed reports whether the run should exit non-zero.
func (r *Report) Failed(warningsAsErrors bool) bool {
	if r.Summary.Errors > 0 {
		return true
	}
	return warningsAsErrors && r.Summary.Warnings > 0
}

// Collector is a thread-safe, append-only list of findings.
type Collector struct {
	mu       sync.Mutex
	findings []ValidationError
	errors   int
}

func NewCollector() *Collector {
	return &Collector{}
}

// Add records findings.
func (c *Collector) Add(errs ...ValidationError) {
	if len(errs) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range errs {
		if e.Severity == SeverityError {
			c.errors++
		}
	}
	c.findings = append(c.findings, errs...)
}

// Errors returns the number of error-severity findings recorded so far.
func (c *Collector) Errors() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors
}

// Findings returns a sorted copy of everything collected.
func (c *Collector) Findings() []ValidationError {
	c.mu.Lock()
	out := make([]ValidationError, len(c.findings))
	copy(out, c.findings)
	c.mu.Unlock()
	Sort(out)
	return out
}

// Build assembles a report from the collected findings. Severity counts in
// s are overwritten.
func (c *Collector) Build(s Summary, aborted bool) *Report {
	findings := c.Findings()
	s.Errors, s.Warnings, s.Infos = 0, 0, 0
	for _, f := range findings {
		switch f.Severity {
		case SeverityError:
			s.Errors++
		case SeverityWarning:
			s.Warnings++
		default:
			s.Infos++
		}
	}
	return &Report{Findings: findings, Summary: s, Aborted: aborted}
}

// Sort orders findings by file, line, column, category, message, severity.
func Sort(findings []ValidationError) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.Message != b.Message {
			return a.Message < b.Message
		}
		return a.Severity < b.Severity
	})
}
