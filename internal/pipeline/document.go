package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/dgallion1/speclint/internal/classify"
	"github.com/dgallion1/speclint/internal/doctree"
	"github.com/dgallion1/speclint/internal/parser"
	"github.com/dgallion1/speclint/internal/refs"
	"github.com/dgallion1/speclint/internal/report"
)

// State is a document's position in the validation pipeline. States only
// move forward.
type State int

const (
	StatePending State = iota
	StateParsed
	StateSectionTreeBuilt
	StateTypeAssigned
	StateStructurallyValidated
	StateContentValidated
	StateReferencesExtracted
	StateReferencesResolved
	StateReported
)

var stateNames = [...]string{
	"pending",
	"parsed",
	"section_tree_built",
	"type_assigned",
	"structurally_validated",
	"content_validated",
	"references_extracted",
	"references_resolved",
	"reported",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Instance is one class instance found in a typed document.
type Instance struct {
	Class string
	// Section is the instance's own section for heading classes, or the
	// section holding the declaring block for inline classes.
	Section int
	// Block indexes Section's content for inline classes, -1 otherwise.
	Block int
	// Start and End bound the instance's text within the block.
	Start, End int
	ID         string
	Line       int
	Column     int
}

// Document tracks one file through a run. Each pass works on distinct
// documents, so only state transitions and findings are locked.
type Document struct {
	mu sync.Mutex

	Path  string
	Class classify.Result

	State State

	source   []byte
	parsed   *parser.Result
	tree     *doctree.Tree
	title    int // section index of the title, -1 if absent
	moduleID string

	instances []Instance
	// matched maps SectionSpec index to section index, -1 when absent.
	matched []int
	refs    []refs.Reference

	failed   bool // unreadable or unparsable, excluded from later passes
	findings []report.ValidationError
	sink     *report.Collector
}

func newDocument(path string, class classify.Result, sink *report.Collector) *Document {
	return &Document{Path: path, Class: class, title: -1, sink: sink}
}

// Advance moves the document to state. Moving backwards is an error;
// skipping forward is allowed.
func (d *Document) Advance(state State) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if state <= d.State {
		return fmt.Errorf("%s: cannot move from %s to %s", d.Path, d.State, state)
	}
	d.State = state
	return nil
}

// CurrentState returns the document's state.
func (d *Document) CurrentState() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.State
}

// AddError records findings against the document and forwards them to
// the run's collector, if any.
func (d *Document) AddError(errs ...report.ValidationError) {
	if len(errs) == 0 {
		return
	}
	d.mu.Lock()
	d.findings = append(d.findings, errs...)
	d.mu.Unlock()
	if d.sink != nil {
		d.sink.Add(errs...)
	}
}

// Findings returns a copy of the document's findings.
func (d *Document) Findings() []report.ValidationError {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]report.ValidationError, len(d.findings))
	copy(out, d.findings)
	return out
}

// Typed reports whether the document is validated against a module type.
func (d *Document) Typed() bool {
	return d.Class.Tier == classify.TierTyped && !d.failed
}

// Tree returns the section tree, nil before pass 2.
func (d *Document) Tree() *doctree.Tree {
	return d.tree
}

// ModuleID returns the identifier assigned in pass 3, if any.
func (d *Document) ModuleID() string {
	return d.moduleID
}

// Instances returns the class instances found in pass 3.
func (d *Document) Instances() []Instance {
	return d.instances
}

// References returns the references extracted and resolved in passes 6-7.
func (d *Document) References() []refs.Reference {
	return d.refs
}

// DocumentSummary is a read-only, JSON-safe view of a document after a run.
type DocumentSummary struct {
	Path       string        `json:"path"`
	Tier       classify.Tier `json:"tier"`
	Module     string        `json:"module,omitempty"`
	ID         string        `json:"id,omitempty"`
	State      State         `json:"state"`
	Instances  int           `json:"instances"`
	References int           `json:"references"`
	Findings   int           `json:"findings"`
	Hash       string        `json:"content_hash,omitempty"`
}

// Summary returns a JSON-safe copy of the document state.
func (d *Document) Summary() DocumentSummary {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := DocumentSummary{
		Path:       d.Path,
		Tier:       d.Class.Tier,
		ID:         d.moduleID,
		State:      d.State,
		Instances:  len(d.instances),
		References: len(d.refs),
		Findings:   len(d.findings),
	}
	if d.Class.Module != nil {
		s.Module = d.Class.Module.Name
	}
	if d.source != nil {
		s.Hash = ContentHashHex(d.source)
	}
	return s
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
