// Package pipeline runs the multi-pass validation of a document set and
// keeps the results of recent runs.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/speclint/internal/classify"
	"github.com/dgallion1/speclint/internal/content"
	"github.com/dgallion1/speclint/internal/doctree"
	"github.com/dgallion1/speclint/internal/ids"
	"github.com/dgallion1/speclint/internal/parser"
	"github.com/dgallion1/speclint/internal/refs"
	"github.com/dgallion1/speclint/internal/report"
	"github.com/dgallion1/speclint/internal/schema"
)

// ReadFunc returns the contents of a candidate file.
type ReadFunc func(path string) ([]byte, error)

// LinkChecker reports reachability of external URLs. A nil error in the
// result means reachable.
type LinkChecker interface {
	Check(ctx context.Context, urls []string) map[string]error
}

// Options configure a Validator.
type Options struct {
	Workers   int
	MaxErrors int // 0 disables the limit
	Policy    classify.Policy
	Excluded  classify.Predicate
	Unmanaged classify.Predicate
	// FileExists resolves links to files that are not candidate documents.
	FileExists func(path string) bool
	Links      LinkChecker
}

// Result is the outcome of one run.
type Result struct {
	Report    *report.Report
	Documents []DocumentSummary
	Duration  time.Duration
}

// Validator orchestrates the ordered passes over a document set. It holds
// no per-run state, so one Validator may serve concurrent runs.
type Validator struct {
	reg        *schema.Registry
	validators *content.Set
	extractor  *refs.Extractor
	opts       Options
	log        *slog.Logger
}

func NewValidator(reg *schema.Registry, opts Options, log *slog.Logger) (*Validator, error) {
	set, err := content.NewSet(reg)
	if err != nil {
		return nil, fmt.Errorf("build content validators: %w", err)
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Validator{
		reg:        reg,
		validators: set,
		extractor:  refs.NewExtractor(reg),
		opts:       opts,
		log:        log,
	}, nil
}

// run is the mutable state of one Run call.
type run struct {
	*Validator
	read      ReadFunc
	docs      []*Document
	collector *report.Collector
	ids       *ids.Registry
	aborted   atomic.Bool
}

// Run validates the files at paths, reading them with read. Paths are
// slash-separated and relative to the document root. The only error
// returned is context cancellation; everything else lands in the report.
func (v *Validator) Run(ctx context.Context, paths []string, read ReadFunc) (*Result, error) {
	start := time.Now()
	r := &run{
		Validator: v,
		read:      read,
		collector: report.NewCollector(),
		ids:       ids.NewRegistry(),
	}

	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	classifier := classify.New(v.reg, v.opts.Excluded, v.opts.Unmanaged, v.opts.Policy)
	seen := make(map[string]bool, len(sorted))
	for _, p := range sorted {
		if seen[p] {
			continue
		}
		seen[p] = true
		r.docs = append(r.docs, newDocument(p, classifier.Classify(p), r.collector))
	}
	v.log.Debug("classified documents", "documents", len(r.docs))

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"parse", r.parallel(r.parse)},
		{"assign types", r.assignTypes},
		{"check structure", r.parallel(r.checkStructure)},
		{"check content", r.parallel(r.checkContent)},
		{"extract references", r.parallel(r.extractReferences)},
		{"resolve references", r.resolveReferences},
	}
	for _, step := range steps {
		if r.stopped() {
			break
		}
		v.log.Debug("pass", "name", step.name)
		if err := step.fn(ctx); err != nil {
			return nil, err
		}
	}

	summary := report.Summary{}
	for _, d := range r.docs {
		summary.Documents++
		switch {
		case d.Class.Tier == classify.TierExcluded:
			summary.Excluded++
		case d.Class.Ambiguous != nil:
			summary.Ambiguous++
		case d.Class.Tier == classify.TierTyped:
			summary.Typed++
		default:
			summary.Unmanaged++
		}
		if d.Class.Tier != classify.TierExcluded && !r.aborted.Load() {
			_ = d.Advance(StateReported)
		}
	}

	res := &Result{
		Report:   r.collector.Build(summary, r.aborted.Load()),
		Duration: time.Since(start),
	}
	for _, d := range r.docs {
		res.Documents = append(res.Documents, d.Summary())
	}
	v.log.Info("validation finished",
		"documents", summary.Documents,
		"errors", res.Report.Summary.Errors,
		"warnings", res.Report.Summary.Warnings,
		"aborted", res.Report.Aborted,
		"duration", res.Duration)
	return res, nil
}

// stopped reports whether the error limit has been reached.
func (r *run) stopped() bool {
	if r.aborted.Load() {
		return true
	}
	if r.opts.MaxErrors <= 0 {
		return false
	}
	if r.collector.Errors() >= r.opts.MaxErrors {
		r.aborted.Store(true)
		return true
	}
	return false
}

// parallel runs fn for every non-excluded document on the worker pool.
// A document already started finishes its pass; no new document starts
// once the error limit is hit.
func (r *run) parallel(fn func(*Document)) func(context.Context) error {
	return func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.opts.Workers)
		for _, d := range r.docs {
			if d.Class.Tier == classify.TierExcluded || d.failed {
				continue
			}
			if err := gctx.Err(); err != nil {
				break
			}
			if r.stopped() {
				break
			}
			d := d
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				fn(d)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		return ctx.Err()
	}
}

// parse covers passes 1 and 2.
func (r *run) parse(d *Document) {
	log := r.log.With("file", d.Path)
	data, err := r.read(d.Path)
	if err != nil {
		log.Warn("unreadable file, excluding", "error", err)
		d.failed = true
		d.AddError(report.Warnf(report.CategoryIO, d.Path, 0, 0, "unreadable file excluded: %v", err))
		return
	}
	p, err := parser.ForFile(d.Path)
	if err != nil {
		p = parser.NewMarkdownParser()
	}
	res, err := p.Parse(data, d.Path)
	if err != nil {
		log.Warn("parse failed, excluding", "error", err)
		d.failed = true
		d.AddError(report.Warnf(report.CategoryIO, d.Path, 0, 0, "parse failed, file excluded: %v", err))
		return
	}
	d.source = data
	d.parsed = res
	_ = d.Advance(StateParsed)

	d.tree = doctree.Build(res.Nodes)
	_, d.title = d.tree.Title()
	_ = d.Advance(StateSectionTreeBuilt)

	switch {
	case d.Class.Ambiguous != nil:
		d.AddError(report.Errorf(report.CategoryTypeAssignment, d.Path, 1, 1,
			"ambiguous module type: %s", d.Class.Ambiguous.Error()))
	case d.Class.Warn:
		d.AddError(report.Warnf(report.CategoryTypeAssignment, d.Path, 1, 1,
			"file matches no module type; classify it explicitly or list it as unmanaged"))
	}
	log.Debug("parsed", "nodes", len(res.Nodes), "sections", d.tree.Len())
}

// resolveReferences builds the resolver from the frozen registry and
// resolves every typed document's references (pass 7).
func (r *run) resolveReferences(ctx context.Context) error {
	targets := make(map[string]refs.Target)
	var external []string
	seenURL := make(map[string]bool)
	for _, d := range r.docs {
		if d.Class.Tier == classify.TierExcluded || d.failed || d.tree == nil {
			continue
		}
		t := refs.Target{Anchors: d.tree.Anchors(), Ambiguous: d.Class.Ambiguous != nil}
		if d.Typed() {
			t.Module = d.Class.Module.Name
		}
		targets[d.Path] = t
		for _, ref := range d.refs {
			if ref.Kind == schema.LinkExternal && !seenURL[ref.Raw] {
				seenURL[ref.Raw] = true
				external = append(external, ref.Raw)
			}
		}
	}

	opts := []refs.ResolverOption{}
	if r.opts.FileExists != nil {
		opts = append(opts, refs.WithFileExists(r.opts.FileExists))
	}
	if r.opts.Links != nil && len(external) > 0 {
		sort.Strings(external)
		r.log.Debug("checking external links", "urls", len(external))
		opts = append(opts, refs.WithLinkResults(r.opts.Links.Check(ctx, external)))
	}
	resolver := refs.NewResolver(r.ids, targets, opts...)

	return r.parallel(func(d *Document) {
		if !d.Typed() || d.Class.Module == nil {
			_ = d.Advance(StateReferencesResolved)
			return
		}
		line := 1
		if d.title >= 0 {
			line = d.tree.At(d.title).Line
		}
		resolved, errs := resolver.Resolve(d.Path, d.refs, d.Class.Module, line)
		d.refs = resolved
		d.AddError(errs...)
		_ = d.Advance(StateReferencesResolved)
	})(ctx)
}

// extractReferences is pass 6.
func (r *run) extractReferences(d *Document) {
	if !d.Typed() {
		return
	}
	d.refs = r.extractor.Extract(d.Path, d.tree, d.Class.Module)
	_ = d.Advance(StateReferencesExtracted)
}
