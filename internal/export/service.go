package export

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/s4cindia/ninja-backend-sub007/internal/changes"
	"github.com/s4cindia/ninja-backend-sub007/internal/docx"
	"github.com/s4cindia/ninja-backend-sub007/internal/metrics"
	"github.com/s4cindia/ninja-backend-sub007/internal/reconcile"
	"github.com/s4cindia/ninja-backend-sub007/internal/reorder"
	"github.com/s4cindia/ninja-backend-sub007/internal/report"
	"github.com/s4cindia/ninja-backend-sub007/internal/store"
	"github.com/s4cindia/ninja-backend-sub007/internal/style"
	"github.com/s4cindia/ninja-backend-sub007/internal/util"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetDocument(ctx context.Context, id string) (store.Document, error)
	ListActive(ctx context.Context, documentID string) ([]changes.Record, error)
	ListReverted(ctx context.Context, documentID string, types ...changes.Type) ([]changes.Record, error)
	ListCitations(ctx context.Context, documentID string) ([]store.Citation, error)
	ListReferences(ctx context.Context, documentID string) ([]store.Reference, error)
}

// Fetcher reads original containers from object storage.
type Fetcher interface {
	FetchOriginalBytes(ctx context.Context, path, backendKind string) ([]byte, error)
}

// ReportStore keeps the latest export report per document.
type ReportStore interface {
	Save(ctx context.Context, r report.Report) error
	Latest(ctx context.Context, documentID string) (report.Report, error)
}

// Deps wires a Service. Reports and Metrics are optional.
type Deps struct {
	Store         DataStore
	Fetcher       Fetcher
	Styles        style.Normalizer
	Reports       ReportStore
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
	MaxPartBytes  int64
	DefaultAuthor string
}

// Service provides document export functionality
type Service struct {
	store         DataStore
	fetcher       Fetcher
	styles        style.Normalizer
	reports       ReportStore
	metrics       *metrics.Metrics
	log           *zap.Logger
	engine        *reconcile.Engine
	assembler     *Assembler
	defaultAuthor string
	now           func() time.Time
}

// NewService creates a new export service
func NewService(d Deps) *Service {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	styles := d.Styles
	if styles == nil {
		styles = style.Default()
	}
	return &Service{
		store:         d.Store,
		fetcher:       d.Fetcher,
		styles:        styles,
		reports:       d.Reports,
		metrics:       d.Metrics,
		log:           log,
		engine:        reconcile.New(log.Named("reconcile")),
		assembler:     NewAssembler(log.Named("assembler"), d.MaxPartBytes),
		defaultAuthor: d.DefaultAuthor,
		now:           time.Now,
	}
}

// Plan reconciles a document's change log without touching its container.
func (s *Service) Plan(ctx context.Context, documentID, mode string) (PlanView, error) {
	m, ok := reconcile.ParseMode(mode)
	if !ok {
		return PlanView{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return PlanView{}, fmt.Errorf("get document: %w", err)
	}
	return s.plan(ctx, doc, m)
}

func (s *Service) plan(ctx context.Context, doc store.Document, mode reconcile.Mode) (PlanView, error) {
	active, err := s.store.ListActive(ctx, doc.ID)
	if err != nil {
		return PlanView{}, fmt.Errorf("list active changes: %w", err)
	}
	reverted, err := s.store.ListReverted(ctx, doc.ID)
	if err != nil {
		return PlanView{}, fmt.Errorf("list reverted changes: %w", err)
	}
	citations, err := s.store.ListCitations(ctx, doc.ID)
	if err != nil {
		return PlanView{}, fmt.Errorf("list citations: %w", err)
	}
	refs, err := s.store.ListReferences(ctx, doc.ID)
	if err != nil {
		return PlanView{}, fmt.Errorf("list references: %w", err)
	}

	styleKey, err := s.styles.Normalize(doc.CitationStyle)
	if err != nil {
		s.log.Warn("Document citation style not recognized",
			zap.String("document_id", doc.ID),
			zap.String("style", doc.CitationStyle),
			zap.Error(err))
		styleKey = ""
	}

	snapshot := make([]reconcile.Reference, len(refs))
	for i, r := range refs {
		snapshot[i] = reconcile.Reference{ID: r.ID, SortKey: r.SortKey, Formatted: r.Formatted, Deleted: r.Deleted}
	}
	instances := make([]reconcile.Citation, len(citations))
	for i, c := range citations {
		instances[i] = reconcile.Citation{ID: c.ID, ParagraphIndex: c.ParagraphIndex, StartOffset: c.StartOffset, Text: c.Text}
	}

	plan := s.engine.Reconcile(reconcile.Input{
		Active:     active,
		Reverted:   reverted,
		Citations:  instances,
		References: snapshot,
		StyleKey:   styleKey,
		Mode:       mode,
	})
	return PlanView{
		DocumentID:     doc.ID,
		Mode:           mode,
		StyleKey:       styleKey,
		Operations:     plan.Operations(),
		Skips:          plan.Skips(),
		Placements:     reorder.Plan(snapshot, styleKey, plan.OrderAffecting),
		OrderAffecting: plan.OrderAffecting,
	}, nil
}

// Export re-materializes the document's edits into its original container.
// Store and storage failures are returned as errors; failures while patching
// yield the original bytes with Fallback set.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	mode, ok := reconcile.ParseMode(req.Mode)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, req.Mode)
	}
	doc, err := s.store.GetDocument(ctx, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	view, err := s.plan(ctx, doc, mode)
	if err != nil {
		return nil, err
	}
	original, err := s.fetcher.FetchOriginalBytes(ctx, doc.StoragePath, doc.StorageBackend)
	if err != nil {
		return nil, fmt.Errorf("fetch original container: %w", err)
	}

	author := req.Author
	if author == "" {
		author = s.defaultAuthor
	}
	started := s.now()
	timestamp := started.UTC().Truncate(time.Second)

	asm := s.assembler.Assemble(Job{
		Original:   original,
		Operations: view.Operations,
		Placements: view.Placements,
		Mode:       mode,
		Author:     author,
		Date:       timestamp,
	})

	skips := append(append([]reconcile.Skip{}, view.Skips...), asm.Skips...)
	result := &Result{
		Data:      asm.Data,
		Filename:  originalFilename(doc.Filename),
		MimeType:  docx.MimeType,
		Mode:      mode,
		Author:    author,
		Timestamp: timestamp,
		Applied:   asm.Applied,
		Skipped:   skips,
		Fallback:  asm.Fallback,
	}

	s.record(ctx, doc.ID, result, asm, len(view.Placements), s.now().Sub(started))
	return result, nil
}

func (s *Service) record(ctx context.Context, documentID string, result *Result, asm Assembly, placements int, elapsed time.Duration) {
	s.metrics.ObserveExport(string(result.Mode), result.Fallback, elapsed)
	for scope, n := range asm.AppliedByScope {
		s.metrics.AddApplied(string(scope), n)
	}
	var summary error
	for _, skip := range result.Skipped {
		s.metrics.IncSkip(string(skip.Kind))
		summary = multierr.Append(summary, fmt.Errorf("%s %s: %s", skip.Kind, skip.SubjectKey, skip.Reason))
	}

	fields := []zap.Field{
		zap.String("document_id", documentID),
		zap.String("mode", string(result.Mode)),
		zap.Int("applied", result.Applied),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("moved", asm.Moved),
		zap.Bool("fallback", result.Fallback),
		zap.Duration("elapsed", elapsed),
	}
	if summary != nil {
		fields = append(fields, zap.Errors("skips", multierr.Errors(summary)))
	}
	s.log.Info("Export assembled", fields...)

	if s.reports == nil {
		return
	}
	rep := report.Report{
		ExportID:   util.NewID("exp"),
		DocumentID: documentID,
		Mode:       result.Mode,
		Timestamp:  result.Timestamp,
		Applied:    result.Applied,
		Skips:      result.Skipped,
		Placements: placements,
		Fallback:   result.Fallback,
	}
	if result.Mode == reconcile.ModeTracked {
		rep.Author = result.Author
	}
	if asm.Err != nil {
		rep.FallbackReason = asm.Err.Error()
	}
	if err := s.reports.Save(ctx, rep); err != nil {
		s.log.Warn("Failed to save export report", zap.String("document_id", documentID), zap.Error(err))
	}
}

// LatestReport returns the most recent export report of a document.
func (s *Service) LatestReport(ctx context.Context, documentID string) (report.Report, error) {
	if s.reports == nil {
		return report.Report{}, report.ErrNotFound
	}
	return s.reports.Latest(ctx, documentID)
}
