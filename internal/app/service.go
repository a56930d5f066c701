package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/s4cindia/ninja-backend-sub007/internal/changes"
	"github.com/s4cindia/ninja-backend-sub007/internal/export"
	"github.com/s4cindia/ninja-backend-sub007/internal/metrics"
	"github.com/s4cindia/ninja-backend-sub007/internal/reconcile"
	"github.com/s4cindia/ninja-backend-sub007/internal/reorder"
	"github.com/s4cindia/ninja-backend-sub007/internal/report"
	"github.com/s4cindia/ninja-backend-sub007/internal/store"
)

// ChangeInput is the request body for appending a change record.
type ChangeInput struct {
	Type       string          `json:"type"`
	CitationID *string         `json:"citationId"`
	BeforeText string          `json:"beforeText"`
	AfterText  *string         `json:"afterText"`
	Metadata   json.RawMessage `json:"metadata"`
	CreatedBy  string          `json:"createdBy"`
}

// ChangeView is the JSON form of a change record.
type ChangeView struct {
	ID         string           `json:"id"`
	Seq        int64            `json:"seq"`
	DocumentID string           `json:"documentId"`
	Type       changes.Type     `json:"type"`
	CitationID *string          `json:"citationId"`
	BeforeText string           `json:"beforeText"`
	AfterText  *string          `json:"afterText"`
	Metadata   changes.Metadata `json:"metadata"`
	IsReverted bool             `json:"isReverted"`
	CreatedBy  string           `json:"createdBy,omitempty"`
	AppliedAt  time.Time        `json:"appliedAt"`
}

type PlacementView struct {
	ReferenceID    string `json:"referenceId"`
	TargetPosition int    `json:"targetPosition"`
	Fingerprint    string `json:"fingerprint"`
}

// PlanResponse is the dry-run reconciliation of a document.
type PlanResponse struct {
	DocumentID     string                `json:"documentId"`
	Mode           reconcile.Mode        `json:"mode"`
	StyleKey       string                `json:"styleKey"`
	Operations     []reconcile.Operation `json:"operations"`
	Skips          []reconcile.Skip      `json:"skips"`
	Placements     []PlacementView       `json:"placements"`
	OrderAffecting bool                  `json:"orderAffecting"`
}

type changeStore interface {
	Append(context.Context, changes.Record) (changes.Record, error)
	ListChanges(context.Context, string) ([]changes.Record, error)
	MarkReverted(context.Context, string, string, bool) (changes.Record, error)
	Ping(ctx context.Context) error
}

type exporter interface {
	Export(context.Context, export.Request) (*export.Result, error)
	Plan(context.Context, string, string) (export.PlanView, error)
	LatestReport(context.Context, string) (report.Report, error)
}

// Pinger is a dependency checked by the readiness endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Service struct {
	store    changeStore
	exporter exporter
	metrics  *metrics.Metrics
	log      *zap.Logger
	// checks are readiness probes besides the database.
	checks map[string]Pinger
}

func New(changeStore changeStore, exporter exporter, m *metrics.Metrics, log *zap.Logger, checks map[string]Pinger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:    changeStore,
		exporter: exporter,
		metrics:  m,
		log:      log,
		checks:   checks,
	}
}

// AppendChange validates input and appends it to the document's change log.
func (s *Service) AppendChange(ctx context.Context, documentID string, input ChangeInput) (ChangeView, error) {
	changeType := changes.Type(strings.ToUpper(strings.TrimSpace(input.Type)))
	if !changeType.Valid() {
		return ChangeView{}, validationError(fmt.Sprintf("unknown change type %q", input.Type), map[string]any{"allowed": changes.Types})
	}
	meta, err := changes.DecodeMetadata(changeType, input.Metadata)
	if err != nil {
		return ChangeView{}, validationError(err.Error(), nil)
	}

	rec := changes.Record{
		DocumentID: documentID,
		Type:       changeType,
		CitationID: input.CitationID,
		BeforeText: input.BeforeText,
		AfterText:  input.AfterText,
		Metadata:   meta,
		CreatedBy:  strings.TrimSpace(input.CreatedBy),
	}
	if err := changes.Validate(&rec); err != nil {
		return ChangeView{}, err
	}

	saved, err := s.store.Append(ctx, rec)
	if err != nil {
		return ChangeView{}, err
	}
	s.metrics.IncChangeAppended(string(saved.Type))
	s.log.Info("Change record appended",
		zap.String("document_id", documentID),
		zap.String("change_id", saved.ID),
		zap.String("type", string(saved.Type)),
		zap.Int64("seq", saved.Seq))
	return changeView(saved), nil
}

func (s *Service) ListChanges(ctx context.Context, documentID string) ([]ChangeView, error) {
	records, err := s.store.ListChanges(ctx, documentID)
	if err != nil {
		return nil, err
	}
	views := make([]ChangeView, 0, len(records))
	for _, rec := range records {
		views = append(views, changeView(rec))
	}
	return views, nil
}

// SetReverted marks a change as undone (reverted=true) or redone.
func (s *Service) SetReverted(ctx context.Context, documentID, changeID string, reverted bool) (ChangeView, error) {
	rec, err := s.store.MarkReverted(ctx, documentID, changeID, reverted)
	if err != nil {
		return ChangeView{}, err
	}
	s.log.Info("Change record revert flag set",
		zap.String("document_id", documentID),
		zap.String("change_id", changeID),
		zap.Bool("reverted", reverted))
	return changeView(rec), nil
}

func (s *Service) Export(ctx context.Context, req export.Request) (*export.Result, error) {
	return s.exporter.Export(ctx, req)
}

func (s *Service) Plan(ctx context.Context, documentID, mode string) (PlanResponse, error) {
	view, err := s.exporter.Plan(ctx, documentID, mode)
	if err != nil {
		return PlanResponse{}, err
	}
	resp := PlanResponse{
		DocumentID:     view.DocumentID,
		Mode:           view.Mode,
		StyleKey:       view.StyleKey,
		Operations:     view.Operations,
		Skips:          view.Skips,
		Placements:     placementViews(view.Placements),
		OrderAffecting: view.OrderAffecting,
	}
	if resp.Operations == nil {
		resp.Operations = []reconcile.Operation{}
	}
	return resp, nil
}

func (s *Service) LatestReport(ctx context.Context, documentID string) (report.Report, error) {
	return s.exporter.LatestReport(ctx, documentID)
}

// Ping checks the database.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Ready runs every readiness check and returns per-check errors keyed by
// name. The database is always checked.
func (s *Service) Ready(ctx context.Context) map[string]error {
	results := map[string]error{"database": s.Ping(ctx)}
	for name, check := range s.checks {
		results[name] = check.Ping(ctx)
	}
	return results
}

func changeView(rec changes.Record) ChangeView {
	return ChangeView{
		ID:         rec.ID,
		Seq:        rec.Seq,
		DocumentID: rec.DocumentID,
		Type:       rec.Type,
		CitationID: rec.CitationID,
		BeforeText: rec.BeforeText,
		AfterText:  rec.AfterText,
		Metadata:   rec.Metadata,
		IsReverted: rec.IsReverted,
		CreatedBy:  rec.CreatedBy,
		AppliedAt:  rec.AppliedAt,
	}
}

func placementViews(placements []reorder.Placement) []PlacementView {
	views := make([]PlacementView, 0, len(placements))
	for _, p := range placements {
		views = append(views, PlacementView{ReferenceID: p.ReferenceID, TargetPosition: p.TargetPosition, Fingerprint: p.Fingerprint})
	}
	return views
}

var _ changeStore = (*store.PostgresStore)(nil)
