package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/s4cindia/ninja-backend-sub007/internal/changes"
	"github.com/s4cindia/ninja-backend-sub007/internal/docx"
	"github.com/s4cindia/ninja-backend-sub007/internal/metrics"
	"github.com/s4cindia/ninja-backend-sub007/internal/reconcile"
	"github.com/s4cindia/ninja-backend-sub007/internal/report"
	"github.com/s4cindia/ninja-backend-sub007/internal/storage"
	"github.com/s4cindia/ninja-backend-sub007/internal/store"
)

type fakeDataStore struct {
	getDocumentFn    func(ctx context.Context, id string) (store.Document, error)
	listActiveFn     func(ctx context.Context, documentID string) ([]changes.Record, error)
	listRevertedFn   func(ctx context.Context, documentID string, types ...changes.Type) ([]changes.Record, error)
	listCitationsFn  func(ctx context.Context, documentID string) ([]store.Citation, error)
	listReferencesFn func(ctx context.Context, documentID string) ([]store.Reference, error)
}

func (f *fakeDataStore) GetDocument(ctx context.Context, id string) (store.Document, error) {
	if f.getDocumentFn != nil {
		return f.getDocumentFn(ctx, id)
	}
	return store.Document{}, fmt.Errorf("document %s: %w", id, store.ErrNotFound)
}

func (f *fakeDataStore) ListActive(ctx context.Context, documentID string) ([]changes.Record, error) {
	if f.listActiveFn != nil {
		return f.listActiveFn(ctx, documentID)
	}
	return nil, nil
}

func (f *fakeDataStore) ListReverted(ctx context.Context, documentID string, types ...changes.Type) ([]changes.Record, error) {
	if f.listRevertedFn != nil {
		return f.listRevertedFn(ctx, documentID, types...)
	}
	return nil, nil
}

func (f *fakeDataStore) ListCitations(ctx context.Context, documentID string) ([]store.Citation, error) {
	if f.listCitationsFn != nil {
		return f.listCitationsFn(ctx, documentID)
	}
	return nil, nil
}

func (f *fakeDataStore) ListReferences(ctx context.Context, documentID string) ([]store.Reference, error) {
	if f.listReferencesFn != nil {
		return f.listReferencesFn(ctx, documentID)
	}
	return nil, nil
}

type fakeFetcher struct {
	fetchFn func(ctx context.Context, path, kind string) ([]byte, error)
}

func (f *fakeFetcher) FetchOriginalBytes(ctx context.Context, path, kind string) ([]byte, error) {
	return f.fetchFn(ctx, path, kind)
}

type memoryReports struct {
	saved []report.Report
}

func (m *memoryReports) Save(_ context.Context, r report.Report) error {
	m.saved = append(m.saved, r)
	return nil
}

func (m *memoryReports) Latest(_ context.Context, documentID string) (report.Report, error) {
	for i := len(m.saved) - 1; i >= 0; i-- {
		if m.saved[i].DocumentID == documentID {
			return m.saved[i], nil
		}
	}
	return report.Report{}, report.ErrNotFound
}

const jonesBefore = "Jones, K. (2019). Another."
const jonesAfter = "Jones, K. (2019). Another one."

// fixture is a document with one renumbered citation and one edited
// reference.
func fixture(t *testing.T, styleLabel string) (*fakeDataStore, *fakeFetcher) {
	t.Helper()
	original := buildDocx(t, sampleBody(), para("See (1)."))
	c1 := "c1"

	ds := &fakeDataStore{
		getDocumentFn: func(_ context.Context, id string) (store.Document, error) {
			if id != "doc-1" {
				return store.Document{}, fmt.Errorf("document %s: %w", id, store.ErrNotFound)
			}
			return store.Document{
				ID:             "doc-1",
				Filename:       "paper.docx",
				StoragePath:    "docs/doc-1.docx",
				StorageBackend: storage.KindLocal,
				CitationStyle:  styleLabel,
			}, nil
		},
		listActiveFn: func(context.Context, string) ([]changes.Record, error) {
			return []changes.Record{
				{ID: "ch-1", DocumentID: "doc-1", Type: changes.TypeRenumber, CitationID: &c1, BeforeText: "(1)", AfterText: changes.Str("(3)"), Metadata: changes.RenumberMeta{}, Seq: 1},
				{ID: "ch-2", DocumentID: "doc-1", Type: changes.TypeReferenceEdit, BeforeText: jonesBefore, AfterText: changes.Str(jonesAfter), Seq: 2,
					Metadata: changes.ReferenceEditMeta{
						ReferenceID:     "r2",
						BeforeFormatted: map[string]string{"apa": jonesBefore},
						AfterFormatted:  map[string]string{"apa": jonesAfter},
					}},
			}, nil
		},
		listCitationsFn: func(context.Context, string) ([]store.Citation, error) {
			return []store.Citation{{ID: "c1", DocumentID: "doc-1", Text: "(3)", Kind: store.CitationNumeric}}, nil
		},
		listReferencesFn: func(context.Context, string) ([]store.Reference, error) {
			return []store.Reference{
				{ID: "r1", DocumentID: "doc-1", SortKey: 1, Formatted: map[string]string{"apa": "Smith, J. (2020). Old title."}},
				{ID: "r2", DocumentID: "doc-1", SortKey: 2, Formatted: map[string]string{"apa": jonesAfter}},
			}, nil
		},
	}
	fetcher := &fakeFetcher{fetchFn: func(_ context.Context, path, kind string) ([]byte, error) {
		if path != "docs/doc-1.docx" || kind != storage.KindLocal {
			return nil, storage.ErrNotFound
		}
		return original, nil
	}}
	return ds, fetcher
}

func newTestService(t *testing.T, ds DataStore, f Fetcher, reports ReportStore) *Service {
	t.Helper()
	m, err := metrics.New()
	require.NoError(t, err)
	return NewService(Deps{
		Store:         ds,
		Fetcher:       f,
		Reports:       reports,
		Metrics:       m,
		Logger:        zaptest.NewLogger(t),
		DefaultAuthor: "Citation Editor",
	})
}

func TestExportClean(t *testing.T) {
	ds, fetcher := fixture(t, "APA")
	reports := &memoryReports{}
	svc := newTestService(t, ds, fetcher, reports)

	res, err := svc.Export(context.Background(), Request{DocumentID: "doc-1"})
	require.NoError(t, err)

	assert.Equal(t, "paper.docx", res.Filename)
	assert.Equal(t, docx.MimeType, res.MimeType)
	assert.Equal(t, reconcile.ModeClean, res.Mode)
	assert.False(t, res.Fallback)
	assert.Equal(t, 2, res.Applied)
	assert.Empty(t, res.Skipped)
	assert.Equal(t, []string{
		"As shown (3) and [2].",
		"References",
		"Smith, J. (2020). Old title.",
		jonesAfter,
	}, paragraphTexts(t, res.Data, "word/document.xml"))
	assert.Equal(t, []string{"See (3)."}, paragraphTexts(t, res.Data, "word/footnotes.xml"))

	require.Len(t, reports.saved, 1)
	rep := reports.saved[0]
	assert.True(t, strings.HasPrefix(rep.ExportID, "exp_"))
	assert.Equal(t, "doc-1", rep.DocumentID)
	assert.Equal(t, 2, rep.Applied)
	assert.Empty(t, rep.Author)
	assert.False(t, rep.Fallback)

	latest, err := svc.LatestReport(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, rep.ExportID, latest.ExportID)
}

func TestExportTrackedUsesDefaultAuthor(t *testing.T) {
	ds, fetcher := fixture(t, "apa 7th edition")
	reports := &memoryReports{}
	svc := newTestService(t, ds, fetcher, reports)
	svc.now = func() time.Time { return time.Date(2026, 5, 6, 7, 8, 9, 500, time.FixedZone("X", 3600)) }

	res, err := svc.Export(context.Background(), Request{DocumentID: "doc-1", Mode: "tracked"})
	require.NoError(t, err)

	assert.Equal(t, reconcile.ModeTracked, res.Mode)
	assert.Equal(t, "Citation Editor", res.Author)
	assert.Equal(t, time.Date(2026, 5, 6, 6, 8, 9, 0, time.UTC), res.Timestamp)
	assert.Contains(t, partXML(t, res.Data, "word/document.xml"), `w:author="Citation Editor"`)

	require.Len(t, reports.saved, 1)
	assert.Equal(t, "Citation Editor", reports.saved[0].Author)
}

func TestExportUnknownStyleSkipsReferenceEdits(t *testing.T) {
	ds, fetcher := fixture(t, "Bluebook")
	svc := newTestService(t, ds, fetcher, nil)

	res, err := svc.Export(context.Background(), Request{DocumentID: "doc-1"})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Applied)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "reference:r2", res.Skipped[0].SubjectKey)
	assert.Equal(t, reconcile.SkipConfig, res.Skipped[0].Kind)
	assert.Contains(t, paragraphTexts(t, res.Data, "word/document.xml"), jonesBefore)
}

func TestExportInvalidMode(t *testing.T) {
	ds := &fakeDataStore{getDocumentFn: func(context.Context, string) (store.Document, error) {
		t.Fatal("store should not be consulted for an invalid mode")
		return store.Document{}, nil
	}}
	svc := newTestService(t, ds, &fakeFetcher{}, nil)

	_, err := svc.Export(context.Background(), Request{DocumentID: "doc-1", Mode: "redline"})
	assert.True(t, errors.Is(err, ErrInvalidMode))

	_, err = svc.Plan(context.Background(), "doc-1", "redline")
	assert.True(t, errors.Is(err, ErrInvalidMode))
}

func TestExportMissingDocument(t *testing.T) {
	ds, fetcher := fixture(t, "APA")
	svc := newTestService(t, ds, fetcher, nil)

	_, err := svc.Export(context.Background(), Request{DocumentID: "nope"})
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestExportStorageFailureIsReturned(t *testing.T) {
	ds, _ := fixture(t, "APA")
	fetcher := &fakeFetcher{fetchFn: func(context.Context, string, string) ([]byte, error) {
		return nil, storage.ErrTooLarge
	}}
	svc := newTestService(t, ds, fetcher, nil)

	_, err := svc.Export(context.Background(), Request{DocumentID: "doc-1"})
	assert.True(t, errors.Is(err, storage.ErrTooLarge))
}

func TestExportFallbackIsReported(t *testing.T) {
	ds, _ := fixture(t, "APA")
	garbage := []byte("not a docx")
	fetcher := &fakeFetcher{fetchFn: func(context.Context, string, string) ([]byte, error) {
		return garbage, nil
	}}
	reports := &memoryReports{}
	svc := newTestService(t, ds, fetcher, reports)

	res, err := svc.Export(context.Background(), Request{DocumentID: "doc-1"})
	require.NoError(t, err)

	assert.True(t, res.Fallback)
	assert.Equal(t, garbage, res.Data)
	assert.Zero(t, res.Applied)
	require.Len(t, reports.saved, 1)
	assert.True(t, reports.saved[0].Fallback)
	assert.Contains(t, reports.saved[0].FallbackReason, ErrApplyFailed.Error())
}

func TestPlanIncludesPlacementsForReorder(t *testing.T) {
	ds, fetcher := fixture(t, "APA")
	ds.listActiveFn = func(context.Context, string) ([]changes.Record, error) {
		return []changes.Record{{
			ID: "ch-9", DocumentID: "doc-1", Type: changes.TypeReorder, Seq: 1,
			Metadata: changes.ReorderMeta{ReferenceID: "r2", FromPosition: 1, ToPosition: 0},
		}}, nil
	}
	svc := newTestService(t, ds, fetcher, nil)

	view, err := svc.Plan(context.Background(), "doc-1", "")
	require.NoError(t, err)

	assert.Equal(t, "apa", view.StyleKey)
	assert.True(t, view.OrderAffecting)
	assert.Empty(t, view.Operations)
	require.Len(t, view.Placements, 2)
	assert.Equal(t, "r1", view.Placements[0].ReferenceID)
	assert.Equal(t, "r2", view.Placements[1].ReferenceID)
}

func TestLatestReportWithoutStore(t *testing.T) {
	svc := newTestService(t, &fakeDataStore{}, &fakeFetcher{}, nil)

	_, err := svc.LatestReport(context.Background(), "doc-1")
	assert.True(t, errors.Is(err, report.ErrNotFound))
}

func TestOriginalFilename(t *testing.T) {
	for in, want := range map[string]string{
		"paper.docx":              "paper.docx",
		"My Thesis (final).docx":  "My Thesis (final).docx",
		"résumé.docx":             "résumé.docx",
		"uploads/2026/paper.docx": "paper.docx",
		"":                        "document.docx",
		"  ":                      "document.docx",
	} {
		assert.Equal(t, want, originalFilename(in), in)
	}
}
