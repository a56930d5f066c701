package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/multierr"

	"github.com/s4cindia/ninja-backend-sub007/internal/changes"
	"github.com/s4cindia/ninja-backend-sub007/internal/util"
)

// ErrNotFound is returned when a document or change record does not exist.
var ErrNotFound = errors.New("not found")

// ErrAppendOnly is returned when the database rejects a change-log mutation.
var ErrAppendOnly = errors.New("change log is append-only")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (Document, error) {
	var doc Document
	err := s.db.QueryRowContext(ctx, `
		SELECT id, filename, storage_path, storage_backend, citation_style, created_at, updated_at
		FROM documents
		WHERE id=$1
	`, documentID).Scan(&doc.ID, &doc.Filename, &doc.StoragePath, &doc.StorageBackend, &doc.CitationStyle, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("document %s: %w", documentID, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) ListCitations(ctx context.Context, documentID string) (items []Citation, err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, paragraph_index, start_offset, end_offset, text, kind, reference_ids
		FROM citations
		WHERE document_id=$1
		ORDER BY paragraph_index ASC, start_offset ASC, id ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list citations: %w", err)
	}
	defer func() {
		err = multierr.Append(err, rows.Close())
	}()

	items = make([]Citation, 0)
	for rows.Next() {
		var item Citation
		var refsRaw []byte
		if err := rows.Scan(&item.ID, &item.DocumentID, &item.ParagraphIndex, &item.StartOffset, &item.EndOffset, &item.Text, &item.Kind, &refsRaw); err != nil {
			return nil, fmt.Errorf("scan citation: %w", err)
		}
		if err := json.Unmarshal(refsRaw, &item.ReferenceIDs); err != nil {
			return nil, fmt.Errorf("decode citation %s reference ids: %w", item.ID, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate citations: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListReferences(ctx context.Context, documentID string) (items []Reference, err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, sort_key, formatted, authors, year, title, journal, doi, deleted
		FROM reference_entries
		WHERE document_id=$1
		ORDER BY sort_key ASC, id ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}
	defer func() {
		err = multierr.Append(err, rows.Close())
	}()

	items = make([]Reference, 0)
	for rows.Next() {
		var item Reference
		var formattedRaw, authorsRaw []byte
		if err := rows.Scan(&item.ID, &item.DocumentID, &item.SortKey, &formattedRaw, &authorsRaw, &item.Year, &item.Title, &item.Journal, &item.DOI, &item.Deleted); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		if err := json.Unmarshal(formattedRaw, &item.Formatted); err != nil {
			return nil, fmt.Errorf("decode reference %s formatted text: %w", item.ID, err)
		}
		if err := json.Unmarshal(authorsRaw, &item.Authors); err != nil {
			return nil, fmt.Errorf("decode reference %s authors: %w", item.ID, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate references: %w", err)
	}
	return items, nil
}

// Append stores rec and returns it with its assigned ID, sequence number and
// timestamp.
func (s *PostgresStore) Append(ctx context.Context, rec changes.Record) (changes.Record, error) {
	if rec.ID == "" {
		rec.ID = util.NewID("")
	}
	metadata, err := changes.EncodeMetadata(rec.Metadata)
	if err != nil {
		return changes.Record{}, err
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO change_log (id, document_id, change_type, citation_id, before_text, after_text, metadata, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)
		RETURNING seq, applied_at, is_reverted
	`, rec.ID, rec.DocumentID, string(rec.Type), rec.CitationID, rec.BeforeText, rec.AfterText, string(metadata), rec.CreatedBy,
	).Scan(&rec.Seq, &rec.AppliedAt, &rec.IsReverted)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return changes.Record{}, fmt.Errorf("document %s: %w", rec.DocumentID, ErrNotFound)
		}
		return changes.Record{}, fmt.Errorf("append change record: %w", err)
	}
	return rec, nil
}

// ListActive returns the non-reverted records of a document in append order.
func (s *PostgresStore) ListActive(ctx context.Context, documentID string) ([]changes.Record, error) {
	return s.queryChanges(ctx, `WHERE document_id=$1 AND is_reverted=FALSE`, documentID)
}

// ListReverted returns reverted records in append order, optionally limited
// to the given types.
func (s *PostgresStore) ListReverted(ctx context.Context, documentID string, types ...changes.Type) ([]changes.Record, error) {
	if len(types) == 0 {
		return s.queryChanges(ctx, `WHERE document_id=$1 AND is_reverted=TRUE`, documentID)
	}
	args := []any{documentID}
	placeholders := make([]string, len(types))
	for i, t := range types {
		args = append(args, string(t))
		placeholders[i] = fmt.Sprintf("$%d", i+2)
	}
	where := `WHERE document_id=$1 AND is_reverted=TRUE AND change_type IN (` + strings.Join(placeholders, ", ") + `)`
	return s.queryChanges(ctx, where, args...)
}

// ListChanges returns every record of a document in append order.
func (s *PostgresStore) ListChanges(ctx context.Context, documentID string) ([]changes.Record, error) {
	return s.queryChanges(ctx, `WHERE document_id=$1`, documentID)
}

// MarkReverted flips the revert flag of one record.
func (s *PostgresStore) MarkReverted(ctx context.Context, documentID, changeID string, reverted bool) (changes.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE change_log
		SET is_reverted=$3
		WHERE document_id=$1 AND id=$2
		RETURNING `+changeColumns,
		documentID, changeID, reverted,
	)
	rec, err := scanChange(row)
	if errors.Is(err, sql.ErrNoRows) {
		return changes.Record{}, fmt.Errorf("change %s: %w", changeID, ErrNotFound)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "55000" {
			return changes.Record{}, fmt.Errorf("%w: %s", ErrAppendOnly, pgErr.Message)
		}
		return changes.Record{}, fmt.Errorf("mark change reverted: %w", err)
	}
	return rec, nil
}

const changeColumns = `id, seq, document_id, change_type, citation_id, before_text, after_text, metadata, is_reverted, created_by, applied_at`

func (s *PostgresStore) queryChanges(ctx context.Context, where string, args ...any) (items []changes.Record, err error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+changeColumns+` FROM change_log `+where+` ORDER BY seq ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list change records: %w", err)
	}
	defer func() {
		err = multierr.Append(err, rows.Close())
	}()

	items = make([]changes.Record, 0)
	for rows.Next() {
		rec, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate change records: %w", err)
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChange(row rowScanner) (changes.Record, error) {
	var (
		rec         changes.Record
		changeType  string
		citationID  sql.NullString
		afterText   sql.NullString
		metadataRaw []byte
	)
	if err := row.Scan(&rec.ID, &rec.Seq, &rec.DocumentID, &changeType, &citationID, &rec.BeforeText, &afterText, &metadataRaw, &rec.IsReverted, &rec.CreatedBy, &rec.AppliedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return changes.Record{}, err
		}
		return changes.Record{}, fmt.Errorf("scan change record: %w", err)
	}
	rec.Type = changes.Type(changeType)
	if citationID.Valid {
		rec.CitationID = &citationID.String
	}
	if afterText.Valid {
		rec.AfterText = &afterText.String
	}
	metadata, err := changes.DecodeMetadata(rec.Type, metadataRaw)
	if err != nil {
		return changes.Record{}, fmt.Errorf("decode change %s metadata: %w", rec.ID, err)
	}
	rec.Metadata = metadata
	return rec, nil
}
