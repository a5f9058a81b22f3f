// Package repository contains pgx data access for analysis documents and
// their embedding index rows.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/runsight/runsight/internal/models"
)

// ErrDocumentNotFound is returned when no analysis document exists for the given document ID.
var ErrDocumentNotFound = errors.New("analysis document not found")

// AnalysisDocumentsRepository handles data access for the run_analysis_documents table.
type AnalysisDocumentsRepository struct {
	db *pgxpool.Pool
}

// NewAnalysisDocumentsRepository creates a new analysis documents repository.
func NewAnalysisDocumentsRepository(db *pgxpool.Pool) *AnalysisDocumentsRepository {
	return &AnalysisDocumentsRepository{db: db}
}

const documentColumns = `document_id, activity_ids, query_text, analysis_content, summary,
	total_runs, total_distance_km, metadata, created_at`

// Save inserts the document and returns it as stored. Documents are written
// once; there is no update path.
func (r *AnalysisDocumentsRepository) Save(ctx context.Context, doc models.AnalysisDocument) (models.AnalysisDocument, error) {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return models.AnalysisDocument{}, fmt.Errorf("marshal document metadata: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO run_analysis_documents
			(document_id, activity_ids, query_text, analysis_content, summary,
			 total_runs, total_distance_km, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		doc.DocumentID, doc.ActivityIDs, doc.QueryText, doc.AnalysisContent, doc.Summary,
		doc.TotalRuns, doc.TotalDistanceKm, metadataJSON, doc.CreatedAt,
	)
	if err != nil {
		return models.AnalysisDocument{}, fmt.Errorf("insert analysis document: %w", err)
	}

	return doc, nil
}

// FindByDocumentID returns the document with the given ID.
// Returns ErrDocumentNotFound when no row exists.
func (r *AnalysisDocumentsRepository) FindByDocumentID(ctx context.Context, documentID uuid.UUID) (models.AnalysisDocument, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM run_analysis_documents WHERE document_id = $1`,
		documentID,
	)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.AnalysisDocument{}, ErrDocumentNotFound
		}

		return models.AnalysisDocument{}, fmt.Errorf("get analysis document: %w", err)
	}

	return doc, nil
}

// Recent returns the most recently created documents, newest first.
func (r *AnalysisDocumentsRepository) Recent(ctx context.Context, limit int) ([]models.AnalysisDocument, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+` FROM run_analysis_documents ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent analysis documents: %w", err)
	}

	return collectDocuments(rows)
}

// FindByActivityID returns documents whose comma-joined activity ID list
// contains the given activity ID as a substring, newest first.
func (r *AnalysisDocumentsRepository) FindByActivityID(ctx context.Context, activityID string) ([]models.AnalysisDocument, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+` FROM run_analysis_documents
		 WHERE activity_ids LIKE '%' || $1 || '%' ORDER BY created_at DESC`,
		activityID,
	)
	if err != nil {
		return nil, fmt.Errorf("analysis documents by activity id: %w", err)
	}

	return collectDocuments(rows)
}

// FindByMinimumDistance returns documents whose total distance is at least minDistanceKm, newest first.
func (r *AnalysisDocumentsRepository) FindByMinimumDistance(ctx context.Context, minDistanceKm float64) ([]models.AnalysisDocument, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+` FROM run_analysis_documents
		 WHERE total_distance_km >= $1 ORDER BY created_at DESC`,
		minDistanceKm,
	)
	if err != nil {
		return nil, fmt.Errorf("analysis documents by minimum distance: %w", err)
	}

	return collectDocuments(rows)
}

// FindByMinimumRuns returns documents covering at least minRuns runs, newest first.
func (r *AnalysisDocumentsRepository) FindByMinimumRuns(ctx context.Context, minRuns int) ([]models.AnalysisDocument, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+` FROM run_analysis_documents
		 WHERE total_runs >= $1 ORDER BY created_at DESC`,
		minRuns,
	)
	if err != nil {
		return nil, fmt.Errorf("analysis documents by minimum runs: %w", err)
	}

	return collectDocuments(rows)
}

func scanDocument(row pgx.Row) (models.AnalysisDocument, error) {
	var (
		doc          models.AnalysisDocument
		metadataJSON []byte
	)

	err := row.Scan(
		&doc.DocumentID, &doc.ActivityIDs, &doc.QueryText, &doc.AnalysisContent, &doc.Summary,
		&doc.TotalRuns, &doc.TotalDistanceKm, &metadataJSON, &doc.CreatedAt,
	)
	if err != nil {
		return models.AnalysisDocument{}, err
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
			return models.AnalysisDocument{}, fmt.Errorf("unmarshal document metadata: %w", err)
		}
	}

	return doc, nil
}

func collectDocuments(rows pgx.Rows) ([]models.AnalysisDocument, error) {
	defer rows.Close()

	var docs []models.AnalysisDocument

	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis document: %w", err)
		}

		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating analysis documents: %w", err)
	}

	return docs, nil
}
