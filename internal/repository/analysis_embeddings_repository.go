package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/runsight/runsight/internal/models"
)

// AnalysisEmbeddingsRepository handles data access for the analysis_embeddings
// table: one vector-indexed row per analysis document, keyed by the same
// document ID as the structured store.
type AnalysisEmbeddingsRepository struct {
	db *pgxpool.Pool
}

// NewAnalysisEmbeddingsRepository creates a new embeddings repository.
func NewAnalysisEmbeddingsRepository(db *pgxpool.Pool) *AnalysisEmbeddingsRepository {
	return &AnalysisEmbeddingsRepository{db: db}
}

// Upsert inserts or replaces the embedding row for the document. Uses halfvec
// storage (2 bytes per dimension); pgvector-go converts float32 to float16 when encoding.
func (r *AnalysisEmbeddingsRepository) Upsert(
	ctx context.Context, documentID uuid.UUID, content string, embedding []float32, meta models.EmbeddingMetadata,
) error {
	metadataJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal embedding metadata: %w", err)
	}

	vec := pgvector.NewHalfVector(embedding)

	_, err = r.db.Exec(ctx, `
		INSERT INTO analysis_embeddings (document_id, content, embedding, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (document_id)
		DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata`,
		documentID, content, vec, metadataJSON, meta.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("analysis embeddings upsert: %w", err)
	}

	return nil
}

// Nearest returns the content, metadata, and similarity score (0..1) of the
// nearest neighbors to queryEmbedding. Only rows with score >= minScore are
// returned. Uses cosine distance (<=>); score = 1 - distance.
func (r *AnalysisEmbeddingsRepository) Nearest(
	ctx context.Context, queryEmbedding []float32, limit int, minScore float64,
) ([]models.DocumentWithScore, error) {
	queryVec := pgvector.NewHalfVector(queryEmbedding)

	rows, err := r.db.Query(ctx, `
		SELECT content, metadata, (1 - (embedding <=> $1)) AS score
		FROM analysis_embeddings
		WHERE (1 - (embedding <=> $1)) >= $2
		ORDER BY embedding <=> $1
		LIMIT $3`, queryVec, minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("nearest analysis embeddings: %w", err)
	}

	defer rows.Close()

	var results []models.DocumentWithScore

	for rows.Next() {
		var (
			row          models.DocumentWithScore
			metadataJSON []byte
		)

		if err := rows.Scan(&row.Content, &metadataJSON, &row.Score); err != nil {
			return nil, fmt.Errorf("scan document with score: %w", err)
		}

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &row.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal embedding metadata: %w", err)
			}
		}

		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating nearest: %w", err)
	}

	return results, nil
}
