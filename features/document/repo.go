package document

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, doc *Document) error {
	query := `INSERT INTO documents (user_id, filename, status, chunk_count, chunk_ids, retention_task_id, upload_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	return r.db.QueryRowContext(ctx, query,
		doc.UserID, doc.Filename, doc.Status, doc.ChunkCount,
		pq.Array(doc.ChunkIDs), doc.RetentionTaskID, doc.UploadDate,
	).Scan(&doc.ID)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Document, error) {
	doc := &Document{}
	query := `SELECT id, user_id, filename, status, chunk_count, chunk_ids, retention_task_id, upload_date
		FROM documents WHERE id = $1 AND deleted_at IS NULL`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID, &doc.UserID, &doc.Filename, &doc.Status, &doc.ChunkCount,
		pq.Array(&doc.ChunkIDs), &doc.RetentionTaskID, &doc.UploadDate,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *PostgresRepo) ListByUser(ctx context.Context, userID string) ([]Document, error) {
	query := `SELECT id, user_id, filename, status, chunk_count, chunk_ids, retention_task_id, upload_date
		FROM documents WHERE user_id = $1 AND deleted_at IS NULL ORDER BY upload_date DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(
			&d.ID, &d.UserID, &d.Filename, &d.Status, &d.ChunkCount,
			pq.Array(&d.ChunkIDs), &d.RetentionTaskID, &d.UploadDate,
		); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *PostgresRepo) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE documents SET deleted_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}
