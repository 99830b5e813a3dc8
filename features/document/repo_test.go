package document

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepo_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	doc := &Document{
		UserID:          "u1",
		Filename:        "q3.pdf",
		Status:          "processed",
		ChunkCount:      2,
		ChunkIDs:        []string{"c1", "c2"},
		RetentionTaskID: "task-1",
		UploadDate:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	mock.ExpectQuery("INSERT INTO documents").
		WithArgs(doc.UserID, doc.Filename, doc.Status, doc.ChunkCount,
			pq.Array(doc.ChunkIDs), doc.RetentionTaskID, doc.UploadDate).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("d1"))

	repo := NewPostgresRepo(db)
	require.NoError(t, repo.Save(context.Background(), doc))
	assert.Equal(t, "d1", doc.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	uploadDate := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "user_id", "filename", "status", "chunk_count", "chunk_ids", "retention_task_id", "upload_date"}).
		AddRow("d1", "u1", "q3.pdf", "processed", 2, pq.Array([]string{"c1", "c2"}), "task-1", uploadDate)

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id").
		WithArgs("d1").
		WillReturnRows(rows)

	repo := NewPostgresRepo(db)
	doc, err := repo.Get(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "u1", doc.UserID)
	assert.Equal(t, []string{"c1", "c2"}, doc.ChunkIDs)
	assert.Equal(t, "task-1", doc.RetentionTaskID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Get_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := NewPostgresRepo(db)
	_, err = repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRepo_ListByUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	uploadDate := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "user_id", "filename", "status", "chunk_count", "chunk_ids", "retention_task_id", "upload_date"}).
		AddRow("d2", "u1", "q4.pdf", "processed", 1, pq.Array([]string{"c3"}), "task-2", uploadDate.Add(time.Hour)).
		AddRow("d1", "u1", "q3.pdf", "processed", 2, pq.Array([]string{"c1", "c2"}), "task-1", uploadDate)

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE user_id").
		WithArgs("u1").
		WillReturnRows(rows)

	repo := NewPostgresRepo(db)
	docs, err := repo.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "q4.pdf", docs[0].Filename)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_SoftDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE documents SET deleted_at").
		WithArgs("d1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPostgresRepo(db)
	require.NoError(t, repo.SoftDelete(context.Background(), "d1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
