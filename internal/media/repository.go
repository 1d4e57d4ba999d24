package media

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Repository interface {
	Create(ctx context.Context, m *Media) error
	ListAll(ctx context.Context) ([]*Media, error)
	FindByID(ctx context.Context, id string) (*Media, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const mediaColumns = `id, title, genre, synopsis, storage_kind, remote_provider, remote_id, display_url,
			  duration, format, width, height, bytes, thumbnail_url, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, m *Media) error {
	now := time.Now().UTC()
	m.ID = uuid.NewString()
	m.CreatedAt = now
	m.UpdatedAt = now
	if m.Genre == nil {
		m.Genre = []string{}
	}

	query := `INSERT INTO media (` + mediaColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.db.ExecContext(ctx, query,
		m.ID,
		m.Title,
		pq.Array(m.Genre),
		m.Synopsis,
		string(m.StorageKind),
		nullString(m.RemoteProvider),
		m.RemoteID,
		m.DisplayURL,
		m.Duration,
		m.Format,
		m.Resolution.Width,
		m.Resolution.Height,
		m.Bytes,
		m.ThumbnailURL,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert media: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]*Media, error) {
	query := `SELECT ` + mediaColumns + `
			  FROM media ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	list := []*Media{}
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*Media, error) {
	// ids are UUIDs; anything else cannot exist and would only make postgres
	// reject the cast.
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	query := `SELECT ` + mediaColumns + `
			  FROM media WHERE id = $1`

	m, err := scanMedia(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get media by id: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM media WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count media: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMedia(row rowScanner) (*Media, error) {
	m := &Media{}
	var (
		genre                                  pq.StringArray
		storageKind                            string
		synopsis, provider, remoteID, thumbURL sql.NullString
		width, height                          sql.NullInt64
	)

	err := row.Scan(
		&m.ID,
		&m.Title,
		&genre,
		&synopsis,
		&storageKind,
		&provider,
		&remoteID,
		&m.DisplayURL,
		&m.Duration,
		&m.Format,
		&width,
		&height,
		&m.Bytes,
		&thumbURL,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.Genre = []string(genre)
	if m.Genre == nil {
		m.Genre = []string{}
	}
	m.StorageKind = StorageKind(storageKind)
	m.Synopsis = stringPtr(synopsis)
	m.RemoteProvider = provider.String
	m.RemoteID = stringPtr(remoteID)
	m.ThumbnailURL = stringPtr(thumbURL)
	m.Resolution.Width = intPtr(width)
	m.Resolution.Height = intPtr(height)
	return m, nil
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
