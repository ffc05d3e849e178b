package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"coughstore/internal/domain"
)

var ErrNotFound = errors.New("recording not found")

// RecordingFilter задает параметры выборки списка записей
type RecordingFilter struct {
	Method  string
	Format  string
	UserID  string
	Search  string
	OrderBy string // created_at, duration, file_size
	Desc    bool
	Limit   int
	Offset  int
}

type RecordingRepository struct {
	db *sqlx.DB
}

func NewRecordingRepository(db *sqlx.DB) *RecordingRepository {
	return &RecordingRepository{db: db}
}

// Save сохраняет финализированную запись. Время приема назначает база,
// идентификатор записи назначен конвейером до вставки
func (r *RecordingRepository) Save(ctx context.Context, rec *domain.Recording) error {
	query := `
        INSERT INTO recordings (
            recording_id, user_id, anonymous_name, s3_key,
            file_name, file_size, file_format, duration, recording_method,
            created_at, user_agent, ip_address,
            sample_rate, bit_rate, channels
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
        RETURNING uploaded_at`

	err := r.db.QueryRowContext(ctx, query,
		rec.RecordingID, rec.UserID, rec.AnonymousName, rec.S3Key,
		rec.FileName, rec.FileSize, rec.FileFormat, rec.Duration, rec.RecordingMethod,
		rec.CreatedAt, rec.UserAgent, rec.IPAddress,
		rec.SampleRate, rec.BitRate, rec.Channels,
	).Scan(&rec.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to save recording: %w", err)
	}

	return nil
}

func (r *RecordingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Recording, error) {
	var rec domain.Recording
	query := `SELECT * FROM recordings WHERE recording_id = $1`

	err := r.db.GetContext(ctx, &rec, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recording: %w", err)
	}

	return &rec, nil
}

// List возвращает записи по фильтру, по умолчанию свежие первыми
func (r *RecordingRepository) List(ctx context.Context, filter RecordingFilter) ([]domain.Recording, error) {
	var (
		conditions []string
		args       []interface{}
	)

	addCondition := func(cond string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.Method != "" {
		addCondition("recording_method = $%d", filter.Method)
	}
	if filter.Format != "" {
		addCondition("file_format = $%d", filter.Format)
	}
	if filter.UserID != "" {
		addCondition("user_id = $%d", filter.UserID)
	}
	if filter.Search != "" {
		addCondition("(file_name ILIKE $%[1]d OR anonymous_name ILIKE $%[1]d OR user_id ILIKE $%[1]d)",
			"%"+filter.Search+"%")
	}

	query := `SELECT * FROM recordings`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	orderBy := "created_at"
	switch filter.OrderBy {
	case "duration", "file_size", "created_at":
		orderBy = filter.OrderBy
	}
	direction := "ASC"
	if filter.Desc || filter.OrderBy == "" {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", orderBy, direction)

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var recs []domain.Recording
	if err := r.db.SelectContext(ctx, &recs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}

	return recs, nil
}

// ListAll возвращает все записи для выгрузки, свежие первыми
func (r *RecordingRepository) ListAll(ctx context.Context) ([]domain.Recording, error) {
	return r.List(ctx, RecordingFilter{})
}

func (r *RecordingRepository) ListByUser(ctx context.Context, userID string) ([]domain.Recording, error) {
	return r.List(ctx, RecordingFilter{UserID: userID})
}

// DeleteOwned удаляет запись только вместе с проверкой владельца:
// анонимные записи обычным способом не удаляются
func (r *RecordingRepository) DeleteOwned(ctx context.Context, id uuid.UUID, userID string) (*domain.Recording, error) {
	var rec domain.Recording
	query := `
        DELETE FROM recordings
        WHERE recording_id = $1 AND user_id = $2
        RETURNING *`

	err := r.db.GetContext(ctx, &rec, query, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete recording: %w", err)
	}

	return &rec, nil
}

// UpdateDuration дозаполняет длительность уже сохраненной записи.
// Защитное условие duration IS NULL гарантирует, что фоновый проход
// никогда не перезапишет уже известное значение
func (r *RecordingRepository) UpdateDuration(ctx context.Context, id uuid.UUID, seconds float64) (bool, error) {
	query := `
        UPDATE recordings
        SET duration = $1
        WHERE recording_id = $2 AND duration IS NULL`

	result, err := r.db.ExecContext(ctx, query, seconds, id)
	if err != nil {
		return false, fmt.Errorf("failed to update duration: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected > 0, nil
}

// ListMissingDuration возвращает записи без измеренной длительности
func (r *RecordingRepository) ListMissingDuration(ctx context.Context, limit int) ([]domain.Recording, error) {
	var recs []domain.Recording
	query := `
        SELECT * FROM recordings
        WHERE duration IS NULL
        ORDER BY uploaded_at
        LIMIT $1`

	if err := r.db.SelectContext(ctx, &recs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list recordings without duration: %w", err)
	}

	return recs, nil
}

// Stats считает агрегированную статистику одним снимком
func (r *RecordingRepository) Stats(ctx context.Context) (*domain.RecordingStats, error) {
	stats := &domain.RecordingStats{
		RecordingsByMethod: make(map[string]int),
		RecordingsByFormat: make(map[string]int),
	}

	var totals struct {
		TotalRecordings int     `db:"total_recordings"`
		TotalUsers      int     `db:"total_users"`
		TotalAnonymous  int     `db:"total_anonymous"`
		TotalDuration   float64 `db:"total_duration"`
		TotalSize       int64   `db:"total_size"`
		AvgDuration     float64 `db:"avg_duration"`
	}

	query := `
        SELECT
            COUNT(*)                                           AS total_recordings,
            COUNT(DISTINCT user_id)                            AS total_users,
            COUNT(*) FILTER (WHERE user_id IS NULL)            AS total_anonymous,
            COALESCE(SUM(duration), 0)                         AS total_duration,
            COALESCE(SUM(file_size), 0)                        AS total_size,
            COALESCE(AVG(duration), 0)                         AS avg_duration
        FROM recordings`

	if err := r.db.GetContext(ctx, &totals, query); err != nil {
		return nil, fmt.Errorf("failed to aggregate stats: %w", err)
	}

	stats.TotalRecordings = totals.TotalRecordings
	stats.TotalUsers = totals.TotalUsers
	stats.TotalAnonymous = totals.TotalAnonymous
	stats.TotalDuration = totals.TotalDuration
	stats.TotalSizeMB = float64(int(float64(totals.TotalSize)/(1024*1024)*100)) / 100
	stats.AvgDuration = float64(int(totals.AvgDuration*100)) / 100

	type bucket struct {
		Key   string `db:"key"`
		Count int    `db:"count"`
	}

	var byMethod []bucket
	err := r.db.SelectContext(ctx, &byMethod,
		`SELECT recording_method AS key, COUNT(*) AS count FROM recordings GROUP BY recording_method`)
	if err != nil {
		return nil, fmt.Errorf("failed to group by method: %w", err)
	}
	for _, b := range byMethod {
		stats.RecordingsByMethod[b.Key] = b.Count
	}

	var byFormat []bucket
	err = r.db.SelectContext(ctx, &byFormat,
		`SELECT file_format AS key, COUNT(*) AS count FROM recordings GROUP BY file_format`)
	if err != nil {
		return nil, fmt.Errorf("failed to group by format: %w", err)
	}
	for _, b := range byFormat {
		stats.RecordingsByFormat[b.Key] = b.Count
	}

	return stats, nil
}
