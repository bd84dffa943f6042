package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage ведёт историю сжатий в SQLite.
type Storage struct {
	db *sql.DB
}

// New создаёт новое подключение к SQLite и выполняет миграции.
func New(dbPath string) (*Storage, error) {
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию для БД: %w", err)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть БД: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("не удалось подключиться к БД: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite не поддерживает concurrent writes
	db.SetMaxIdleConns(1)

	s := &Storage{db: db}

	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("не удалось выполнить миграции: %w", err)
	}

	return s, nil
}

// migrate выполняет все SQL-миграции.
func (s *Storage) migrate() error {
	for i, m := range GetMigrations() {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("миграция %d: %w", i+1, err)
		}
	}
	return nil
}

// Close закрывает подключение к БД.
func (s *Storage) Close() error {
	return s.db.Close()
}

// StartJob создаёт запись со статусом in_progress.
func (s *Storage) StartJob(job NewJob) (int64, error) {
	var sha *string
	if job.SrcSHA256 != "" {
		sha = &job.SrcSHA256
	}

	result, err := s.db.Exec(`
		INSERT INTO compressions (request_id, src_name, src_size, src_sha256, quality, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.RequestID, job.SrcName, job.SrcSize, sha, job.Quality, StatusInProgress, time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("не удалось создать запись: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("не удалось получить ID записи: %w", err)
	}
	return id, nil
}

// FinalizeJobOK помечает запись как успешную.
func (s *Storage) FinalizeJobOK(jobID int64, dstSize int64, diagnostic string) error {
	_, err := s.db.Exec(
		"UPDATE compressions SET status = ?, kind = 'ok', dst_size = ?, diagnostic = ?, finished_at = ? WHERE id = ?",
		StatusOK, dstSize, diagnostic, time.Now().Unix(), jobID,
	)
	if err != nil {
		return fmt.Errorf("не удалось обновить статус записи: %w", err)
	}
	return nil
}

// FinalizeJobFailed помечает запись как неудачную.
func (s *Storage) FinalizeJobFailed(jobID int64, kind, diagnostic string) error {
	_, err := s.db.Exec(
		"UPDATE compressions SET status = ?, kind = ?, diagnostic = ?, finished_at = ? WHERE id = ?",
		StatusFailed, kind, diagnostic, time.Now().Unix(), jobID,
	)
	if err != nil {
		return fmt.Errorf("не удалось обновить статус записи: %w", err)
	}
	return nil
}

// GetJob возвращает запись по идентификатору запроса.
func (s *Storage) GetJob(requestID string) (*Job, error) {
	row := s.db.QueryRow(`
		SELECT id, request_id, src_name, src_size, src_sha256, quality, status, kind,
		       diagnostic, dst_size, started_at, finished_at
		FROM compressions WHERE request_id = ?`, requestID)
	return scanJob(row)
}

// Recent возвращает последние записи, новые первыми.
func (s *Storage) Recent(limit int) ([]*Job, error) {
	rows, err := s.db.Query(`
		SELECT id, request_id, src_name, src_size, src_sha256, quality, status, kind,
		       diagnostic, dst_size, started_at, finished_at
		FROM compressions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить историю: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*Job, error) {
	var (
		job        Job
		sha        sql.NullString
		kind       sql.NullString
		diagnostic sql.NullString
		dstSize    sql.NullInt64
		startedAt  int64
		finishedAt sql.NullInt64
	)
	err := row.Scan(&job.ID, &job.RequestID, &job.SrcName, &job.SrcSize, &sha, &job.Quality,
		&job.Status, &kind, &diagnostic, &dstSize, &startedAt, &finishedAt)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать запись: %w", err)
	}

	job.SrcSHA256 = sha.String
	job.Kind = kind.String
	job.Diagnostic = diagnostic.String
	job.DstSize = dstSize.Int64
	job.StartedAt = time.Unix(startedAt, 0)
	if finishedAt.Valid {
		job.FinishedAt = time.Unix(finishedAt.Int64, 0)
	}
	return &job, nil
}

// GetStats возвращает статистику по истории.
func (s *Storage) GetStats() (*Stats, error) {
	var st Stats
	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = ? THEN src_size ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = ? THEN dst_size ELSE 0 END), 0)
		FROM compressions`,
		StatusOK, StatusFailed, StatusInProgress, StatusOK, StatusOK,
	).Scan(&st.Total, &st.OK, &st.Failed, &st.InProgress, &st.InputBytes, &st.OutputBytes)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить статистику: %w", err)
	}
	return &st, nil
}

// CleanupInProgress сбрасывает записи in_progress в failed.
// Вызывается при старте для очистки после аварийного завершения.
func (s *Storage) CleanupInProgress() (int64, error) {
	result, err := s.db.Exec(
		"UPDATE compressions SET status = ?, kind = 'interrupted', diagnostic = ? WHERE status = ?",
		StatusFailed, "прервано при предыдущем запуске", StatusInProgress,
	)
	if err != nil {
		return 0, fmt.Errorf("не удалось очистить in_progress: %w", err)
	}
	return result.RowsAffected()
}
