// Package storage содержит модели и логику работы с SQLite базой данных.
package storage

import "time"

// JobStatus определяет статус попытки сжатия.
type JobStatus string

const (
	// StatusInProgress - движок выполняется.
	StatusInProgress JobStatus = "in_progress"
	// StatusOK - сжатие успешно.
	StatusOK JobStatus = "ok"
	// StatusFailed - сжатие завершилось с ошибкой.
	StatusFailed JobStatus = "failed"
)

// Job представляет одну попытку сжатия.
type Job struct {
	// ID - идентификатор записи.
	ID int64

	// RequestID - идентификатор запроса (uuid).
	RequestID string

	// SrcName - имя загруженного файла.
	SrcName string

	// SrcSize - размер исходного файла в байтах.
	SrcSize int64

	// SrcSHA256 - sha256 хэш исходного файла (может быть пустым).
	SrcSHA256 string

	// Quality - коэффициент качества.
	Quality float64

	// Status - статус попытки.
	Status JobStatus

	// Kind - класс результата движка.
	Kind string

	// Diagnostic - вывод движка.
	Diagnostic string

	// DstSize - размер результата в байтах (0 при ошибке).
	DstSize int64

	// StartedAt - время начала.
	StartedAt time.Time

	// FinishedAt - время завершения (нулевое, пока выполняется).
	FinishedAt time.Time
}

// NewJob содержит данные для начала записи.
type NewJob struct {
	RequestID string
	SrcName   string
	SrcSize   int64
	SrcSHA256 string
	Quality   float64
}

// Stats содержит агрегированную статистику истории.
type Stats struct {
	Total      int64
	OK         int64
	Failed     int64
	InProgress int64

	// InputBytes - суммарный размер исходников успешных сжатий.
	InputBytes int64

	// OutputBytes - суммарный размер результатов.
	OutputBytes int64
}

// SavedBytes возвращает количество сэкономленных байт.
func (s *Stats) SavedBytes() int64 {
	return s.InputBytes - s.OutputBytes
}

// SavedPercent возвращает процент экономии.
func (s *Stats) SavedPercent() float64 {
	if s.InputBytes == 0 {
		return 0
	}
	return float64(s.SavedBytes()) / float64(s.InputBytes) * 100
}
