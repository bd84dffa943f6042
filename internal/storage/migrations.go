package storage

// migrations содержит SQL-миграции в порядке выполнения.
var migrations = []string{
	// Миграция 1: История сжатий
	`CREATE TABLE IF NOT EXISTS compressions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL,
		src_name TEXT NOT NULL,
		src_size INTEGER NOT NULL,
		src_sha256 TEXT,
		quality REAL NOT NULL,
		status TEXT NOT NULL,
		kind TEXT,
		diagnostic TEXT,
		dst_size INTEGER,
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	);`,

	// Миграция 2: Один запрос - одна запись
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_compressions_request
	ON compressions (request_id);`,

	// Миграция 3: Индекс для быстрого поиска по статусу
	`CREATE INDEX IF NOT EXISTS ix_compressions_status ON compressions (status);`,

	// Миграция 4: Таблица метаданных для версионирования схемы
	`CREATE TABLE IF NOT EXISTS schema_info (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`,

	`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', '1');`,
}

// GetMigrations возвращает список SQL-миграций.
func GetMigrations() []string {
	return migrations
}
