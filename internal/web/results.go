package web

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// defaultKeepResults - сколько последних результатов хранить для скачивания.
const defaultKeepResults = 20

// ResultStore хранит сжатые файлы до скачивания.
// Старые результаты удаляются, когда их становится больше keep.
type ResultStore struct {
	dir  string
	keep int

	mu    sync.Mutex
	order []string
}

// NewResultStore создаёт хранилище в dir.
func NewResultStore(dir string, keep int) (*ResultStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию результатов: %w", err)
	}
	if keep <= 0 {
		keep = defaultKeepResults
	}

	s := &ResultStore{dir: dir, keep: keep}
	if err := s.index(); err != nil {
		return nil, err
	}
	return s, nil
}

// index подхватывает результаты прошлых запусков, старые первыми,
// и удаляет лишние сверх keep.
func (s *ResultStore) index() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("не удалось прочитать директорию результатов: %w", err)
	}

	type found struct {
		id      string
		modTime time.Time
	}
	var existing []found
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".jpg") {
			continue
		}
		id := strings.TrimSuffix(name, ".jpg")
		if _, err := uuid.Parse(id); err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		existing = append(existing, found{id: id, modTime: info.ModTime()})
	}

	sort.Slice(existing, func(i, j int) bool {
		return existing[i].modTime.Before(existing[j].modTime)
	})
	for _, f := range existing {
		s.order = append(s.order, f.id)
	}
	s.evict()
	return nil
}

// evict удаляет самые старые результаты сверх keep.
func (s *ResultStore) evict() {
	for len(s.order) > s.keep {
		old, _ := s.path(s.order[0])
		_ = os.Remove(old)
		s.order = s.order[1:]
	}
}

// Save сохраняет результат под его ID.
func (s *ResultStore) Save(id string, data []byte) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("не удалось сохранить результат: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, id)
	s.evict()
	return nil
}

// Path возвращает путь к результату, если он существует.
func (s *ResultStore) Path(id string) (string, bool) {
	path, err := s.path(id)
	if err != nil {
		return "", false
	}
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// path строит путь, принимая только UUID (защита от ../).
func (s *ResultStore) path(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("некорректный идентификатор: %q", id)
	}
	return filepath.Join(s.dir, parsed.String()+".jpg"), nil
}
