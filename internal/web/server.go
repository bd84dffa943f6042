// Package web предоставляет HTTP API: загрузка, сжатие, скачивание.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/artemshloyda/jpegcompress/internal/compressor"
	"github.com/artemshloyda/jpegcompress/internal/config"
	"github.com/artemshloyda/jpegcompress/internal/enginefinder"
	"github.com/artemshloyda/jpegcompress/internal/session"
	"github.com/artemshloyda/jpegcompress/internal/storage"
)

// StatsSource отдаёт статистику истории (реализуется storage.Storage).
type StatsSource interface {
	GetStats() (*storage.Stats, error)
}

// Deps содержит зависимости сервера.
type Deps struct {
	Session *session.Session
	Engine  *enginefinder.EngineInfo
	History StatsSource
}

// Server - HTTP сервер приложения.
type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	router     *mux.Router
	httpServer *http.Server
	deps       Deps
	results    *ResultStore

	// tempResultsDir - директория результатов, созданная сервером (удаляется в Stop).
	tempResultsDir string
}

// APIResponse - общий конверт ответов API.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// CompressResponse - ответ на POST /api/compress.
type CompressResponse struct {
	*session.Result
	OriginalSizeHuman   string `json:"original_size_human"`
	CompressedSizeHuman string `json:"compressed_size_human,omitempty"`
	RatioText           string `json:"ratio_text,omitempty"`
	DownloadURL         string `json:"download_url,omitempty"`
}

// StatusResponse - ответ на GET /api/status.
type StatusResponse struct {
	EnginePath    string `json:"engine_path"`
	EngineVersion string `json:"engine_version,omitempty"`
	Busy          bool   `json:"busy"`
}

// PresetInfo описывает пресет качества.
type PresetInfo struct {
	Name        string  `json:"name"`
	Quality     float64 `json:"quality"`
	Description string  `json:"description"`
}

// NewServer создаёт сервер. Без cfg.ResultsDir результаты хранятся во временной директории.
func NewServer(cfg *config.Config, log *logrus.Logger, deps Deps) (*Server, error) {
	if deps.Session == nil {
		return nil, errors.New("session is required")
	}

	resultsDir := cfg.ResultsDir
	var tempDir string
	if resultsDir == "" {
		dir, err := os.MkdirTemp(cfg.WorkDir, "jpegcompress-results-*")
		if err != nil {
			return nil, fmt.Errorf("не удалось создать директорию результатов: %w", err)
		}
		resultsDir = dir
		tempDir = dir
	}
	results, err := NewResultStore(resultsDir, defaultKeepResults)
	if err != nil {
		if tempDir != "" {
			_ = os.RemoveAll(tempDir)
		}
		return nil, err
	}

	s := &Server{
		cfg:            cfg,
		log:            log,
		router:         mux.NewRouter(),
		deps:           deps,
		results:        results,
		tempResultsDir: tempDir,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/presets", s.handlePresets).Methods("GET")
	api.HandleFunc("/compress", s.handleCompress).Methods("POST")
	api.HandleFunc("/download/{id}", s.handleDownload).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
}

// Handler возвращает корневой http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start запускает сервер и блокируется до его остановки.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: s.writeTimeout(),
		IdleTimeout:  120 * time.Second,
	}

	s.log.Infof("Starting web server on %s", s.cfg.Listen)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// writeTimeout покрывает самое долгое сжатие. Без таймаута движка ответ не ограничен.
func (s *Server) writeTimeout() time.Duration {
	if s.cfg.Timeout <= 0 {
		return 0
	}
	return s.cfg.Timeout + 60*time.Second
}

// Stop останавливает сервер и удаляет временную директорию результатов.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if s.tempResultsDir != "" {
		if rmErr := os.RemoveAll(s.tempResultsDir); rmErr != nil {
			s.log.WithError(rmErr).Warn("failed to remove results directory")
		}
	}
	return err
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := StatusResponse{Busy: s.deps.Session.Busy()}
	if s.deps.Engine != nil {
		status.EnginePath = s.deps.Engine.Path
		status.EngineVersion = s.deps.Engine.Version
	}
	s.sendSuccess(w, "", status)
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	var presets []PresetInfo
	for _, name := range config.ValidPresets() {
		p := config.Presets[config.Preset(name)]
		presets = append(presets, PresetInfo{Name: name, Quality: p.Quality, Description: p.Description})
	}
	s.sendSuccess(w, "", presets)
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes()+1<<20)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes()); err != nil {
		s.sendError(w, http.StatusBadRequest, fmt.Sprintf("invalid upload: %v", err))
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	quality, err := s.parseQuality(r)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if !isJPEGName(header.Filename) {
		s.sendError(w, http.StatusBadRequest, "only .jpg and .jpeg files are accepted")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, fmt.Sprintf("failed to read upload: %v", err))
		return
	}

	res, err := s.deps.Session.Compress(r.Context(), session.Upload{
		Name:    header.Filename,
		Data:    data,
		Quality: quality,
	})
	switch {
	case errors.Is(err, session.ErrBusy):
		s.sendError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, compressor.ErrInvalidQuality), errors.Is(err, session.ErrEmptyUpload):
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.log.WithError(err).Error("compression request failed")
		s.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := CompressResponse{
		Result:            res,
		OriginalSizeHuman: humanize.IBytes(uint64(res.OriginalSize)),
	}

	if !res.Success {
		s.sendJSON(w, http.StatusOK, APIResponse{
			Success: false,
			Error:   fmt.Sprintf("Compression failed: %s", res.Diagnostic),
			Data:    resp,
		})
		return
	}

	if err := s.results.Save(res.ID, res.Output); err != nil {
		s.log.WithError(err).Error("failed to store result")
		s.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp.CompressedSizeHuman = humanize.IBytes(uint64(res.CompressedSize))
	resp.RatioText = fmt.Sprintf("%.2f:1", res.Ratio)
	resp.DownloadURL = "/api/download/" + res.ID
	s.sendSuccess(w, "compressed", resp)
}

// parseQuality берёт качество из preset, quality или конфигурации.
func (s *Server) parseQuality(r *http.Request) (float64, error) {
	if preset := r.FormValue("preset"); preset != "" {
		q, ok := config.PresetQuality(preset)
		if !ok {
			return 0, fmt.Errorf("unknown preset: %s", preset)
		}
		return q, nil
	}
	if raw := r.FormValue("quality"); raw != "" {
		q, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid quality %q", raw)
		}
		return q, nil
	}
	return s.cfg.Quality, nil
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	path, ok := s.results.Path(id)
	if !ok {
		s.sendError(w, http.StatusNotFound, "result not found")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Disposition", `attachment; filename="compressed.jpg"`)
	http.ServeFile(w, r, path)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		s.sendError(w, http.StatusNotFound, "history is disabled")
		return
	}
	stats, err := s.deps.History.GetStats()
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.sendSuccess(w, "", map[string]interface{}{
		"total":         stats.Total,
		"ok":            stats.OK,
		"failed":        stats.Failed,
		"in_progress":   stats.InProgress,
		"input_bytes":   stats.InputBytes,
		"output_bytes":  stats.OutputBytes,
		"saved_percent": stats.SavedPercent(),
	})
}

func isJPEGName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return true
	}
	return false
}

func (s *Server) sendSuccess(w http.ResponseWriter, message string, data interface{}) {
	s.sendJSON(w, http.StatusOK, APIResponse{Success: true, Message: message, Data: data})
}

func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, APIResponse{Success: false, Error: message})
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.WithError(err).Error("failed to encode response")
	}
}
