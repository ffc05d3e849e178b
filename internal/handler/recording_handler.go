package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"coughstore/internal/auth"
	"coughstore/internal/domain"
	"coughstore/internal/repository"
	"coughstore/internal/service"
)

const maxMultipartMemory = 64 << 20 // 64MB, хвост уходит во временные файлы

// UploadResponse представляет ответ на загрузку одного файла
type UploadResponse struct {
	Status    string                   `json:"status"`
	Recording *domain.RecordingView    `json:"recording,omitempty"`
	Warning   *service.DurationWarning `json:"warning,omitempty"`
	Message   string                   `json:"message,omitempty"`
}

// ErrorResponse представляет ошибку API с машиночитаемым видом
type ErrorResponse struct {
	Error string           `json:"error"`
	Kind  domain.ErrorKind `json:"kind,omitempty"`
}

type RecordingHandler struct {
	recordingService *service.RecordingService
	statsService     *service.StatsService
	exportService    *service.ExportService
}

func NewRecordingHandler(
	recordingService *service.RecordingService,
	statsService *service.StatsService,
	exportService *service.ExportService,
) *RecordingHandler {
	return &RecordingHandler{
		recordingService: recordingService,
		statsService:     statsService,
		exportService:    exportService,
	}
}

// Routes регистрирует маршруты API
func (h *RecordingHandler) Routes(r chi.Router) {
	r.Route("/recordings", func(r chi.Router) {
		r.Post("/", h.Upload)
		r.Get("/", h.List)
		r.Get("/stats", h.Stats)
		r.Get("/my", h.MyRecordings)

		r.Route("/{uuid}", func(r chi.Router) {
			r.Get("/", h.Detail)
			r.Delete("/", h.Delete)
			r.Get("/audio", h.Audio)
		})
	})

	r.Route("/export", func(r chi.Router) {
		r.Get("/csv", h.ExportCSV)
		r.Get("/html", h.ExportHTML)
		r.Get("/zip", h.ExportZip)
	})
}

// Upload принимает одну или несколько записей кашля одним multipart-запросом.
// Ошибка одного файла не срывает остальные
func (h *RecordingHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// Токен не обязателен: загрузка без него считается анонимной
	var userID *string
	id, err := auth.VerifyToken(r)
	switch {
	case err == nil:
		userID = &id
	case errors.Is(err, auth.ErrNoToken):
		// анонимная загрузка
	default:
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrKindValidation, "Failed to parse form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, domain.ErrKindValidation, "No files uploaded")
		return
	}

	method := domain.RecordingMethod(r.FormValue("recording_method"))
	if method == "" {
		method = domain.MethodUpload
	}

	var anonymousName *string
	if name := strings.TrimSpace(r.FormValue("anonymous_name")); name != "" {
		anonymousName = &name
	}

	var createdAt *time.Time
	if raw := r.FormValue("created_at"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, domain.ErrKindValidation, "Invalid created_at, expected RFC3339")
			return
		}
		createdAt = &t
	}

	clientIP := getClientIP(r)
	userAgent := r.UserAgent()

	inputs := make([]service.UploadInput, 0, len(files))
	for _, fileHeader := range files {
		file, err := fileHeader.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, domain.ErrKindValidation,
				fmt.Sprintf("Failed to open %s", fileHeader.Filename))
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, domain.ErrKindValidation,
				fmt.Sprintf("Failed to read %s", fileHeader.Filename))
			return
		}

		inputs = append(inputs, service.UploadInput{
			FileName:      fileHeader.Filename,
			ContentType:   fileHeader.Header.Get("Content-Type"),
			Data:          data,
			Method:        method,
			UserID:        userID,
			AnonymousName: anonymousName,
			CreatedAt:     createdAt,
			IPAddress:     &clientIP,
			UserAgent:     &userAgent,
		})
	}

	if len(inputs) == 1 {
		h.uploadSingle(w, r, inputs[0])
		return
	}

	// Пакетный прием: ответ всегда перечисляет исход каждого файла,
	// статус успешный, если принят хотя бы один
	batch := h.recordingService.IngestBatch(r.Context(), inputs)
	status := http.StatusCreated
	if batch.Summary.SuccessfulUploads == 0 {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, batch)
}

func (h *RecordingHandler) uploadSingle(w http.ResponseWriter, r *http.Request, in service.UploadInput) {
	rec, warning, err := h.recordingService.Ingest(r.Context(), in)
	if err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, vErr.Kind, vErr.Message)
			return
		}
		log.Printf("[RecordingHandler] Ingest failed: %v", err)
		writeError(w, http.StatusInternalServerError, "", "Failed to store recording")
		return
	}

	view := rec.View(h.recordingService.BaseURL())
	writeJSON(w, http.StatusCreated, UploadResponse{
		Status:    "success",
		Recording: &view,
		Warning:   warning,
	})
}

// List возвращает записи с фильтрацией и сортировкой
func (h *RecordingHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := repository.RecordingFilter{
		Method:  q.Get("recording_method"),
		Format:  q.Get("file_format"),
		UserID:  q.Get("user"),
		Search:  q.Get("search"),
		OrderBy: strings.TrimPrefix(q.Get("ordering"), "-"),
		Desc:    strings.HasPrefix(q.Get("ordering"), "-"),
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}

	recs, err := h.recordingService.List(r.Context(), filter)
	if err != nil {
		log.Printf("[RecordingHandler] List failed: %v", err)
		writeError(w, http.StatusInternalServerError, "", "Failed to list recordings")
		return
	}

	writeJSON(w, http.StatusOK, h.views(recs))
}

// MyRecordings возвращает записи аутентифицированного пользователя
func (h *RecordingHandler) MyRecordings(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	recs, err := h.recordingService.ListByUser(r.Context(), userID)
	if err != nil {
		log.Printf("[RecordingHandler] ListByUser failed: %v", err)
		writeError(w, http.StatusInternalServerError, "", "Failed to list recordings")
		return
	}

	writeJSON(w, http.StatusOK, h.views(recs))
}

// Detail возвращает одну запись по идентификатору
func (h *RecordingHandler) Detail(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.recordingByUUID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec.View(h.recordingService.BaseURL()))
}

// Delete удаляет запись; разрешено только её владельцу
func (h *RecordingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrKindValidation, "Invalid recording id")
		return
	}

	if err := h.recordingService.Delete(r.Context(), id, userID); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			writeError(w, http.StatusNotFound, "", "Recording not found or not owned by user")
			return
		}
		log.Printf("[RecordingHandler] Delete failed: %v", err)
		writeError(w, http.StatusInternalServerError, "", "Failed to delete recording")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Recording deleted successfully"})
}

// Audio отдает сохраненный аудиопоток; поддерживает Range-запросы
// для перемотки во встроенных проигрывателях
func (h *RecordingHandler) Audio(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.recordingByUUID(w, r)
	if !ok {
		return
	}

	contentType := "audio/" + rec.FileFormat
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", rec.FileName))
	w.Header().Set("Accept-Ranges", "bytes")

	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
		start, end, err := parseRange(rangeHeader, rec.FileSize)
		if err != nil {
			http.Error(w, "Invalid range", http.StatusRequestedRangeNotSatisfiable)
			return
		}

		obj, err := h.recordingService.GetAudioRange(r.Context(), rec, start, end)
		if err != nil {
			log.Printf("[RecordingHandler] Audio range failed: %v", err)
			writeError(w, http.StatusInternalServerError, "", "Failed to read audio")
			return
		}
		defer obj.Close()

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, rec.FileSize))
		w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
		w.WriteHeader(http.StatusPartialContent)
		io.Copy(w, obj)
		return
	}

	obj, err := h.recordingService.GetAudio(r.Context(), rec)
	if err != nil {
		log.Printf("[RecordingHandler] Audio fetch failed: %v", err)
		writeError(w, http.StatusInternalServerError, "", "Failed to read audio")
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(rec.FileSize, 10))
	io.Copy(w, obj)
}

// Stats возвращает агрегированную статистику коллекции
func (h *RecordingHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statsService.GetStats(r.Context())
	if err != nil {
		log.Printf("[RecordingHandler] Stats failed: %v", err)
		writeError(w, http.StatusInternalServerError, "", "Failed to compute statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *RecordingHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", exportFileName("csv"))
	if err := h.exportService.WriteCSV(r.Context(), w); err != nil {
		log.Printf("[RecordingHandler] CSV export failed: %v", err)
	}
}

func (h *RecordingHandler) ExportHTML(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.Header().Set("Content-Disposition", exportFileName("html"))
	if err := h.exportService.WriteHTML(r.Context(), w); err != nil {
		log.Printf("[RecordingHandler] HTML export failed: %v", err)
	}
}

func (h *RecordingHandler) ExportZip(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", exportFileName("zip"))
	if err := h.exportService.WriteZip(r.Context(), w); err != nil {
		log.Printf("[RecordingHandler] ZIP export failed: %v", err)
	}
}

func (h *RecordingHandler) recordingByUUID(w http.ResponseWriter, r *http.Request) (*domain.Recording, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrKindValidation, "Invalid recording id")
		return nil, false
	}

	rec, err := h.recordingService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "", "Recording not found")
			return nil, false
		}
		log.Printf("[RecordingHandler] Get failed: %v", err)
		writeError(w, http.StatusInternalServerError, "", "Failed to get recording")
		return nil, false
	}

	return rec, true
}

func (h *RecordingHandler) views(recs []domain.Recording) []domain.RecordingView {
	views := make([]domain.RecordingView, 0, len(recs))
	for i := range recs {
		views = append(views, recs[i].View(h.recordingService.BaseURL()))
	}
	return views
}

// getClientIP извлекает адрес клиента: первый из X-Forwarded-For,
// иначе RemoteAddr без порта
func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// parseRange разбирает заголовок вида "bytes=start-end"
func parseRange(header string, size int64) (int64, int64, error) {
	if !strings.HasPrefix(header, "bytes=") {
		return 0, 0, fmt.Errorf("unsupported range unit")
	}

	parts := strings.SplitN(strings.TrimPrefix(header, "bytes="), "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed range")
	}

	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || start < 0 || start >= size {
		return 0, 0, fmt.Errorf("invalid range start")
	}

	end := size - 1
	if parts[1] != "" {
		end, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil || end < start {
			return 0, 0, fmt.Errorf("invalid range end")
		}
		if end >= size {
			end = size - 1
		}
	}

	return start, end, nil
}

func exportFileName(ext string) string {
	return fmt.Sprintf("attachment; filename=%q",
		fmt.Sprintf("data_%s.%s", time.Now().Format("20060102_150405"), ext))
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[RecordingHandler] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, kind domain.ErrorKind, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Kind: kind})
}
