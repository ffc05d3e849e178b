package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"coughstore/internal/audio"
	"coughstore/internal/config"
	"coughstore/internal/domain"
	"coughstore/internal/repository"
	"coughstore/internal/service/s3"
)

// Определение пользовательских ошибок
var (
	ErrPersistence = errors.New("persistence failed")
	ErrNotFound    = errors.New("recording not found or not owned by user")
)

// RecordingStore описывает хранилище записей, используемое конвейером
type RecordingStore interface {
	Save(ctx context.Context, rec *domain.Recording) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Recording, error)
	List(ctx context.Context, filter repository.RecordingFilter) ([]domain.Recording, error)
	ListAll(ctx context.Context) ([]domain.Recording, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Recording, error)
	DeleteOwned(ctx context.Context, id uuid.UUID, userID string) (*domain.Recording, error)
	UpdateDuration(ctx context.Context, id uuid.UUID, seconds float64) (bool, error)
	ListMissingDuration(ctx context.Context, limit int) ([]domain.Recording, error)
	Stats(ctx context.Context) (*domain.RecordingStats, error)
}

// MetadataExtractor извлекает технические метаданные из аудиоданных
type MetadataExtractor interface {
	Extract(data []byte, fileName string) audio.Metadata
	MeasureDuration(data []byte, fileName string) *float64
}

// UploadInput описывает один принимаемый файл вместе с контекстом запроса
type UploadInput struct {
	FileName      string
	ContentType   string
	Data          []byte
	Method        domain.RecordingMethod
	UserID        *string
	AnonymousName *string
	CreatedAt     *time.Time
	IPAddress     *string
	UserAgent     *string
}

// DurationWarning сообщает, что измеренная длительность превышает
// исследовательский стандарт. Сохраненные байты при этом не обрезаются
type DurationWarning struct {
	OriginalDuration    float64 `json:"original_duration"`
	RecommendedDuration float64 `json:"recommended_duration"`
	Message             string  `json:"message"`
}

// UploadResult представляет исход приема одного файла в пакете
type UploadResult struct {
	FileName  string                  `json:"file_name"`
	Recording *domain.RecordingView   `json:"recording,omitempty"`
	Warning   *DurationWarning        `json:"warning,omitempty"`
	Error     *domain.ValidationError `json:"error,omitempty"`
}

// BatchSummary агрегирует итог пакетного приема
type BatchSummary struct {
	TotalFiles        int `json:"totalFiles"`
	SuccessfulUploads int `json:"successfulUploads"`
	Warnings          int `json:"warnings"`
	Errors            int `json:"errors"`
}

// BatchResult представляет ответ на пакетную загрузку
type BatchResult struct {
	Summary  BatchSummary     `json:"summary"`
	Results  []UploadResult   `json:"results"`
	Warnings []UploadResult   `json:"warnings,omitempty"`
	Errors   []UploadResult   `json:"errors,omitempty"`
}

// RecordingService реализует конвейер приема записей кашля:
// валидация -> метаданные -> политика длительности -> сохранение ->
// дозаполнение длительности
type RecordingService struct {
	repo      RecordingStore
	storage   s3.Storage
	extractor MetadataExtractor
	validator *AudioValidator
	cfg       config.UploadConfig
	baseURL   string
}

func NewRecordingService(
	repo RecordingStore,
	storage s3.Storage,
	extractor MetadataExtractor,
	cfg config.UploadConfig,
	baseURL string,
) *RecordingService {
	return &RecordingService{
		repo:      repo,
		storage:   storage,
		extractor: extractor,
		validator: NewAudioValidator(cfg),
		cfg:       cfg,
		baseURL:   baseURL,
	}
}

// BaseURL возвращает внешний адрес сервиса для сборки ссылок на аудио
func (s *RecordingService) BaseURL() string {
	return s.baseURL
}

// Ingest принимает один файл. Для вызывающего прием может
// сорваться только на валидации или на сохранении; все последующие
// шаги деградируют без отката уже сохраненной записи
func (s *RecordingService) Ingest(ctx context.Context, in UploadInput) (*domain.Recording, *DurationWarning, error) {
	// Шаг 1: валидация, до любых побочных эффектов
	if err := s.validator.Validate(in.FileName, int64(len(in.Data)), in.ContentType); err != nil {
		return nil, nil, err
	}
	if err := ValidateRecordingMethod(in.Method); err != nil {
		return nil, nil, err
	}
	if in.AnonymousName != nil {
		if err := ValidateAnonymousName(*in.AnonymousName); err != nil {
			return nil, nil, err
		}
	}

	// Шаг 2: формат из расширения, размер, извлечение метаданных
	meta := s.extractor.Extract(in.Data, in.FileName)

	// Шаг 3: политика длительности. Измеренное значение всегда
	// предпочтительнее плейсхолдера
	duration := meta.Duration
	if duration == nil && in.Method == domain.MethodBrowser {
		d := s.cfg.DefaultBrowserDuration
		duration = &d
	}
	wasTruncated := meta.Duration != nil && *meta.Duration > s.cfg.MaxDuration

	createdAt := time.Now().UTC()
	if in.CreatedAt != nil {
		createdAt = *in.CreatedAt
	}

	rec := &domain.Recording{
		RecordingID:     uuid.New(),
		UserID:          in.UserID,
		AnonymousName:   in.AnonymousName,
		FileName:        sanitizeFileName(in.FileName),
		FileSize:        int64(len(in.Data)),
		FileFormat:      FileFormat(in.FileName),
		Duration:        duration,
		RecordingMethod: in.Method,
		CreatedAt:       createdAt,
		UserAgent:       in.UserAgent,
		IPAddress:       in.IPAddress,
		SampleRate:      meta.SampleRate,
		BitRate:         meta.BitRate,
		Channels:        meta.Channels,
	}
	rec.S3Key = fmt.Sprintf("cough_recordings/%s", rec.RecordingID)

	// Шаг 4: сохранение. Сначала байты в S3, затем запись в БД;
	// при ошибке вставки убираем осиротевший объект
	if err := s.storage.UploadBytes(rec.S3Key, in.Data); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := s.repo.Save(ctx, rec); err != nil {
		if deleteErr := s.storage.DeleteObject(rec.S3Key); deleteErr != nil {
			log.Printf("[RecordingService] Failed to delete blob after db error: %v", deleteErr)
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	// Шаг 5: дозаполнение длительности, строго best-effort
	s.backfillDuration(ctx, rec, in.Data)

	var warning *DurationWarning
	if wasTruncated {
		warning = &DurationWarning{
			OriginalDuration:    *meta.Duration,
			RecommendedDuration: s.cfg.MaxDuration,
			Message: fmt.Sprintf(
				"Recording duration %.2fs exceeds the recommended %.1fs; audio is stored without truncation",
				*meta.Duration, s.cfg.MaxDuration),
		}
	}

	return rec, warning, nil
}

// backfillDuration пытается измерить длительность полным декодированием
// после сохранения. Реальное измерение всегда выигрывает у плейсхолдера,
// уже известное значение никогда не ухудшается. Ошибки здесь не
// поднимаются до вызывающего
func (s *RecordingService) backfillDuration(ctx context.Context, rec *domain.Recording, data []byte) {
	if rec.Duration != nil {
		return
	}

	if d := s.extractor.MeasureDuration(data, rec.FileName); d != nil {
		updated, err := s.repo.UpdateDuration(ctx, rec.RecordingID, *d)
		if err != nil {
			log.Printf("[RecordingService] Duration backfill failed for %s: %v", rec.RecordingID, err)
			return
		}
		if updated {
			rec.Duration = d
		}
		return
	}

	if rec.RecordingMethod == domain.MethodBrowser {
		d := s.cfg.DefaultBrowserDuration
		updated, err := s.repo.UpdateDuration(ctx, rec.RecordingID, d)
		if err != nil {
			log.Printf("[RecordingService] Default duration backfill failed for %s: %v", rec.RecordingID, err)
			return
		}
		if updated {
			rec.Duration = &d
		}
	}
}

// IngestBatch принимает несколько файлов независимо: ошибка одного
// файла не прерывает остальные. Пакет считается успешным, если принят
// хотя бы один файл
func (s *RecordingService) IngestBatch(ctx context.Context, inputs []UploadInput) *BatchResult {
	result := &BatchResult{
		Summary: BatchSummary{TotalFiles: len(inputs)},
		Results: make([]UploadResult, 0, len(inputs)),
	}

	for _, in := range inputs {
		entry := UploadResult{FileName: in.FileName}

		rec, warning, err := s.Ingest(ctx, in)
		if err != nil {
			var vErr *domain.ValidationError
			if !errors.As(err, &vErr) {
				vErr = &domain.ValidationError{
					Kind:    domain.ErrKindValidation,
					Message: err.Error(),
				}
			}
			entry.Error = vErr
			result.Summary.Errors++
			result.Results = append(result.Results, entry)
			result.Errors = append(result.Errors, entry)
			continue
		}

		view := rec.View(s.baseURL)
		entry.Recording = &view
		entry.Warning = warning
		result.Summary.SuccessfulUploads++
		if warning != nil {
			result.Summary.Warnings++
			result.Warnings = append(result.Warnings, entry)
		}
		result.Results = append(result.Results, entry)
	}

	return result
}

// Get возвращает запись по идентификатору
func (s *RecordingService) Get(ctx context.Context, id uuid.UUID) (*domain.Recording, error) {
	return s.repo.GetByID(ctx, id)
}

// List возвращает записи по фильтру
func (s *RecordingService) List(ctx context.Context, filter repository.RecordingFilter) ([]domain.Recording, error) {
	return s.repo.List(ctx, filter)
}

// ListByUser возвращает записи пользователя
func (s *RecordingService) ListByUser(ctx context.Context, userID string) ([]domain.Recording, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Delete удаляет запись вместе с аудио. Разрешено только владельцу;
// анонимные записи через обычный интерфейс не удаляются
func (s *RecordingService) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	rec, err := s.repo.DeleteOwned(ctx, id, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	// Запись уже удалена; осиротевший объект в S3 допустим
	if err := s.storage.DeleteObject(rec.S3Key); err != nil {
		log.Printf("[RecordingService] Failed to delete blob %s: %v", rec.S3Key, err)
	}

	return nil
}

// GetAudio возвращает аудиопоток сохраненной записи
func (s *RecordingService) GetAudio(ctx context.Context, rec *domain.Recording) (s3.S3Object, error) {
	return s.storage.GetObject(ctx, rec.S3Key)
}

// GetAudioRange возвращает часть аудиопотока для проигрывателей
// с поддержкой Range-запросов
func (s *RecordingService) GetAudioRange(ctx context.Context, rec *domain.Recording, start, end int64) (s3.S3Object, error) {
	return s.storage.GetObjectRange(ctx, rec.S3Key, start, end)
}

// RepairMissingDurations дозаполняет длительности записей, у которых
// извлечение не удалось при приеме. Запускается фоновой задачей;
// защита в UpdateDuration не дает перезаписать известное значение
func (s *RecordingService) RepairMissingDurations(ctx context.Context) error {
	recs, err := s.repo.ListMissingDuration(ctx, 100)
	if err != nil {
		return fmt.Errorf("failed to list recordings without duration: %w", err)
	}

	repaired := 0
	for _, rec := range recs {
		obj, err := s.storage.GetObject(ctx, rec.S3Key)
		if err != nil {
			log.Printf("[RecordingService] Repair: failed to fetch %s: %v", rec.S3Key, err)
			continue
		}
		data, err := io.ReadAll(obj)
		obj.Close()
		if err != nil {
			log.Printf("[RecordingService] Repair: failed to read %s: %v", rec.S3Key, err)
			continue
		}

		meta := s.extractor.Extract(data, rec.FileName)
		if meta.Duration == nil {
			continue
		}

		updated, err := s.repo.UpdateDuration(ctx, rec.RecordingID, *meta.Duration)
		if err != nil {
			log.Printf("[RecordingService] Repair: failed to update %s: %v", rec.RecordingID, err)
			continue
		}
		if updated {
			repaired++
		}
	}

	if repaired > 0 {
		log.Printf("[RecordingService] Repaired durations for %d recordings", repaired)
	}
	return nil
}
