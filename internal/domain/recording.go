package domain

import (
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// RecordingMethod определяет способ записи кашля
type RecordingMethod string

const (
	MethodBrowser RecordingMethod = "browser"
	MethodUpload  RecordingMethod = "upload"
)

// Recording представляет одну загруженную запись кашля и её метаданные
type Recording struct {
	RecordingID     uuid.UUID       `json:"recording_id" db:"recording_id"`
	UserID          *string         `json:"user_id,omitempty" db:"user_id"`
	AnonymousName   *string         `json:"anonymous_name,omitempty" db:"anonymous_name"`
	S3Key           string          `json:"-" db:"s3_key"`
	FileName        string          `json:"file_name" db:"file_name"`
	FileSize        int64           `json:"file_size" db:"file_size"`
	FileFormat      string          `json:"file_format" db:"file_format"`
	Duration        *float64        `json:"duration,omitempty" db:"duration"`
	RecordingMethod RecordingMethod `json:"recording_method" db:"recording_method"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UploadedAt      time.Time       `json:"uploaded_at" db:"uploaded_at"`
	UserAgent       *string         `json:"-" db:"user_agent"`
	IPAddress       *string         `json:"-" db:"ip_address"`
	SampleRate      *int            `json:"sample_rate,omitempty" db:"sample_rate"`
	BitRate         *int            `json:"bit_rate,omitempty" db:"bit_rate"`
	Channels        *int            `json:"channels,omitempty" db:"channels"`
}

// UserDisplayName возвращает отображаемое имя: логин, анонимное имя
// или плейсхолдер, построенный из идентификатора записи
func (r *Recording) UserDisplayName() string {
	if r.UserID != nil && *r.UserID != "" {
		return *r.UserID
	}
	if r.AnonymousName != nil && *r.AnonymousName != "" {
		return *r.AnonymousName
	}
	return "Anonymous_" + hex.EncodeToString(r.RecordingID[:4])
}

// IsAnonymous определяет, принадлежит ли запись зарегистрированному пользователю
func (r *Recording) IsAnonymous() bool {
	return r.UserID == nil || *r.UserID == ""
}

// FileSizeMB возвращает размер файла в мегабайтах с точностью до сотых
func (r *Recording) FileSizeMB() float64 {
	return math.Round(float64(r.FileSize)/(1024*1024)*100) / 100
}

// MethodDisplay возвращает человекочитаемое название способа записи
func (r *Recording) MethodDisplay() string {
	switch r.RecordingMethod {
	case MethodBrowser:
		return "Browser Recording"
	case MethodUpload:
		return "File Upload"
	}
	return string(r.RecordingMethod)
}

// RecordingView представляет публичные поля записи в ответах API
type RecordingView struct {
	RecordingID     uuid.UUID       `json:"recording_id"`
	UserDisplayName string          `json:"user_display_name"`
	AnonymousName   *string         `json:"anonymous_name,omitempty"`
	AudioFileURL    string          `json:"audio_file_url,omitempty"`
	FileName        string          `json:"file_name"`
	FileSize        int64           `json:"file_size"`
	FileSizeMB      float64         `json:"file_size_mb"`
	FileFormat      string          `json:"file_format"`
	Duration        *float64        `json:"duration,omitempty"`
	RecordingMethod RecordingMethod `json:"recording_method"`
	CreatedAt       time.Time       `json:"created_at"`
	UploadedAt      time.Time       `json:"uploaded_at"`
	SampleRate      *int            `json:"sample_rate,omitempty"`
	BitRate         *int            `json:"bit_rate,omitempty"`
	Channels        *int            `json:"channels,omitempty"`
}

// View строит публичное представление записи; baseURL указывает на
// корень HTTP API и может быть пустым
func (r *Recording) View(baseURL string) RecordingView {
	v := RecordingView{
		RecordingID:     r.RecordingID,
		UserDisplayName: r.UserDisplayName(),
		AnonymousName:   r.AnonymousName,
		FileName:        r.FileName,
		FileSize:        r.FileSize,
		FileSizeMB:      r.FileSizeMB(),
		FileFormat:      r.FileFormat,
		Duration:        r.Duration,
		RecordingMethod: r.RecordingMethod,
		CreatedAt:       r.CreatedAt,
		UploadedAt:      r.UploadedAt,
		SampleRate:      r.SampleRate,
		BitRate:         r.BitRate,
		Channels:        r.Channels,
	}
	if baseURL != "" {
		v.AudioFileURL = fmt.Sprintf("%s/v1/recordings/%s/audio", baseURL, r.RecordingID)
	}
	return v
}

// RecordingStats представляет агрегированную статистику по коллекции записей
type RecordingStats struct {
	TotalRecordings    int            `json:"total_recordings"`
	TotalUsers         int            `json:"total_users"`
	TotalAnonymous     int            `json:"total_anonymous"`
	TotalDuration      float64        `json:"total_duration"`
	TotalSizeMB        float64        `json:"total_size_mb"`
	AvgDuration        float64        `json:"avg_duration"`
	RecordingsByMethod map[string]int `json:"recordings_by_method"`
	RecordingsByFormat map[string]int `json:"recordings_by_format"`
}
