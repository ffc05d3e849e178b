package service

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"fmt"
	"html/template"
	"io"
	"log"
	"strconv"
	"time"

	"coughstore/internal/domain"
	"coughstore/internal/service/s3"
)

// csvHeaders — порядок колонок табличной выгрузки
var csvHeaders = []string{
	"Recording ID", "User Type", "User Name", "File Name", "File Size (MB)",
	"File Format", "Duration (seconds)", "Recording Method", "Created At",
	"Uploaded At", "Sample Rate", "Bit Rate", "Channels", "IP Address",
	"User Agent", "Audio File URL",
}

const zipReadme = `# CoughStore Data Export

This ZIP contains:
1. cough_recordings_data.csv - All metadata
2. audio_files/ - All audio recordings

To analyze:
1. Open CSV in Excel/Google Sheets
2. Audio files are in audio_files/ folder
3. Match 'File Name' column with files in audio_files/

Generated from CoughStore Research Platform
`

var htmlExportTemplate = template.Must(template.New("export").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Cough Recordings Data</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        table { border-collapse: collapse; width: 100%; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        th { background-color: #f2f2f2; }
        audio { width: 200px; }
        .metadata { font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <h1>Cough Recordings Data</h1>
    <p>Generated on: {{.GeneratedAt}}</p>
    <table>
        <tr>
            <th>Recording ID</th>
            <th>User</th>
            <th>File Name</th>
            <th>Audio Player</th>
            <th>Duration</th>
            <th>Size (MB)</th>
            <th>Format</th>
            <th>Method</th>
            <th>Created At</th>
            <th>Metadata</th>
        </tr>
{{- range .Rows}}
        <tr>
            <td>{{.RecordingID}}</td>
            <td>{{.UserName}} ({{.UserType}})</td>
            <td>{{.FileName}}</td>
            <td>
                <audio controls>
                    <source src="{{.AudioURL}}" type="audio/{{.Format}}">
                    Your browser does not support audio playback.
                </audio>
            </td>
            <td>{{.Duration}}</td>
            <td>{{.SizeMB}}</td>
            <td>{{.Format}}</td>
            <td>{{.Method}}</td>
            <td>{{.CreatedAt}}</td>
            <td class="metadata">Sample Rate: {{.SampleRate}}<br>Bit Rate: {{.BitRate}}<br>Channels: {{.Channels}}</td>
        </tr>
{{- end}}
    </table>
</body>
</html>
`))

type htmlRow struct {
	RecordingID string
	UserType    string
	UserName    string
	FileName    string
	AudioURL    string
	Duration    string
	SizeMB      string
	Format      string
	Method      string
	CreatedAt   string
	SampleRate  string
	BitRate     string
	Channels    string
}

// ExportService выгружает финализированные записи для анализа.
// Выгрузка только читает: повторное извлечение метаданных не запускается
type ExportService struct {
	repo    RecordingStore
	blobs   AudioSource
	baseURL string
}

// AudioSource отдает сохраненные аудиоданные для ZIP-выгрузки
type AudioSource interface {
	GetAudio(ctx context.Context, rec *domain.Recording) (s3.S3Object, error)
}

func NewExportService(repo RecordingStore, blobs AudioSource, baseURL string) *ExportService {
	return &ExportService{repo: repo, blobs: blobs, baseURL: baseURL}
}

// WriteCSV пишет плоскую таблицу: одна строка на запись, все публичные
// поля плюс происхождение
func (s *ExportService) WriteCSV(ctx context.Context, w io.Writer) error {
	recs, err := s.repo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load recordings for export: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeaders); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for i := range recs {
		if err := writer.Write(s.csvRow(&recs[i])); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func (s *ExportService) csvRow(rec *domain.Recording) []string {
	userType := "Registered"
	if rec.IsAnonymous() {
		userType = "Anonymous"
	}

	return []string{
		rec.RecordingID.String(),
		userType,
		rec.UserDisplayName(),
		rec.FileName,
		strconv.FormatFloat(rec.FileSizeMB(), 'f', 2, 64),
		rec.FileFormat,
		formatOptFloat(rec.Duration),
		rec.MethodDisplay(),
		rec.CreatedAt.Format("2006-01-02 15:04:05"),
		rec.UploadedAt.Format("2006-01-02 15:04:05"),
		formatOptInt(rec.SampleRate),
		formatOptInt(rec.BitRate),
		formatOptInt(rec.Channels),
		derefOr(rec.IPAddress, ""),
		derefOr(rec.UserAgent, ""),
		s.audioURL(rec),
	}
}

// WriteHTML пишет самодостаточную таблицу со встроенными проигрывателями
func (s *ExportService) WriteHTML(ctx context.Context, w io.Writer) error {
	recs, err := s.repo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load recordings for export: %w", err)
	}

	rows := make([]htmlRow, 0, len(recs))
	for i := range recs {
		rec := &recs[i]
		userType := "Registered"
		if rec.IsAnonymous() {
			userType = "Anonymous"
		}
		rows = append(rows, htmlRow{
			RecordingID: rec.RecordingID.String(),
			UserType:    userType,
			UserName:    rec.UserDisplayName(),
			FileName:    rec.FileName,
			AudioURL:    s.audioURL(rec),
			Duration:    formatOptFloat(rec.Duration) + "s",
			SizeMB:      strconv.FormatFloat(rec.FileSizeMB(), 'f', 2, 64),
			Format:      rec.FileFormat,
			Method:      rec.MethodDisplay(),
			CreatedAt:   rec.CreatedAt.Format("2006-01-02 15:04:05"),
			SampleRate:  formatOptIntOr(rec.SampleRate, "N/A"),
			BitRate:     formatOptIntOr(rec.BitRate, "N/A"),
			Channels:    formatOptIntOr(rec.Channels, "N/A"),
		})
	}

	return htmlExportTemplate.Execute(w, map[string]interface{}{
		"GeneratedAt": time.Now().UTC().Format("2006-01-02 15:04:05"),
		"Rows":        rows,
	})
}

// WriteZip собирает архив: таблица метаданных, аудиофайлы и README.
// Недоступный блоб пропускается, а не срывает всю выгрузку
func (s *ExportService) WriteZip(ctx context.Context, w io.Writer) error {
	recs, err := s.repo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load recordings for export: %w", err)
	}

	archive := zip.NewWriter(w)

	csvFile, err := archive.Create("cough_recordings_data.csv")
	if err != nil {
		return fmt.Errorf("failed to create csv entry: %w", err)
	}
	writer := csv.NewWriter(csvFile)
	if err := writer.Write(csvHeaders[:len(csvHeaders)-1]); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for i := range recs {
		row := s.csvRow(&recs[i])
		if err := writer.Write(row[:len(row)-1]); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	for i := range recs {
		rec := &recs[i]
		blob, err := s.blobs.GetAudio(ctx, rec)
		if err != nil {
			log.Printf("[ExportService] Skipping audio for %s: %v", rec.RecordingID, err)
			continue
		}

		// Имя записи уникально в архиве за счет идентификатора
		entry, err := archive.Create(fmt.Sprintf("audio_files/%s_%s", rec.RecordingID, rec.FileName))
		if err != nil {
			blob.Close()
			return fmt.Errorf("failed to create audio entry: %w", err)
		}
		if _, err := io.Copy(entry, blob); err != nil {
			blob.Close()
			return fmt.Errorf("failed to write audio entry: %w", err)
		}
		blob.Close()
	}

	readme, err := archive.Create("README.txt")
	if err != nil {
		return fmt.Errorf("failed to create readme entry: %w", err)
	}
	if _, err := io.WriteString(readme, zipReadme); err != nil {
		return fmt.Errorf("failed to write readme: %w", err)
	}

	return archive.Close()
}

func (s *ExportService) audioURL(rec *domain.Recording) string {
	if s.baseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/v1/recordings/%s/audio", s.baseURL, rec.RecordingID)
}

func formatOptFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func formatOptInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatOptIntOr(v *int, fallback string) string {
	if v == nil {
		return fallback
	}
	return strconv.Itoa(*v)
}

func derefOr(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}
