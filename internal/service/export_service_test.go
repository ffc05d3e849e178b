package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"coughstore/internal/domain"
)

func exportFixtures(t *testing.T) (*fakeStore, *fakeStorage, *ExportService) {
	t.Helper()
	store := newFakeStore()
	storage := newFakeStorage()

	id := uuid.MustParse("aabbccdd-0000-0000-0000-000000000001")
	key := "cough_recordings/" + id.String()
	store.recs[id] = &domain.Recording{
		RecordingID:     id,
		S3Key:           key,
		FileName:        "cough.wav",
		FileSize:        2 * 1024 * 1024,
		FileFormat:      "wav",
		Duration:        fptr(2.5),
		RecordingMethod: domain.MethodBrowser,
		CreatedAt:       time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		UploadedAt:      time.Date(2025, 3, 1, 12, 0, 1, 0, time.UTC),
		SampleRate:      intPtr(44100),
		Channels:        intPtr(1),
	}
	storage.objects[key] = []byte("fake wav bytes")

	blobs := newTestService(store, storage, &fakeExtractor{})
	return store, storage, NewExportService(store, blobs, "http://localhost:2525")
}

func TestWriteCSV(t *testing.T) {
	_, _, svc := exportFixtures(t)

	var buf bytes.Buffer
	if err := svc.WriteCSV(context.Background(), &buf); err != nil {
		t.Fatalf("Выгрузка CSV не должна завершаться ошибкой: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("Ответ должен быть корректным CSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Ожидался заголовок и одна строка, получено %d строк", len(rows))
	}
	if len(rows[0]) != 16 {
		t.Errorf("Ожидалось 16 колонок, получено %d", len(rows[0]))
	}

	row := rows[1]
	if row[1] != "Anonymous" {
		t.Errorf("Тип пользователя = %q, ожидалось Anonymous", row[1])
	}
	// Плейсхолдер строится из первых четырех байт идентификатора
	if row[2] != "Anonymous_aabbccdd" {
		t.Errorf("Отображаемое имя = %q, ожидалось Anonymous_aabbccdd", row[2])
	}
	if row[4] != "2.00" {
		t.Errorf("Размер = %q, ожидалось 2.00", row[4])
	}
	if row[6] != "2.50" {
		t.Errorf("Длительность = %q, ожидалось 2.50", row[6])
	}
	if row[7] != "Browser Recording" {
		t.Errorf("Метод = %q, ожидалось Browser Recording", row[7])
	}
	if !strings.HasSuffix(row[15], "/audio") {
		t.Errorf("Ссылка на аудио = %q, ожидался суффикс /audio", row[15])
	}
}

func TestWriteHTML(t *testing.T) {
	_, _, svc := exportFixtures(t)

	var buf bytes.Buffer
	if err := svc.WriteHTML(context.Background(), &buf); err != nil {
		t.Fatalf("Выгрузка HTML не должна завершаться ошибкой: %v", err)
	}

	html := buf.String()
	if !strings.Contains(html, "<audio controls>") {
		t.Error("Страница должна содержать встроенный проигрыватель")
	}
	if !strings.Contains(html, "cough.wav") {
		t.Error("Страница должна содержать имя файла")
	}
	if !strings.Contains(html, "Anonymous_aabbccdd") {
		t.Error("Страница должна содержать отображаемое имя")
	}
}

func TestWriteZip(t *testing.T) {
	store, _, svc := exportFixtures(t)

	// Вторая запись с недоступным блобом: пропускается, не срывая выгрузку
	id := uuid.New()
	store.recs[id] = &domain.Recording{
		RecordingID:     id,
		S3Key:           "cough_recordings/missing",
		FileName:        "lost.mp3",
		FileFormat:      "mp3",
		RecordingMethod: domain.MethodUpload,
	}

	var buf bytes.Buffer
	if err := svc.WriteZip(context.Background(), &buf); err != nil {
		t.Fatalf("Выгрузка ZIP не должна завершаться ошибкой: %v", err)
	}

	archive, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("Ответ должен быть корректным ZIP: %v", err)
	}

	names := make(map[string]bool)
	var audioEntries int
	for _, f := range archive.File {
		names[f.Name] = true
		if strings.HasPrefix(f.Name, "audio_files/") {
			audioEntries++
		}
	}

	if !names["cough_recordings_data.csv"] {
		t.Error("Архив должен содержать CSV с метаданными")
	}
	if !names["README.txt"] {
		t.Error("Архив должен содержать README.txt")
	}
	if audioEntries != 1 {
		t.Errorf("Ожидался один аудиофайл в архиве, получено %d", audioEntries)
	}

	// CSV внутри архива не содержит колонку со ссылками
	for _, f := range archive.File {
		if f.Name != "cough_recordings_data.csv" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("Не удалось открыть CSV из архива: %v", err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("Не удалось прочитать CSV из архива: %v", err)
		}
		rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
		if err != nil {
			t.Fatalf("CSV из архива должен быть корректным: %v", err)
		}
		if len(rows[0]) != 15 {
			t.Errorf("Ожидалось 15 колонок без ссылки, получено %d", len(rows[0]))
		}
	}
}
