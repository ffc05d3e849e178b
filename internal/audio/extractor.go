package audio

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// strategy описывает один способ извлечения метаданных из аудиофайла.
// Стратегии применяются по порядку, пока длительность неизвестна
type strategy interface {
	name() string
	probe(path string) (Metadata, error)
}

// Extractor извлекает технические метаданные из аудиоданных.
// Любая внутренняя ошибка деградирует до "поле неизвестно" и никогда
// не поднимается до вызывающего
type Extractor struct {
	strategies []strategy
	decode     *fullDecodeStrategy
}

func NewExtractor() *Extractor {
	decode := &fullDecodeStrategy{}
	return &Extractor{
		strategies: []strategy{&ffprobeStrategy{}, decode},
		decode:     decode,
	}
}

// Extract возвращает метаданные, которые удалось получить из данных.
// Сначала пробуем ffprobe по контейнеру, затем полное декодирование потока;
// поля объединяются по принципу "первый непустой результат выигрывает"
func (e *Extractor) Extract(data []byte, fileName string) Metadata {
	var meta Metadata

	path, cleanup, err := writeTempFile(data, fileName)
	if err != nil {
		log.Printf("[Extractor] Failed to buffer audio for %s: %v", fileName, err)
		return meta
	}
	defer cleanup()

	for _, s := range e.strategies {
		if meta.Duration != nil {
			break
		}
		partial, err := s.probe(path)
		if err != nil {
			log.Printf("[Extractor] %s failed for %s: %v", s.name(), fileName, err)
			continue
		}
		meta.fillMissing(partial)
	}

	return meta
}

// MeasureDuration измеряет длительность полным декодированием потока.
// Используется для дозаполнения длительности после сохранения записи
func (e *Extractor) MeasureDuration(data []byte, fileName string) *float64 {
	path, cleanup, err := writeTempFile(data, fileName)
	if err != nil {
		log.Printf("[Extractor] Failed to buffer audio for %s: %v", fileName, err)
		return nil
	}
	defer cleanup()

	meta, err := e.decode.probe(path)
	if err != nil {
		log.Printf("[Extractor] Full decode failed for %s: %v", fileName, err)
		return nil
	}
	return meta.Duration
}

// writeTempFile сбрасывает буфер во временный файл, сохраняя расширение
// оригинала: и ffprobe, и декодеры выбирают формат по нему
func writeTempFile(data []byte, fileName string) (string, func(), error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	f, err := os.CreateTemp("", "cough-*"+ext)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	path := f.Name()
	return path, func() { os.Remove(path) }, nil
}
