package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// makeWAV генерирует валидный PCM WAV заданной длительности
func makeWAV(t *testing.T, seconds float64, sampleRate, channels int) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sample.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("не удалось создать файл: %v", err)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	frames := int(seconds * float64(sampleRate))
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, frames*channels),
	}
	for i := range buf.Data {
		buf.Data[i] = int(10000 * math.Sin(float64(i)/50))
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("не удалось записать сэмплы: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("не удалось закрыть энкодер: %v", err)
	}
	f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("не удалось прочитать файл: %v", err)
	}
	return data
}

// TestExtract_WAV проверяет, что из WAV извлекаются все четыре поля
func TestExtract_WAV(t *testing.T) {
	data := makeWAV(t, 2.0, 44100, 1)
	e := NewExtractor()

	meta := e.Extract(data, "cough.wav")

	if meta.Duration == nil {
		t.Fatal("ожидалась известная длительность")
	}
	if math.Abs(*meta.Duration-2.0) > 0.05 {
		t.Errorf("Duration = %.3f, ожидалось ~2.0", *meta.Duration)
	}
	if meta.SampleRate == nil || *meta.SampleRate != 44100 {
		t.Errorf("SampleRate = %v, ожидалось 44100", meta.SampleRate)
	}
	if meta.Channels == nil || *meta.Channels != 1 {
		t.Errorf("Channels = %v, ожидался 1", meta.Channels)
	}
	if meta.BitRate == nil || *meta.BitRate <= 0 {
		t.Errorf("BitRate = %v, ожидалось положительное значение", meta.BitRate)
	}
}

// TestExtract_Undecodable проверяет деградацию на мусорных байтах:
// все поля остаются неизвестными, ошибок наружу нет
func TestExtract_Undecodable(t *testing.T) {
	e := NewExtractor()

	meta := e.Extract([]byte("definitely not audio"), "cough.mp3")

	if meta.Duration != nil {
		t.Errorf("Duration = %v, ожидалось nil", *meta.Duration)
	}
	if meta.SampleRate != nil || meta.BitRate != nil || meta.Channels != nil {
		t.Errorf("ожидались пустые метаданные, получено %+v", meta)
	}
}

// TestExtract_Idempotent проверяет, что извлечение — чистая функция байтов
func TestExtract_Idempotent(t *testing.T) {
	data := makeWAV(t, 1.5, 22050, 2)
	e := NewExtractor()

	first := e.Extract(data, "cough.wav")
	second := e.Extract(data, "cough.wav")

	if first.Duration == nil || second.Duration == nil {
		t.Fatal("ожидалась известная длительность в обоих прогонах")
	}
	if *first.Duration != *second.Duration {
		t.Errorf("длительности различаются: %.6f и %.6f", *first.Duration, *second.Duration)
	}
	if *first.SampleRate != *second.SampleRate || *first.Channels != *second.Channels {
		t.Errorf("метаданные различаются: %+v и %+v", first, second)
	}
}

// TestMeasureDuration_WAV проверяет путь полного декодирования
func TestMeasureDuration_WAV(t *testing.T) {
	data := makeWAV(t, 3.0, 16000, 1)
	e := NewExtractor()

	d := e.MeasureDuration(data, "cough.wav")
	if d == nil {
		t.Fatal("ожидалась измеренная длительность")
	}
	if math.Abs(*d-3.0) > 0.05 {
		t.Errorf("длительность = %.3f, ожидалось ~3.0", *d)
	}
}

// TestMeasureDuration_Unsupported: полное декодирование не покрывает webm
func TestMeasureDuration_Unsupported(t *testing.T) {
	e := NewExtractor()

	if d := e.MeasureDuration([]byte{0x1a, 0x45, 0xdf, 0xa3}, "cough.webm"); d != nil {
		t.Errorf("длительность = %v, ожидалось nil", *d)
	}
}

// TestFillMissing проверяет объединение частичных результатов
func TestFillMissing(t *testing.T) {
	d1, sr := 5.0, 48000
	d2, ch := 7.0, 2

	meta := Metadata{Duration: &d1}
	meta.fillMissing(Metadata{Duration: &d2, SampleRate: &sr, Channels: &ch})

	if *meta.Duration != 5.0 {
		t.Errorf("Duration = %.1f, первый источник должен выигрывать", *meta.Duration)
	}
	if meta.SampleRate == nil || *meta.SampleRate != 48000 {
		t.Errorf("SampleRate = %v, ожидалось заполнение из второго источника", meta.SampleRate)
	}
	if meta.Channels == nil || *meta.Channels != 2 {
		t.Errorf("Channels = %v, ожидалось 2", meta.Channels)
	}
}
