package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/jfreymuth/oggvorbis"
)

// fullDecodeStrategy измеряет параметры, декодируя поток целиком:
// длительность считается как число сэмплов, деленное на частоту.
// Покрывает wav и ogg/vorbis; остальные форматы остаются за ffprobe
type fullDecodeStrategy struct{}

func (fullDecodeStrategy) name() string { return "full decode" }

func (fullDecodeStrategy) probe(path string) (Metadata, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		return decodeWAV(path)
	case ".ogg":
		return decodeOggVorbis(path)
	default:
		return Metadata{}, fmt.Errorf("full decode does not support %q", ext)
	}
}

func decodeWAV(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, err
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return Metadata{}, fmt.Errorf("invalid WAV file")
	}

	dur, err := decoder.Duration()
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to measure WAV duration: %w", err)
	}

	format := decoder.Format()
	seconds := dur.Seconds()

	var meta Metadata
	if seconds > 0 {
		meta.Duration = &seconds
	}
	if format.SampleRate > 0 {
		sr := format.SampleRate
		meta.SampleRate = &sr
	}
	if format.NumChannels > 0 {
		ch := format.NumChannels
		meta.Channels = &ch
	}
	// Для несжатого PCM битрейт считается точно
	if format.SampleRate > 0 && format.NumChannels > 0 && decoder.BitDepth > 0 {
		br := format.SampleRate * format.NumChannels * int(decoder.BitDepth)
		meta.BitRate = &br
	}

	return meta, nil
}

func decodeOggVorbis(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Metadata{}, err
	}

	samples, format, err := oggvorbis.ReadAll(f)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to decode ogg/vorbis: %w", err)
	}
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return Metadata{}, fmt.Errorf("ogg/vorbis stream without format info")
	}

	seconds := float64(len(samples)) / float64(format.SampleRate*format.Channels)

	var meta Metadata
	if seconds > 0 {
		meta.Duration = &seconds
		// Средний битрейт по размеру контейнера
		br := int(float64(info.Size()*8) / seconds)
		meta.BitRate = &br
	}
	sr := format.SampleRate
	ch := format.Channels
	meta.SampleRate = &sr
	meta.Channels = &ch

	return meta, nil
}
