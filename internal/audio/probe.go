package audio

import (
	"fmt"
	"strconv"

	"github.com/xfrr/goffmpeg/transcoder"
)

// ffprobeStrategy читает метаданные контейнера через ffprobe, не декодируя
// поток целиком. Берем всё, что удалось распарсить; частичный результат
// не считается ошибкой
type ffprobeStrategy struct{}

func (ffprobeStrategy) name() string { return "ffprobe" }

func (ffprobeStrategy) probe(path string) (Metadata, error) {
	trans := new(transcoder.Transcoder)

	// Initialize запускает ffprobe по входному файлу; выходной путь
	// транскодеру нужен формально и никогда не создается
	if err := trans.Initialize(path, path+".probe.wav"); err != nil {
		return Metadata{}, fmt.Errorf("ffprobe failed: %w", err)
	}

	md := trans.MediaFile().Metadata()

	var meta Metadata
	if d, err := strconv.ParseFloat(md.Format.Duration, 64); err == nil && d > 0 {
		meta.Duration = &d
	}
	if br, err := strconv.Atoi(md.Format.BitRate); err == nil && br > 0 {
		meta.BitRate = &br
	}

	// Технические параметры берем из первого аудиопотока
	for _, stream := range md.Streams {
		if stream.CodecType != "audio" {
			continue
		}
		if sr, err := strconv.Atoi(stream.SampleRate); err == nil && sr > 0 {
			meta.SampleRate = &sr
		}
		if stream.Channels > 0 {
			ch := stream.Channels
			meta.Channels = &ch
		}
		if meta.BitRate == nil {
			if br, err := strconv.Atoi(stream.BitRate); err == nil && br > 0 {
				meta.BitRate = &br
			}
		}
		break
	}

	return meta, nil
}
