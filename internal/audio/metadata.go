package audio

// Metadata представляет частичный результат извлечения технических
// метаданных: каждое поле заполняется независимо от остальных
type Metadata struct {
	Duration   *float64 `json:"duration,omitempty"`
	SampleRate *int     `json:"sample_rate,omitempty"`
	BitRate    *int     `json:"bit_rate,omitempty"`
	Channels   *int     `json:"channels,omitempty"`
}

// fillMissing дополняет пустые поля значениями из src; уже известные
// поля не перезаписываются (первый источник выигрывает)
func (m *Metadata) fillMissing(src Metadata) {
	if m.Duration == nil {
		m.Duration = src.Duration
	}
	if m.SampleRate == nil {
		m.SampleRate = src.SampleRate
	}
	if m.BitRate == nil {
		m.BitRate = src.BitRate
	}
	if m.Channels == nil {
		m.Channels = src.Channels
	}
}
