package service

import (
	"context"
	"sync"
	"time"

	"coughstore/internal/domain"
)

const statsCacheTTL = 5 * time.Minute

// StatsService отдает агрегированную статистику по коллекции.
// Снимок кэшируется: статистику считают по каждому открытию дашборда,
// а записи меняются редко
type StatsService struct {
	repo RecordingStore

	mu        sync.Mutex
	cached    *domain.RecordingStats
	expiresAt time.Time
}

func NewStatsService(repo RecordingStore) *StatsService {
	return &StatsService{repo: repo}
}

// GetStats возвращает статистику, пересчитывая её не чаще одного раза
// в пять минут
func (s *StatsService) GetStats(ctx context.Context) (*domain.RecordingStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && time.Now().Before(s.expiresAt) {
		return s.cached, nil
	}

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}

	s.cached = stats
	s.expiresAt = time.Now().Add(statsCacheTTL)
	return stats, nil
}

// Invalidate сбрасывает кэш, например после массового импорта
func (s *StatsService) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
}
