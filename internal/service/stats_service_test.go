package service

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"coughstore/internal/domain"
)

func TestGetStats_Cached(t *testing.T) {
	store := newFakeStore()
	store.recs[uuid.New()] = &domain.Recording{RecordingID: uuid.New()}

	svc := NewStatsService(store)

	stats, err := svc.GetStats(context.Background())
	if err != nil {
		t.Fatalf("Получение статистики не должно завершаться ошибкой: %v", err)
	}
	if stats.TotalRecordings != 1 {
		t.Errorf("TotalRecordings = %d, ожидалось 1", stats.TotalRecordings)
	}

	// Новая запись не видна, пока не истек срок кеша
	store.recs[uuid.New()] = &domain.Recording{RecordingID: uuid.New()}

	stats, err = svc.GetStats(context.Background())
	if err != nil {
		t.Fatalf("Получение статистики не должно завершаться ошибкой: %v", err)
	}
	if stats.TotalRecordings != 1 {
		t.Errorf("Кешированное значение = %d, ожидалось 1", stats.TotalRecordings)
	}

	svc.Invalidate()

	stats, err = svc.GetStats(context.Background())
	if err != nil {
		t.Fatalf("Получение статистики не должно завершаться ошибкой: %v", err)
	}
	if stats.TotalRecordings != 2 {
		t.Errorf("После сброса кеша ожидалось 2, получено %d", stats.TotalRecordings)
	}
}
