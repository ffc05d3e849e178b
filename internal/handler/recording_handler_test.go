package handler

import (
	"net/http/httptest"
	"testing"
)

func TestParseRange(t *testing.T) {
	cases := []struct {
		header     string
		size       int64
		start, end int64
		wantErr    bool
	}{
		{"bytes=0-499", 1000, 0, 499, false},
		{"bytes=500-", 1000, 500, 999, false},
		{"bytes=0-5000", 1000, 0, 999, false},
		{"bytes=1000-", 1000, 0, 0, true},
		{"bytes=-500", 1000, 0, 0, true},
		{"items=0-1", 1000, 0, 0, true},
		{"bytes=garbage", 1000, 0, 0, true},
	}

	for _, c := range cases {
		start, end, err := parseRange(c.header, c.size)
		if c.wantErr {
			if err == nil {
				t.Errorf("Заголовок %q должен отклоняться", c.header)
			}
			continue
		}
		if err != nil {
			t.Errorf("Заголовок %q должен разбираться, получена ошибка: %v", c.header, err)
			continue
		}
		if start != c.start || end != c.end {
			t.Errorf("parseRange(%q) = %d-%d, ожидалось %d-%d", c.header, start, end, c.start, c.end)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/v1/recordings", nil)
	r.RemoteAddr = "10.0.0.5:41234"
	if got := getClientIP(r); got != "10.0.0.5" {
		t.Errorf("Без прокси ожидался 10.0.0.5, получено %q", got)
	}

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := getClientIP(r); got != "203.0.113.7" {
		t.Errorf("Из X-Forwarded-For ожидался первый адрес, получено %q", got)
	}
}
