package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNoToken возвращается для запросов без заголовка Authorization.
// Загрузка без токена считается анонимной, а не ошибочной
var ErrNoToken = errors.New("no authorization header")

var gClient *Client

// Client проверяет токены во внешнем сервисе аутентификации
type Client struct {
	baseURL string
	http    *http.Client
}

type verifyResponse struct {
	UserID string `json:"user_id"`
}

func InitClient(cfg *Config) {
	gClient = &Client{
		baseURL: cfg.AuthAddr,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// VerifyToken проверяет токен запроса и возвращает идентификатор пользователя
func VerifyToken(r *http.Request) (string, error) {
	authToken := r.Header.Get("Authorization")
	if authToken == "" {
		return "", ErrNoToken
	}
	if gClient == nil {
		return "", fmt.Errorf("auth client is not initialized")
	}
	return gClient.verify(r.Context(), authToken)
}

func (c *Client) verify(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/auth/verify", nil)
	if err != nil {
		return "", fmt.Errorf("failed to build auth request: %w", err)
	}
	req.Header.Set("Authorization", token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth service rejected token: status %d", resp.StatusCode)
	}

	var vr verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return "", fmt.Errorf("failed to decode auth response: %w", err)
	}
	if vr.UserID == "" {
		return "", fmt.Errorf("auth service returned empty user id")
	}

	return vr.UserID, nil
}
