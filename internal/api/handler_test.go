//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ashureev/chat2test/internal/domain"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestWriteErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: chat 1", domain.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: name is required", domain.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: jira_api_url", domain.ErrConfiguration), http.StatusBadRequest},
		{fmt.Errorf("%w: already executed", domain.ErrConflict), http.StatusConflict},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrDisabled, http.StatusGone},
		{errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		writeError(w, r, tt.err)

		if w.Code != tt.want {
			t.Errorf("writeError(%v) status = %d, want %d", tt.err, w.Code, tt.want)
		}
		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if tt.want == http.StatusInternalServerError && body["error"] != "internal server error" {
			t.Errorf("internal error leaked: %q", body["error"])
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(60, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow(1) || !rl.Allow(1) {
		t.Fatal("burst requests should be allowed")
	}
	if rl.Allow(1) {
		t.Fatal("third request within the burst window should be rejected")
	}
	if !rl.Allow(2) {
		t.Fatal("other users must have their own bucket")
	}

	now = now.Add(time.Second)
	if !rl.Allow(1) {
		t.Fatal("token should refill after one second at 60/min")
	}

	now = now.Add(time.Hour)
	if n := rl.Evict(); n != 2 {
		t.Fatalf("Evict() = %d, want 2", n)
	}
}
