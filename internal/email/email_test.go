package email

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joao-fontenele/storefront/internal/validation"
)

func newSink(t *testing.T) *httptest.Server {
	t.Helper()
	h := NewHandler(validation.New(), 0, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	mux.HandleFunc("POST /send", h.HandleSend)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Send(t *testing.T) {
	srv := newSink(t)
	client := NewClient(srv.URL, srv.Client())

	t.Run("delivered", func(t *testing.T) {
		if err := client.Send(context.Background(), "asha@example.com", "Order Confirmation", "hi"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("rejected by sink", func(t *testing.T) {
		err := client.Send(context.Background(), "not-an-email", "Order Confirmation", "hi")
		if err == nil || !strings.Contains(err.Error(), "400") {
			t.Fatalf("expected status 400 error, got %v", err)
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		down := NewClient("http://127.0.0.1:1", http.DefaultClient)
		if err := down.Send(context.Background(), "asha@example.com", "s", "b"); err == nil {
			t.Fatal("expected transport error")
		}
	})
}

func TestHandler_HandleSend(t *testing.T) {
	srv := newSink(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid", `{"to":"a@example.com","subject":"Hi","body":"x"}`, http.StatusOK},
		{"malformed", `{`, http.StatusBadRequest},
		{"blank subject", `{"to":"a@example.com","subject":"  "}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/send", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, resp.StatusCode)
			}
		})
	}
}
