package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/mapcheck/internal/models"
)

func TestCheckReachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/broken":
			w.WriteHeader(http.StatusBadGateway)
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			_, _ = w.Write([]byte("<html></html>"))
		}
	}))
	defer server.Close()

	client := NewDefaultHTTPClient(2 * time.Second)
	ctx := context.Background()

	assert.NoError(t, CheckReachable(ctx, client, server.URL))
	assert.NoError(t, CheckReachable(ctx, client, server.URL+"/missing"), "4xx still means the server is up")

	var navErr *models.NavigationError
	err := CheckReachable(ctx, client, server.URL+"/broken")
	require.ErrorAs(t, err, &navErr)
	assert.Equal(t, server.URL+"/broken", navErr.URL)
	assert.Contains(t, err.Error(), "502")
}

func TestCheckReachable_Failures(t *testing.T) {
	client := NewDefaultHTTPClient(time.Second)

	tests := []struct {
		name string
		url  string
	}{
		{"relative", "/index.html"},
		{"no scheme", "localhost:8080"},
		{"bad syntax", "http://[::1"},
		{"refused", "http://127.0.0.1:1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var navErr *models.NavigationError
			assert.ErrorAs(t, CheckReachable(context.Background(), client, tt.url), &navErr)
		})
	}
}

func TestCheckReachable_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := CheckReachable(ctx, NewDefaultHTTPClient(time.Second), server.URL)
	assert.ErrorIs(t, err, context.Canceled)
}
