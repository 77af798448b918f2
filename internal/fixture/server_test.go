package fixture

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"go.uber.org/goleak"
)

var testLogger arbor.ILogger

func TestMain(m *testing.M) {
	testLogger = arbor.NewLogger()
	goleak.VerifyTestMain(m, goleak.IgnoreCurrent())
}

func startServer(t *testing.T) *Server {
	t.Helper()
	s := New("127.0.0.1:0", testLogger)
	require.NoError(t, s.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, s.Shutdown(ctx))
	})
	return s
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	client := &http.Client{
		Timeout:   5 * time.Second,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServer_EditorPage(t *testing.T) {
	s := startServer(t)

	for _, path := range []string{"/", EditorPath} {
		resp, body := get(t, s.URL()+path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

		for _, landmark := range []string{
			`id="map"`,
			"leaflet-pane-map-pane",
			"leaflet-draw-draw-polygon",
			"leaflet-draw-draw-polyline",
			"leaflet-control-rotate-toggle",
			`id="modal-title"`,
			`id="category-manager-panel"`,
			`id="observation-modal"`,
			`id="show-only-with-observations-toggle"`,
			"category-visibility-toggle",
			`id="contributor-manager-panel"`,
			`id="export-project-btn"`,
		} {
			assert.Contains(t, body, landmark, path)
		}
	}
}

func TestServer_MinimalPage(t *testing.T) {
	s := startServer(t)

	resp, body := get(t, s.URL()+MinimalPath)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "leaflet-pane-map-pane")
	assert.NotContains(t, body, "leaflet-draw-toolbar")
}

func TestServer_Status(t *testing.T) {
	s := startServer(t)

	resp, body := get(t, s.URL()+StatusPath)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var status map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &status))
	assert.Equal(t, "ok", status["status"])
	assert.Equal(t, "fixture", status["server"])
	_, err := time.Parse(time.RFC3339, status["started"])
	assert.NoError(t, err)
}

func TestServer_UnknownPath(t *testing.T) {
	s := startServer(t)

	resp, _ := get(t, s.URL()+"/nope.html")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Lifecycle(t *testing.T) {
	s := New("127.0.0.1:0", testLogger)
	assert.Empty(t, s.URL(), "no URL before Start")
	assert.NoError(t, s.Shutdown(context.Background()), "shutdown before start is a no-op")

	require.NoError(t, s.Start())
	assert.Error(t, s.Start(), "second start is rejected")
	assert.Regexp(t, `^http://127\.0\.0\.1:\d+$`, s.URL())

	require.NoError(t, s.Shutdown(context.Background()))
	assert.NoError(t, s.Wait())
}

func TestServer_ListenFailure(t *testing.T) {
	s := startServer(t)

	other := New(s.listener.Addr().String(), testLogger)
	assert.Error(t, other.Start(), "address already in use")
}

func TestServer_MethodNotAllowed(t *testing.T) {
	s := startServer(t)

	client := &http.Client{Timeout: 5 * time.Second, Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Post(s.URL()+EditorPath, "text/plain", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
