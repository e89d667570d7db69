package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/movies-etl/internal/api"
	"github.com/stacklok/movies-etl/internal/api/mocks"
	"github.com/stacklok/movies-etl/internal/checkpoint"
	etlsync "github.com/stacklok/movies-etl/internal/sync"
)

var committed = time.Date(2021, 6, 16, 20, 14, 9, 0, time.UTC)

func serve(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	// health never reads the loop
	server := api.NewServer(mocks.NewMockStatusProvider(ctrl))

	rr := serve(t, server, "/health")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var response api.HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response.Status)
}

func TestReadinessEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		state          etlsync.State
		expectedStatus int
		expectedBody   string
	}{
		{name: "running", state: etlsync.StateRunning, expectedStatus: http.StatusOK, expectedBody: `{"status":"ready"}`},
		{
			name:           "stopped",
			state:          etlsync.StateStopped,
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `{"error":"sync loop not running: state stopped"}`,
		},
		{
			name:           "idle",
			state:          etlsync.StateIdle,
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `{"error":"sync loop not running: state idle"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			provider := mocks.NewMockStatusProvider(ctrl)
			provider.EXPECT().Status().Return(etlsync.Status{State: tt.state})

			rr := serve(t, api.NewServer(provider), "/readiness")

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.JSONEq(t, tt.expectedBody, rr.Body.String())
		})
	}
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	provider := mocks.NewMockStatusProvider(ctrl)
	provider.EXPECT().Status().Return(etlsync.Status{
		State:           etlsync.StateRunning,
		Owner:           "worker-1",
		Cycles:          3,
		FailedCycles:    1,
		DocumentsLoaded: 250,
		LastImpacted:    20,
		LastLoaded:      20,
		LastError:       "load stage failed: partial bulk",
		Watermarks:      checkpoint.Watermarks{checkpoint.StreamFilmwork: committed},
	})

	rr := serve(t, api.NewServer(provider), "/status")

	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "running", body["state"])
	assert.Equal(t, "worker-1", body["owner"])
	assert.InDelta(t, 3, body["cycles"], 0)
	assert.InDelta(t, 250, body["documents_loaded"], 0)
	assert.Equal(t, "load stage failed: partial bulk", body["last_error"])
	assert.Equal(t, map[string]any{"filmwork": "2021-06-16T20:14:09Z"}, body["watermarks"])
}

func TestWatermarkEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		path           string
		expectStatus   bool
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "committed stream",
			path:           "/status/filmwork",
			expectStatus:   true,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"stream":"filmwork","watermark":"2021-06-16T20:14:09Z"}`,
		},
		{
			name:           "never committed stream",
			path:           "/status/genre",
			expectStatus:   true,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"stream":"genre","watermark":null}`,
		},
		{
			name:           "unknown stream",
			path:           "/status/studio",
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"error":"unknown stream \"studio\""}`,
		},
		{
			name:           "whitespace",
			path:           "/status/film%20work",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"stream cannot contain whitespace"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			provider := mocks.NewMockStatusProvider(ctrl)
			if tt.expectStatus {
				provider.EXPECT().Status().Return(etlsync.Status{
					Watermarks: checkpoint.Watermarks{checkpoint.StreamFilmwork: committed},
				})
			}

			rr := serve(t, api.NewServer(provider), tt.path)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.JSONEq(t, tt.expectedBody, rr.Body.String())
		})
	}
}

func TestVersionEndpoint(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	rr := serve(t, api.NewServer(mocks.NewMockStatusProvider(ctrl)), "/version")

	require.Equal(t, http.StatusOK, rr.Code)
	var response api.VersionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.NotEmpty(t, response.Version)
	assert.NotEmpty(t, response.GoVersion)
	assert.NotEmpty(t, response.Platform)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("movies_etl_documents_loaded_total 7\n"))
	})

	tests := []struct {
		name           string
		opts           []api.ServerOption
		expectedStatus int
	}{
		{name: "served when configured", opts: []api.ServerOption{api.WithMetricsHandler(metrics)}, expectedStatus: http.StatusOK},
		{name: "absent otherwise", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)

			rr := serve(t, api.NewServer(mocks.NewMockStatusProvider(ctrl), tt.opts...), "/metrics")

			assert.Equal(t, tt.expectedStatus, rr.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.Contains(t, rr.Body.String(), "movies_etl_documents_loaded_total")
			}
		})
	}
}

func TestMiddlewares(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	var seen []string
	tag := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = append(seen, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	server := api.NewServer(mocks.NewMockStatusProvider(ctrl),
		api.WithMiddlewares(tag("first"), api.LoggingMiddleware),
		api.WithMiddlewares(tag("second")),
	)

	rr := serve(t, server, "/health")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"first", "second"}, seen)
}
