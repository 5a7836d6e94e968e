package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/vitalguard/internal/config"
	"github.com/hed1ad/vitalguard/pkg/pipeline"
	"github.com/hed1ad/vitalguard/pkg/recommend"
	"github.com/hed1ad/vitalguard/pkg/vitals"
)

type fakeService struct {
	currentErr error
	processErr error
	processed  []vitals.Reading
	panicOn    bool
}

func (f *fakeService) Current(context.Context) (pipeline.State, error) {
	if f.panicOn {
		panic("boom")
	}
	if f.currentErr != nil {
		return pipeline.State{}, f.currentErr
	}
	return pipeline.State{
		HeartRate:      80,
		BloodOxygen:    97,
		Status:         recommend.StatusNormal,
		Recommendation: recommend.Stable,
		History:        f.History(context.Background()),
	}, nil
}

func (f *fakeService) Process(_ context.Context, r vitals.Reading) (pipeline.State, error) {
	if f.processErr != nil {
		return pipeline.State{}, f.processErr
	}
	if err := r.Validate(); err != nil {
		return pipeline.State{}, err
	}
	f.processed = append(f.processed, r)
	return pipeline.State{
		HeartRate:   r.HeartRate,
		BloodOxygen: r.BloodOxygen,
		IsAnomaly:   true,
		Status:      recommend.StatusAnomaly,
	}, nil
}

func (f *fakeService) History(context.Context) pipeline.History {
	return pipeline.History{
		Labels:       []string{"10:00:00", "10:00:05"},
		HeartRates:   []int{72, 75},
		BloodOxygens: []int{98, 97},
	}
}

func testConfig() config.ServerConfig {
	cfg := config.Default().Server
	cfg.RateLimit = 0
	return cfg
}

func newTestServer(t *testing.T, svc Service, cfg config.ServerConfig) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return New(cfg, svc, reg, nil), reg
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader = http.NoBody
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, &fakeService{}, testConfig())

	rec := do(t, s.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestState(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		s, _ := newTestServer(t, &fakeService{}, testConfig())

		rec := do(t, s.Handler(), http.MethodGet, "/api/state", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var got map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		for _, key := range []string{"heart_rate", "blood_oxygen", "is_anomaly", "status", "recommendation", "history"} {
			assert.Contains(t, got, key)
		}
		history := got["history"].(map[string]any)
		assert.Len(t, history["labels"], 2)
		assert.Len(t, history["heart_rates"], 2)
		assert.Len(t, history["blood_oxygens"], 2)
	})

	t.Run("classifier failure", func(t *testing.T) {
		s, _ := newTestServer(t, &fakeService{currentErr: errors.New("model exploded")}, testConfig())

		rec := do(t, s.Handler(), http.MethodGet, "/api/state", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "exploded")
	})

	t.Run("panic recovered", func(t *testing.T) {
		s, _ := newTestServer(t, &fakeService{panicOn: true}, testConfig())

		rec := do(t, s.Handler(), http.MethodGet, "/api/state", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		s, _ := newTestServer(t, &fakeService{}, testConfig())

		rec := do(t, s.Handler(), http.MethodPost, "/api/state", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestReadings(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "valid", body: `{"heart_rate":130,"blood_oxygen":96}`, wantStatus: http.StatusOK},
		{name: "boundary", body: `{"heart_rate":300,"blood_oxygen":0}`, wantStatus: http.StatusOK},
		{name: "heart rate too high", body: `{"heart_rate":301,"blood_oxygen":96}`, wantStatus: http.StatusBadRequest},
		{name: "negative oxygen", body: `{"heart_rate":80,"blood_oxygen":-1}`, wantStatus: http.StatusBadRequest},
		{name: "fractional", body: `{"heart_rate":72.5,"blood_oxygen":96}`, wantStatus: http.StatusBadRequest},
		{name: "quoted", body: `{"heart_rate":"72","blood_oxygen":96}`, wantStatus: http.StatusBadRequest},
		{name: "missing field", body: `{"heart_rate":72}`, wantStatus: http.StatusBadRequest},
		{name: "not json", body: `hello`, wantStatus: http.StatusBadRequest},
		{name: "too large", body: `{"heart_rate":72,"blood_oxygen":96,"pad":"` + strings.Repeat("x", maxBodyBytes) + `"}`, wantStatus: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			s, _ := newTestServer(t, svc, testConfig())

			rec := do(t, s.Handler(), http.MethodPost, "/api/readings", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			if tt.wantStatus != http.StatusOK {
				assert.Empty(t, svc.processed, "rejected readings must not be scored")
				var e errorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
				assert.NotEmpty(t, e.Error)
				assert.NotEmpty(t, e.RequestID)
				return
			}
			require.Len(t, svc.processed, 1)
		})
	}

	t.Run("pipeline failure", func(t *testing.T) {
		s, _ := newTestServer(t, &fakeService{processErr: errors.New("boom")}, testConfig())

		rec := do(t, s.Handler(), http.MethodPost, "/api/readings", `{"heart_rate":72,"blood_oxygen":96}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHistory(t *testing.T) {
	s, _ := newTestServer(t, &fakeService{}, testConfig())

	rec := do(t, s.Handler(), http.MethodGet, "/api/history", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var h pipeline.History
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, []string{"10:00:00", "10:00:05"}, h.Labels)
	assert.Equal(t, []int{72, 75}, h.HeartRates)
	assert.Equal(t, []int{98, 97}, h.BloodOxygens)
}

func TestRequestID(t *testing.T) {
	s, _ := newTestServer(t, &fakeService{}, testConfig())

	rec := do(t, s.Handler(), http.MethodGet, "/health", "")
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	req.Header.Set(RequestIDHeader, "trace-123")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "trace-123", rec.Header().Get(RequestIDHeader))
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 2
	s, _ := newTestServer(t, &fakeService{}, cfg)

	assert.Equal(t, http.StatusOK, do(t, s.Handler(), http.MethodGet, "/api/history", "").Code)
	assert.Equal(t, http.StatusOK, do(t, s.Handler(), http.MethodGet, "/api/history", "").Code)

	rec := do(t, s.Handler(), http.MethodGet, "/api/history", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// health checks bypass the limiter
	assert.Equal(t, http.StatusOK, do(t, s.Handler(), http.MethodGet, "/health", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, &fakeService{}, testConfig())

	do(t, s.Handler(), http.MethodGet, "/api/history", "")
	do(t, s.Handler(), http.MethodGet, "/api/history", "")

	rec := do(t, s.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(),
		`vitalguard_http_requests_total{method="GET",route="/api/history",status="200"} 2`)
	assert.Contains(t, rec.Body.String(), "vitalguard_http_request_duration_seconds")
}

func TestServeShutsDownOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.ShutdownTimeout = time.Second
	s, _ := newTestServer(t, &fakeService{}, cfg)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := fmt.Sprintf("http://%s/health", ln.Addr())
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunBadAddr(t *testing.T) {
	cfg := testConfig()
	cfg.Addr = "256.0.0.1:bad"
	s, _ := newTestServer(t, &fakeService{}, cfg)

	assert.Error(t, s.Run(context.Background()))
}
