package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aula-hub/gradebook/config"
	"github.com/aula-hub/gradebook/internal/application/command"
	"github.com/aula-hub/gradebook/internal/application/query"
	"github.com/aula-hub/gradebook/internal/domain/feedback"
	"github.com/aula-hub/gradebook/internal/domain/grading"
	"github.com/aula-hub/gradebook/internal/domain/session"
	"github.com/aula-hub/gradebook/internal/infrastructure/export"
	"github.com/aula-hub/gradebook/internal/infrastructure/ingest"
	"github.com/aula-hub/gradebook/internal/infrastructure/metrics"
	"github.com/aula-hub/gradebook/internal/infrastructure/persistence/memory"
	"github.com/aula-hub/gradebook/pkg/logger"
)

type flags map[string]bool

func (f flags) IsEnabled(name, _ string) bool {
	on, ok := f[name]
	return !ok || on
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	RequestID string          `json:"request_id"`
}

type testOptions struct {
	config   Config
	features flags
}

func newTestServer(t *testing.T, opts testOptions) *Server {
	t.Helper()

	store := memory.NewSessionStore()
	scale := grading.DefaultScale()
	log := logger.Nop()
	features := opts.features
	if features == nil {
		features = flags{}
	}

	requester := feedback.RequesterFunc(func(_ context.Context, p feedback.Prompt, cfg feedback.ProviderConfig) feedback.Result {
		if cfg.APIKey == "" {
			return feedback.Unavailable(cfg.Provider, "no credential")
		}
		return feedback.Success(cfg.Provider, "Keep going, "+p.Student)
	})

	defaults := session.Settings{
		Thresholds: grading.DefaultThresholds(),
		Feedback:   session.FeedbackSettings{Provider: feedback.ProviderAnthropic},
	}

	health := NewHealthChecker("test")
	health.AddCheck("sessions", PingCheck(store))

	cfg := opts.config
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = ingest.DefaultMaxBytes
	}

	return NewServer(cfg, Dependencies{
		CreateSession:  command.NewCreateSessionHandler(store, nil, command.CreateSessionConfig{Defaults: defaults, Logger: log}),
		UpdateSettings: command.NewUpdateSettingsHandler(store, nil, command.UpdateSettingsConfig{Logger: log}),
		LoadDataset: command.NewLoadDatasetHandler(store, command.TableReaderFunc(ingest.Read), nil,
			command.LoadDatasetConfig{Logger: log}),
		DeleteSession: command.NewDeleteSessionHandler(store, nil, log),
		RequestFeedback: command.NewRequestFeedbackHandler(store, requester, nil, command.RequestFeedbackConfig{
			Scale:    scale,
			Features: features,
			Logger:   log,
		}),
		ExportReport: command.NewExportReportHandler(store, nil, command.ExportReportConfig{
			Scale: scale,
			CSV:   export.WriteCSV,
			PDF: func(w io.Writer, aggs []grading.AggregatedRecord) error {
				return export.WritePDF(w, aggs, scale, export.DefaultPDFOptions())
			},
			Features: features,
			Logger:   log,
		}),

		GetSession:  query.NewGetSessionHandler(store),
		GetRecords:  query.NewGetRecordsHandler(store, scale),
		GetSummary:  query.NewGetSummaryHandler(store, scale, 5, log),
		GetCharts:   query.NewGetChartsHandler(store, scale, features),
		GetClusters: query.NewGetClustersHandler(store, scale, 3, features),
		GetStudent:  query.NewGetStudentHandler(store, scale),

		Health:  health,
		Metrics: metrics.New(),
		Logger:  log,
	})
}

func do(t *testing.T, s *Server, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set(echoContentType, "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

const echoContentType = "Content-Type"

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func createSession(t *testing.T, s *Server) string {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/v1/sessions", nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var dto query.SessionDTO
	env := decode(t, rec, &dto)
	require.True(t, env.Success)
	require.NotEmpty(t, dto.ID)
	return dto.ID
}

func loadSample(t *testing.T, s *Server, id string) {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/v1/sessions/"+id+"/dataset?sample=true", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func upload(t *testing.T, s *Server, id, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/dataset", &buf)
	req.Header.Set(echoContentType, mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t, testOptions{})

	rec := do(t, s, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var status HealthStatus
	rec = do(t, s, http.MethodGet, "/ready", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &status)
	assert.True(t, status.Ready)
	assert.True(t, status.Checks["sessions"].Healthy)

	s.deps.Health.AddCheck("broken", func(context.Context) error { return errors.New("down") })
	rec = do(t, s, http.MethodGet, "/ready", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	decode(t, rec, &status)
	assert.False(t, status.Ready)
	assert.Equal(t, "checks failed: broken", status.Message)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, testOptions{})
	do(t, s, http.MethodGet, "/health", nil, nil)

	rec := do(t, s, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `gradebook_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION FLOW
// ══════════════════════════════════════════════════════════════════════════════

func TestSessionFlow(t *testing.T) {
	s := newTestServer(t, testOptions{})
	id := createSession(t, s)
	base := "/api/v1/sessions/" + id
	loadSample(t, s, id)

	t.Run("session metadata", func(t *testing.T) {
		var dto query.SessionDTO
		rec := do(t, s, http.MethodGet, base, nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &dto)
		require.NotNil(t, dto.Dataset)
		assert.Equal(t, 5, dto.Dataset.Records)
		assert.Equal(t, session.SampleSource, dto.Dataset.Source)
	})

	t.Run("filtered records", func(t *testing.T) {
		var res query.RecordsResult
		rec := do(t, s, http.MethodGet, base+"/records?status=failed", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &res)
		require.Len(t, res.Records, 1)
		assert.Equal(t, "Luis García", res.Records[0].Name)
		assert.Equal(t, 5, res.Total)
	})

	t.Run("summary", func(t *testing.T) {
		var summary struct {
			Total  int `json:"total"`
			Passed int `json:"passed"`
			Top    []struct {
				Name string `json:"name"`
			} `json:"top"`
		}
		rec := do(t, s, http.MethodGet, base+"/summary?top=2", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &summary)
		assert.Equal(t, 5, summary.Total)
		assert.Equal(t, 4, summary.Passed)
		require.Len(t, summary.Top, 2)
		assert.Equal(t, "Ana Mendoza", summary.Top[0].Name)
	})

	t.Run("charts and clusters", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, base+"/charts", nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		var grouping struct {
			K int `json:"k"`
		}
		rec = do(t, s, http.MethodGet, base+"/clusters?k=2", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &grouping)
		assert.Equal(t, 2, grouping.K)
	})

	t.Run("student detail", func(t *testing.T) {
		var detail query.StudentDetail
		rec := do(t, s, http.MethodGet, base+"/students/"+url.PathEscape("luis garcía"), nil, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &detail)
		assert.Equal(t, grading.StatusFailed, detail.Record.Status)
		assert.Contains(t, detail.Analysis.Recommendations, feedback.RecommendAttendance)
	})

	t.Run("feedback from provider", func(t *testing.T) {
		var out feedback.Outcome
		rec := do(t, s, http.MethodPost, base+"/feedback", strings.NewReader(`{"student":"Ana Mendoza"}`),
			map[string]string{headerProviderKey: "sk-test"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &out)
		assert.Equal(t, feedback.SourceAI, out.Source)
		assert.Equal(t, "Keep going, Ana Mendoza", out.Text)
	})

	t.Run("feedback falls back without a key", func(t *testing.T) {
		var out feedback.Outcome
		rec := do(t, s, http.MethodPost, base+"/feedback", strings.NewReader(`{"student":"Luis García"}`), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &out)
		assert.Equal(t, feedback.SourceFallback, out.Source)
		require.NotNil(t, out.Fallback)
		assert.Contains(t, out.Fallback.Recommendations, feedback.RecommendReinforce)
	})

	t.Run("csv export", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, base+"/export.csv", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get(echoContentType))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "gradebook-report-")
		assert.True(t, strings.HasPrefix(rec.Body.String(), "Name,ID,Level,Bim1"))
	})

	t.Run("pdf export of one student", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, base+"/export.pdf?student="+url.QueryEscape("Ana Mendoza"), nil, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "application/pdf", rec.Header().Get(echoContentType))
		assert.Equal(t, "1", rec.Header().Get("X-Report-Students"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
	})

	t.Run("settings update re-derives status", func(t *testing.T) {
		body := `{"thresholds":{"primary":{"min_score":15,"min_attendance":80,"letter_grades":true},` +
			`"secondary":{"min_score":11,"min_attendance":80},"session_level":"primary"},` +
			`"feedback":{"provider":"none"}}`
		rec := do(t, s, http.MethodPut, base+"/settings", strings.NewReader(body), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res query.RecordsResult
		rec = do(t, s, http.MethodGet, base+"/records?status=passed", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &res)
		assert.Len(t, res.Records, 2)
	})

	t.Run("delete", func(t *testing.T) {
		rec := do(t, s, http.MethodDelete, base, nil, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = do(t, s, http.MethodGet, base, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		env := decode(t, rec, nil)
		assert.Equal(t, CodeNotFound, env.Error.Code)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// UPLOADS
// ══════════════════════════════════════════════════════════════════════════════

func TestUploadDataset(t *testing.T) {
	s := newTestServer(t, testOptions{})
	id := createSession(t, s)

	csv := "Name;ID;Level;Bim1;Bim2;Bim3;Bim4;Attendance\n" +
		"Rosa Flores;S1;secondary;12;13;14;15;90\n" +
		"Pedro Ruiz;S2;primary;20;25;18;19;105\n"
	rec := upload(t, s, id, "grades.csv", csv)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var dto query.SessionDTO
	decode(t, rec, &dto)
	require.NotNil(t, dto.Dataset)
	assert.Equal(t, 2, dto.Dataset.Records)
	assert.Equal(t, 1, dto.Dataset.ClampedScores)
	assert.Equal(t, 1, dto.Dataset.ClampedAttendance)
	assert.Equal(t, "grades.csv", dto.Dataset.Source)
}

func TestUploadDataset_Rejected(t *testing.T) {
	s := newTestServer(t, testOptions{})
	id := createSession(t, s)

	tests := []struct {
		name     string
		filename string
		content  string
		wantCode int
		check    func(t *testing.T, e *APIError)
	}{
		{
			name:     "missing columns",
			filename: "grades.csv",
			content:  "Name,Bim1,Bim2\nAna,10,12\n",
			wantCode: http.StatusUnprocessableEntity,
			check: func(t *testing.T, e *APIError) {
				assert.Equal(t, CodeInvalidDataset, e.Code)
				details, ok := e.Details.(map[string]any)
				require.True(t, ok)
				assert.Equal(t, []any{"Bim3", "Bim4", "Attendance"}, details["missing_columns"])
			},
		},
		{
			name:     "non numeric score",
			filename: "grades.csv",
			content:  "Name,Bim1,Bim2,Bim3,Bim4,Attendance\nAna,10,twelve,12,13,90\n",
			wantCode: http.StatusUnprocessableEntity,
			check: func(t *testing.T, e *APIError) {
				details, ok := e.Details.(map[string]any)
				require.True(t, ok)
				assert.Equal(t, "Bim2", details["field"])
				assert.Equal(t, float64(1), details["row"])
			},
		},
		{
			name:     "unsupported format",
			filename: "grades.txt",
			content:  "whatever",
			wantCode: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := upload(t, s, id, tt.filename, tt.content)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			env := decode(t, rec, nil)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			if tt.check != nil {
				tt.check(t, env.Error)
			}
		})
	}

	// nothing was loaded by the rejected uploads
	rec := do(t, s, http.MethodGet, "/api/v1/sessions/"+id+"/records", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUploadDataset_TooLarge(t *testing.T) {
	s := newTestServer(t, testOptions{config: Config{MaxUploadBytes: 64}})
	id := createSession(t, s)

	rec := upload(t, s, id, "grades.csv", strings.Repeat("Name,Bim1,Bim2,Bim3,Bim4,Attendance\n", 10))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t, testOptions{features: flags{
		config.FeatureAnalyticsCharts: false,
		config.FeatureExportPDF:       false,
	}})
	empty := createSession(t, s)
	loaded := createSession(t, s)
	loadSample(t, s, loaded)

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"unknown session", http.MethodGet, "/api/v1/sessions/nope/summary", "", http.StatusNotFound, CodeNotFound},
		{"no dataset", http.MethodGet, "/api/v1/sessions/" + empty + "/summary", "", http.StatusConflict, CodeNoDataset},
		{"bad status filter", http.MethodGet, "/api/v1/sessions/" + loaded + "/records?status=maybe", "", http.StatusBadRequest, CodeInvalidRequest},
		{"bad k", http.MethodGet, "/api/v1/sessions/" + loaded + "/clusters?k=abc", "", http.StatusBadRequest, CodeInvalidRequest},
		{"k too large", http.MethodGet, "/api/v1/sessions/" + loaded + "/clusters?k=50", "", http.StatusBadRequest, CodeInvalidRequest},
		{"unknown student", http.MethodGet, "/api/v1/sessions/" + loaded + "/students/Nobody", "", http.StatusNotFound, CodeNotFound},
		{"feedback without student", http.MethodPost, "/api/v1/sessions/" + loaded + "/feedback", `{}`, http.StatusBadRequest, CodeValidation},
		{"charts disabled", http.MethodGet, "/api/v1/sessions/" + loaded + "/charts", "", http.StatusForbidden, CodeFeatureDisabled},
		{"pdf disabled", http.MethodGet, "/api/v1/sessions/" + loaded + "/export.pdf", "", http.StatusForbidden, CodeFeatureDisabled},
		{"invalid settings", http.MethodPut, "/api/v1/sessions/" + loaded + "/settings",
			`{"thresholds":{"primary":{"min_score":25}}}`, http.StatusBadRequest, CodeInvalidRequest},
		{"unknown route", http.MethodGet, "/api/v1/nothing", "", http.StatusNotFound, CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			rec := do(t, s, tt.method, tt.path, body, nil)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			env := decode(t, rec, nil)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantErr, env.Error.Code)
			assert.NotEmpty(t, env.RequestID)
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITING
// ══════════════════════════════════════════════════════════════════════════════

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, testOptions{config: Config{RateLimit: 0.01, RateBurst: 2}})

	for i := 0; i < 2; i++ {
		rec := do(t, s, http.MethodPost, "/api/v1/sessions", nil, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := do(t, s, http.MethodPost, "/api/v1/sessions", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// health checks are not limited
	rec = do(t, s, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIPRateLimiter(t *testing.T) {
	now := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	l := newIPRateLimiter(1, 1)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "buckets are per client")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("a"))

	// idle clients are forgotten
	now = now.Add(10 * time.Minute)
	l.Allow("c")
	assert.NotContains(t, l.visitors, "a")
	assert.NotContains(t, l.visitors, "b")
}
