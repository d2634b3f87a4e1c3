package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/aula-hub/gradebook/internal/application/command"
	"github.com/aula-hub/gradebook/internal/application/query"
	"github.com/aula-hub/gradebook/internal/domain/feedback"
	"github.com/aula-hub/gradebook/internal/domain/grading"
	"github.com/aula-hub/gradebook/internal/domain/session"
	"github.com/aula-hub/gradebook/pkg/logger"
)

// Request-scoped provider credentials. They are used for one call and never stored.
const (
	headerProviderKey         = "X-Provider-Key"
	headerFallbackProviderKey = "X-Fallback-Provider-Key"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(c echo.Context) error {
	return respond(c, http.StatusOK, s.deps.Health.Live())
}

func (s *Server) handleReady(c echo.Context) error {
	status := s.deps.Health.Check(c.Request().Context())
	if !status.Ready {
		return respond(c, http.StatusServiceUnavailable, status)
	}
	return respond(c, http.StatusOK, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type createSessionRequest struct {
	Settings *session.Settings `json:"settings"`
}

// handleCreateSession handles POST /api/v1/sessions
func (s *Server) handleCreateSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	sess, err := s.deps.CreateSession.Handle(c.Request().Context(), command.CreateSessionCommand{Settings: req.Settings})
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderLocation, "/api/"+apiVersion+"/sessions/"+sess.ID)
	return respond(c, http.StatusCreated, query.NewSessionDTO(sess))
}

// handleGetSession handles GET /api/v1/sessions/:id
func (s *Server) handleGetSession(c echo.Context) error {
	dto, err := s.deps.GetSession.Handle(c.Request().Context(), query.GetSessionQuery{SessionID: c.Param("id")})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto)
}

// handleDeleteSession handles DELETE /api/v1/sessions/:id
func (s *Server) handleDeleteSession(c echo.Context) error {
	if err := s.deps.DeleteSession.Handle(c.Request().Context(), command.DeleteSessionCommand{SessionID: c.Param("id")}); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// handleUpdateSettings handles PUT /api/v1/sessions/:id/settings
func (s *Server) handleUpdateSettings(c echo.Context) error {
	var settings session.Settings
	if err := c.Bind(&settings); err != nil {
		return err
	}

	sess, err := s.deps.UpdateSettings.Handle(c.Request().Context(), command.UpdateSettingsCommand{
		SessionID: c.Param("id"),
		Settings:  settings,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, query.NewSessionDTO(sess))
}

// handleLoadDataset handles POST /api/v1/sessions/:id/dataset
//
// The table is either a multipart "file" field or, with ?sample=true, the
// built-in demonstration dataset.
func (s *Server) handleLoadDataset(c echo.Context) error {
	cmd := command.LoadDatasetCommand{SessionID: c.Param("id")}

	if err := echo.QueryParamsBinder(c).Bool("sample", &cmd.Sample).BindError(); err != nil {
		return err
	}

	if !cmd.Sample {
		req := c.Request()
		if req.ContentLength > s.config.MaxUploadBytes {
			return &http.MaxBytesError{Limit: s.config.MaxUploadBytes}
		}
		req.Body = http.MaxBytesReader(c.Response(), req.Body, s.config.MaxUploadBytes)

		fh, err := c.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return err
			}
			return echo.NewHTTPError(http.StatusBadRequest, "multipart field \"file\" is required").SetInternal(err)
		}
		if fh.Size > s.config.MaxUploadBytes {
			return &http.MaxBytesError{Limit: s.config.MaxUploadBytes}
		}

		f, err := fh.Open()
		if err != nil {
			return fmt.Errorf("open upload: %w", err)
		}
		defer f.Close()

		cmd.Filename = fh.Filename
		cmd.File = f
	}

	res, err := s.deps.LoadDataset.Handle(c.Request().Context(), cmd)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, query.NewSessionDTO(res.Session))
}

// ══════════════════════════════════════════════════════════════════════════════
// DASHBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetRecords handles GET /api/v1/sessions/:id/records?status=&level=
func (s *Server) handleGetRecords(c echo.Context) error {
	res, err := s.deps.GetRecords.Handle(c.Request().Context(), query.GetRecordsQuery{
		SessionID: c.Param("id"),
		Status:    c.QueryParam("status"),
		Level:     c.QueryParam("level"),
	})
	if err != nil {
		return err
	}
	return respondWithMeta(c, http.StatusOK, res, &ResponseMeta{TotalCount: res.Total})
}

// handleGetStudent handles GET /api/v1/sessions/:id/students/:student
func (s *Server) handleGetStudent(c echo.Context) error {
	detail, err := s.deps.GetStudent.Handle(c.Request().Context(), query.GetStudentQuery{
		SessionID: c.Param("id"),
		Student:   c.Param("student"),
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, detail)
}

// handleGetSummary handles GET /api/v1/sessions/:id/summary?top=N
func (s *Server) handleGetSummary(c echo.Context) error {
	q := query.GetSummaryQuery{SessionID: c.Param("id")}
	if err := echo.QueryParamsBinder(c).Int("top", &q.TopN).BindError(); err != nil {
		return err
	}

	summary, err := s.deps.GetSummary.Handle(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, summary)
}

// handleGetCharts handles GET /api/v1/sessions/:id/charts
func (s *Server) handleGetCharts(c echo.Context) error {
	series, err := s.deps.GetCharts.Handle(c.Request().Context(), query.GetChartsQuery{SessionID: c.Param("id")})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, series)
}

// handleGetClusters handles GET /api/v1/sessions/:id/clusters?k=3
func (s *Server) handleGetClusters(c echo.Context) error {
	q := query.GetClustersQuery{SessionID: c.Param("id")}
	if err := echo.QueryParamsBinder(c).Int("k", &q.K).BindError(); err != nil {
		return err
	}

	grouping, err := s.deps.GetClusters.Handle(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, grouping)
}

// ══════════════════════════════════════════════════════════════════════════════
// FEEDBACK & EXPORT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type feedbackRequest struct {
	Student string `json:"student" validate:"required,max=200"`
}

type feedbackResponse struct {
	feedback.Outcome
	Record grading.AggregatedRecord `json:"record"`
}

// handleRequestFeedback handles POST /api/v1/sessions/:id/feedback
func (s *Server) handleRequestFeedback(c echo.Context) error {
	var req feedbackRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	res, err := s.deps.RequestFeedback.Handle(c.Request().Context(), command.RequestFeedbackCommand{
		SessionID:      c.Param("id"),
		Student:        req.Student,
		APIKey:         strings.TrimSpace(c.Request().Header.Get(headerProviderKey)),
		FallbackAPIKey: strings.TrimSpace(c.Request().Header.Get(headerFallbackProviderKey)),
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, feedbackResponse{Outcome: res.Outcome, Record: res.Record})
}

// handleExportCSV handles GET /api/v1/sessions/:id/export.csv
func (s *Server) handleExportCSV(c echo.Context) error {
	return s.export(c, command.FormatCSV)
}

// handleExportPDF handles GET /api/v1/sessions/:id/export.pdf?student=..&student=..
func (s *Server) handleExportPDF(c echo.Context) error {
	return s.export(c, command.FormatPDF)
}

func (s *Server) export(c echo.Context, format command.Format) error {
	res, err := s.deps.ExportReport.Handle(c.Request().Context(), command.ExportReportCommand{
		SessionID: c.Param("id"),
		Format:    format,
		Students:  c.QueryParams()["student"],
	})
	if err != nil {
		return err
	}

	h := c.Response().Header()
	h.Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", res.Filename))
	h.Set("X-Report-Students", strconv.Itoa(res.Students))
	s.logger.Debug("report exported",
		logger.SessionID(c.Param("id")),
		logger.String("format", string(res.Format)),
		logger.Int("bytes", len(res.Body)),
	)
	return c.Blob(http.StatusOK, res.ContentType, res.Body)
}
