package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aula-hub/gradebook/config"
	"github.com/aula-hub/gradebook/internal/domain/grading"
	"github.com/aula-hub/gradebook/internal/domain/session"
	"github.com/aula-hub/gradebook/internal/domain/shared"
	"github.com/aula-hub/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPORT REPORT COMMAND
// Renders the session's aggregated records as CSV or PDF. The document is
// built in memory; on any failure the caller gets no bytes at all.
// ══════════════════════════════════════════════════════════════════════════════

// Format is an export format.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/csv; charset=utf-8"
}

// ExportReportCommand selects the format and, optionally, the students.
type ExportReportCommand struct {
	SessionID string
	Format    Format
	// Students limits the report to these IDs or names. Empty means all.
	Students []string
}

// Validate validates the command.
func (c ExportReportCommand) Validate() error {
	switch c.Format {
	case FormatCSV, FormatPDF:
		return nil
	}
	return shared.NewDomainError("export", "Export", shared.ErrInvalidInput, "unsupported export format: "+string(c.Format))
}

// ExportReportResult is the finished document.
type ExportReportResult struct {
	Format      Format
	Filename    string
	ContentType string
	Body        []byte
	Students    int
}

// ReportWriter renders records to w.
type ReportWriter func(w io.Writer, aggs []grading.AggregatedRecord) error

// ExportReportConfig contains configuration for the handler.
type ExportReportConfig struct {
	Scale    grading.Scale
	CSV      ReportWriter
	PDF      ReportWriter
	Features FeatureChecker
	Now      func() time.Time
	Logger   *logger.Logger
}

// ExportReportHandler handles the ExportReportCommand.
type ExportReportHandler struct {
	store     session.Store
	publisher shared.EventPublisher
	config    ExportReportConfig
	features  FeatureChecker
	now       func() time.Time
	log       *logger.Logger
}

// NewExportReportHandler creates a new ExportReportHandler.
func NewExportReportHandler(store session.Store, publisher shared.EventPublisher, cfg ExportReportConfig) *ExportReportHandler {
	if len(cfg.Scale.Bands()) == 0 {
		cfg.Scale = grading.DefaultScale()
	}
	return &ExportReportHandler{
		store:     store,
		publisher: orNop(publisher),
		config:    cfg,
		features:  orAllEnabled(cfg.Features),
		now:       orNow(cfg.Now),
		log:       orNopLogger(cfg.Logger),
	}
}

// Handle builds the report.
func (h *ExportReportHandler) Handle(ctx context.Context, cmd ExportReportCommand) (*ExportReportResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("export_report: validation failed: %w", err)
	}

	sess, err := loadSession(ctx, h.store, cmd.SessionID)
	if err != nil {
		return nil, fmt.Errorf("export_report: %w", err)
	}
	if cmd.Format == FormatPDF && !h.features.IsEnabled(config.FeatureExportPDF, sess.ID) {
		return nil, fmt.Errorf("export_report: pdf: %w", shared.ErrFeatureDisabled)
	}

	aggs, err := sess.Aggregated(h.config.Scale)
	if err != nil {
		return nil, fmt.Errorf("export_report: %w", err)
	}
	selected, err := selectStudents(aggs, cmd.Students)
	if err != nil {
		return nil, fmt.Errorf("export_report: %w", err)
	}

	write := h.config.CSV
	if cmd.Format == FormatPDF {
		write = h.config.PDF
	}
	log := h.log.With(logger.SessionID(sess.ID), logger.String("format", string(cmd.Format)))

	var buf bytes.Buffer
	if write == nil {
		err = shared.WrapError("export", "Export", shared.ErrExport, "no writer configured", errors.New(string(cmd.Format)))
	} else {
		err = write(&buf, selected)
	}
	if err != nil {
		log.Error("export failed", logger.Int("students", len(selected)), logger.Err(err))
		publish(h.publisher, h.log, shared.NewReportExportedEvent(sess.ID, string(cmd.Format), len(selected), 0, true, h.now()))
		return nil, fmt.Errorf("export_report: %w", err)
	}

	now := h.now()
	log.Info("report exported", logger.Int("students", len(selected)), logger.Int("bytes", buf.Len()))
	publish(h.publisher, h.log, shared.NewReportExportedEvent(sess.ID, string(cmd.Format), len(selected), buf.Len(), false, now))

	return &ExportReportResult{
		Format:      cmd.Format,
		Filename:    reportFilename(cmd.Format, selected, now),
		ContentType: cmd.Format.ContentType(),
		Body:        buf.Bytes(),
		Students:    len(selected),
	}, nil
}

// selectStudents keeps dataset order and drops duplicates.
func selectStudents(aggs []grading.AggregatedRecord, students []string) ([]grading.AggregatedRecord, error) {
	if len(students) == 0 {
		return aggs, nil
	}
	pick := make(map[int]bool, len(students))
	for _, q := range students {
		found := false
		for i, a := range aggs {
			if a.Matches(q) {
				pick[i] = true
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%q: %w", q, shared.ErrStudentNotFound)
		}
	}
	out := make([]grading.AggregatedRecord, 0, len(pick))
	for i, a := range aggs {
		if pick[i] {
			out = append(out, a)
		}
	}
	return out, nil
}

func reportFilename(f Format, selected []grading.AggregatedRecord, now time.Time) string {
	base := "gradebook-report"
	if len(selected) == 1 {
		base = "report-" + slug(selected[0].Name)
	}
	return fmt.Sprintf("%s-%s.%s", base, now.Format("20060102"), f)
}

func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return "student"
	}
	return s
}
