package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aula-hub/gradebook/internal/domain/session"
	"github.com/aula-hub/gradebook/internal/domain/shared"
	"github.com/aula-hub/gradebook/internal/domain/student"
	"github.com/aula-hub/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOAD DATASET COMMAND
// Reads an uploaded table (or the sample), validates it and makes it the
// session's dataset. A rejected table leaves the previous dataset in place.
// ══════════════════════════════════════════════════════════════════════════════

// LoadDatasetCommand contains the data needed to load a dataset.
type LoadDatasetCommand struct {
	SessionID string

	// Filename selects the input format by extension.
	Filename string
	File     io.Reader

	// Sample loads the built-in demonstration table instead of File.
	Sample bool
}

// Validate validates the command.
func (c LoadDatasetCommand) Validate() error {
	if c.Sample {
		return nil
	}
	if c.File == nil || c.Filename == "" {
		return shared.NewDomainError("dataset", "Load", shared.ErrInvalidInput, "a file or the sample dataset is required")
	}
	return nil
}

func (c LoadDatasetCommand) source() string {
	if c.Sample {
		return session.SampleSource
	}
	return c.Filename
}

// LoadDatasetResult describes the accepted dataset.
type LoadDatasetResult struct {
	Session *session.Session
	Dataset *session.Dataset
}

// TableReader turns a file into a raw table.
type TableReader interface {
	ReadTable(r io.Reader, filename string) (student.RawTable, error)
}

// TableReaderFunc adapts a function to TableReader.
type TableReaderFunc func(r io.Reader, filename string) (student.RawTable, error)

func (f TableReaderFunc) ReadTable(r io.Reader, filename string) (student.RawTable, error) {
	return f(r, filename)
}

// LoadDatasetConfig contains configuration for the handler.
type LoadDatasetConfig struct {
	TTL    time.Duration
	Now    func() time.Time
	Logger *logger.Logger
}

// LoadDatasetHandler handles the LoadDatasetCommand.
type LoadDatasetHandler struct {
	store     session.Store
	reader    TableReader
	publisher shared.EventPublisher
	ttl       time.Duration
	now       func() time.Time
	log       *logger.Logger
}

// NewLoadDatasetHandler creates a new LoadDatasetHandler.
func NewLoadDatasetHandler(store session.Store, reader TableReader, publisher shared.EventPublisher, cfg LoadDatasetConfig) *LoadDatasetHandler {
	if cfg.TTL <= 0 {
		cfg.TTL = session.DefaultTTL
	}
	return &LoadDatasetHandler{
		store:     store,
		reader:    reader,
		publisher: orNop(publisher),
		ttl:       cfg.TTL,
		now:       orNow(cfg.Now),
		log:       orNopLogger(cfg.Logger),
	}
}

// Handle executes the load.
func (h *LoadDatasetHandler) Handle(ctx context.Context, cmd LoadDatasetCommand) (*LoadDatasetResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("load_dataset: validation failed: %w", err)
	}

	sess, err := loadSession(ctx, h.store, cmd.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load_dataset: %w", err)
	}
	log := h.log.With(logger.SessionID(sess.ID), logger.String("source", cmd.source()))

	report, err := h.validate(sess, cmd)
	if err != nil {
		log.Warn("dataset rejected", logger.Err(err))
		publish(h.publisher, h.log, shared.NewDatasetRejectedEvent(sess.ID, cmd.source(), err.Error(), h.now()))
		return nil, fmt.Errorf("load_dataset: %w", err)
	}

	now := h.now()
	ds := session.NewDataset(cmd.source(), report, now)
	sess.ReplaceDataset(ds, now)
	sess.Touch(h.ttl, now)
	if err := h.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("load_dataset: save: %w", err)
	}

	if n := ds.ClampedScores + ds.ClampedAttendance; n > 0 {
		log.Debug("values clamped into range",
			logger.Int("scores", ds.ClampedScores),
			logger.Int("attendance", ds.ClampedAttendance),
		)
	}
	if ds.LevelFallbacks > 0 {
		log.Warn("records took the session level",
			logger.Int("records", ds.LevelFallbacks),
			logger.String("session_level", string(sess.Settings.Thresholds.SessionLevel)),
		)
		for _, r := range ds.Records {
			if r.LevelFallback() {
				log.Debug("level fallback applied", logger.Row(r.Row), logger.Student(r.Name))
			}
		}
	}
	log.Info("dataset loaded", logger.Int("records", len(ds.Records)), logger.Int("skipped_rows", ds.SkippedRows))

	publish(h.publisher, h.log, shared.NewDatasetLoadedEvent(
		sess.ID, ds.Source, len(ds.Records), ds.ClampedScores+ds.ClampedAttendance, ds.LevelFallbacks, now))

	return &LoadDatasetResult{Session: sess, Dataset: ds}, nil
}

func (h *LoadDatasetHandler) validate(sess *session.Session, cmd LoadDatasetCommand) (*student.ValidationReport, error) {
	var table student.RawTable
	if cmd.Sample {
		table = student.SampleTable()
	} else {
		if h.reader == nil {
			return nil, errors.New("no table reader configured")
		}
		var err error
		if table, err = h.reader.ReadTable(cmd.File, cmd.Filename); err != nil {
			return nil, err
		}
	}

	report, err := student.Validate(table, student.ValidateOptions{
		SessionLevel: sess.Settings.Thresholds.SessionLevel,
	})
	if err != nil {
		return nil, err
	}
	if len(report.Records) == 0 {
		return nil, shared.ErrEmptyDataset
	}
	return report, nil
}
