package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aula-hub/gradebook/config"
	"github.com/aula-hub/gradebook/internal/application/command"
	"github.com/aula-hub/gradebook/internal/domain/session"
	"github.com/aula-hub/gradebook/pkg/logger"
)

// inputFlags selects the table an offline subcommand works on.
type inputFlags struct {
	input   string
	sample  bool
	verbose bool
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "CSV, TSV or XLSX file")
	cmd.Flags().BoolVar(&f.sample, "sample", false, "use the built-in sample dataset")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "log to stdout")
	cmd.MarkFlagsMutuallyExclusive("input", "sample")
	cmd.MarkFlagsOneRequired("input", "sample")
}

// offlineSession holds an in-memory app with one loaded session.
type offlineSession struct {
	*app
	id string
}

// openOffline builds an in-memory app, creates a session and loads the
// selected table into it. settings may be nil for the configured defaults.
func openOffline(ctx context.Context, in inputFlags, settings func(*config.Config) *session.Settings) (*offlineSession, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger.Nop()
	if in.verbose {
		log = newLogger(cfg)
	}

	a, err := newApp(ctx, cfg, log, appOptions{offline: true})
	if err != nil {
		return nil, err
	}

	var s *session.Settings
	if settings != nil {
		s = settings(cfg)
	}
	sess, err := a.createSession.Handle(ctx, command.CreateSessionCommand{Settings: s})
	if err != nil {
		a.Close()
		return nil, err
	}

	load := command.LoadDatasetCommand{SessionID: sess.ID, Sample: in.sample}
	if !in.sample {
		f, err := os.Open(in.input)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open %s: %w", in.input, err)
		}
		defer f.Close()
		load.Filename = filepath.Base(in.input)
		load.File = f
	}

	res, err := a.loadDataset.Handle(ctx, load)
	if err != nil {
		a.Close()
		return nil, err
	}
	if in.verbose {
		log.Info("dataset loaded",
			logger.Int("records", len(res.Dataset.Records)),
			logger.Int("skipped_rows", res.Dataset.SkippedRows),
		)
	}
	return &offlineSession{app: a, id: sess.ID}, nil
}

// writeOutput writes body to path, or to the command's stdout when path is
// empty or "-".
func writeOutput(cmd *cobra.Command, path string, body []byte) error {
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(body)
		return err
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

var errBinaryToTerminal = errors.New("refusing to write a PDF to stdout, use --out")
