package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aula-hub/gradebook/config"
	"github.com/aula-hub/gradebook/internal/application/command"
	"github.com/aula-hub/gradebook/internal/domain/feedback"
	"github.com/aula-hub/gradebook/internal/domain/session"
)

var feedbackFlags struct {
	inputFlags
	student  string
	provider string
	model    string
	apiKey   string
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Generate feedback for one student",
	Long: `Ask the configured provider for narrative feedback on one student. When the
provider is disabled, unreachable or has no credential, the basic analysis is
printed instead.

Without --api-key the server credential from the configuration is used
(feedback.<provider>_api_key, e.g. GRADEBOOK_FEEDBACK_ANTHROPIC_API_KEY). Keys
are never written anywhere.

Examples:
  gradebook feedback --sample --student "Luis García" --provider none
  gradebook feedback --input grades.csv --student S-014 --provider anthropic --api-key "$KEY"`,
	Args: cobra.NoArgs,
	RunE: runFeedback,
}

func init() {
	feedbackFlags.register(feedbackCmd)
	feedbackCmd.Flags().StringVarP(&feedbackFlags.student, "student", "s", "", "student name or ID")
	feedbackCmd.Flags().StringVar(&feedbackFlags.provider, "provider", "", "anthropic, huggingface, gemini or none")
	feedbackCmd.Flags().StringVar(&feedbackFlags.model, "model", "", "provider model")
	feedbackCmd.Flags().StringVar(&feedbackFlags.apiKey, "api-key", "", "provider credential")
	_ = feedbackCmd.MarkFlagRequired("student")
}

func runFeedback(cmd *cobra.Command, _ []string) error {
	provider := feedback.Provider(strings.ToLower(feedbackFlags.provider))
	if provider != "" && !provider.IsValid() {
		return fmt.Errorf("unknown provider %q", feedbackFlags.provider)
	}

	settings := func(cfg *config.Config) *session.Settings {
		s := &session.Settings{
			Thresholds: cfg.Grading.Thresholds(),
			Feedback: session.FeedbackSettings{
				Provider:         feedback.Provider(cfg.Feedback.Provider),
				Model:            cfg.Feedback.Model,
				FallbackProvider: feedback.Provider(cfg.Feedback.FallbackProvider),
				FallbackModel:    cfg.Feedback.FallbackModel,
			},
		}
		if provider != "" {
			s.Feedback.Provider = provider
			s.Feedback.Model = feedbackFlags.model
		}
		return s
	}

	ctx := cmd.Context()
	s, err := openOffline(ctx, feedbackFlags.inputFlags, settings)
	if err != nil {
		return err
	}
	defer s.Close()

	// An empty key falls back to the configured server credential.
	res, err := s.requestFeedback.Handle(ctx, command.RequestFeedbackCommand{
		SessionID: s.id,
		Student:   feedbackFlags.student,
		APIKey:    feedbackFlags.apiKey,
	})
	if err != nil {
		return err
	}
	printOutcome(cmd.OutOrStdout(), res)
	return nil
}

func printOutcome(w io.Writer, res *command.RequestFeedbackResult) {
	r := res.Record
	fmt.Fprintf(w, "%s  average %.1f (%s)  attendance %.0f%%  %s\n",
		r.Name, r.Average, r.Letter, r.Attendance, strings.ToUpper(string(r.Status)))

	out := res.Outcome
	if out.Source == feedback.SourceAI {
		fmt.Fprintf(w, "\n[%s]\n%s\n", out.Provider, out.Text)
		return
	}

	fmt.Fprintln(w, "\n[basic analysis]")
	if fb := out.Fallback; fb != nil {
		fmt.Fprintln(w, fb.ScoreStatement)
		fmt.Fprintln(w, fb.AttendanceStatement)
		for _, rec := range fb.Recommendations {
			fmt.Fprintf(w, "  - %s\n", rec)
		}
		return
	}
	fmt.Fprintln(w, out.Text)
}
