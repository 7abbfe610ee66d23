package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lexiqai/interview-engine/internal/app"
	"github.com/lexiqai/interview-engine/internal/config"
	"github.com/lexiqai/interview-engine/internal/interview"
	"github.com/lexiqai/interview-engine/internal/plan"
	"github.com/lexiqai/interview-engine/internal/reasoning"
	"github.com/lexiqai/interview-engine/internal/speech"
	"github.com/lexiqai/interview-engine/internal/store"
)

const practiceHelp = `Type your answers and press enter.
  /code    start a code submission; finish it with a line containing /done
  /end     end the interview and get feedback
`

func newPracticeCmd() *cobra.Command {
	var opts interview.Options

	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Run a text-mode practice interview",
		Long: `Practice runs an interview in the terminal. Replies are printed instead
of spoken and answers are typed instead of recognised.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}).
				Level(zerolog.WarnLevel).
				With().Timestamp().Logger()

			components, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			opts.TickInterval = time.Duration(cfg.TickInterval) * time.Millisecond
			opts.SilenceThreshold = time.Duration(cfg.SilenceThreshold) * time.Second
			opts.WrapupThreshold = time.Duration(cfg.WrapupThreshold) * time.Second
			opts.FeedbackBaseURL = cfg.AppBaseURL

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p := &practice{
				reasoning: components.Reasoning,
				store:     components.Store,
				plans:     components.Plans,
				opts:      opts,
				logger:    logger,
			}
			return p.run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Technology, "technology", "", "Language or stack the interview is about (required)")
	cmd.Flags().StringVar(&opts.Company, "company", "", "Company whose interview style to follow")
	cmd.Flags().StringVar(&opts.Level, "level", "", "Seniority level, e.g. junior or senior")
	cmd.Flags().IntVar(&opts.RequestedMinutes, "minutes", 30, "Interview length in minutes")
	cmd.Flags().StringVar(&opts.UserID, "user", "", "User ID for plan limits and persistence")
	cmd.MarkFlagRequired("technology")
	return cmd
}

// practice is one terminal interview
type practice struct {
	reasoning reasoning.Client
	store     store.Store
	plans     plan.EntitlementLookup
	opts      interview.Options
	logger    zerolog.Logger
}

func (p *practice) run(ctx context.Context, in io.Reader, out io.Writer) error {
	loop := interview.NewLoop()
	go loop.Run()
	defer loop.Close()

	view := newConsoleView(out)
	capture := speech.NewTextCapture(nil)
	defer capture.Close()
	adapter := speech.NewAdapter(capture, nil, nil, p.logger)

	ctrl, err := interview.New(ctx, interview.Deps{
		Reasoning: p.reasoning,
		Speech:    adapter,
		Store:     p.store,
		Plans:     p.plans,
		View:      view,
		Executor:  loop,
		Logger:    p.logger,
	}, p.opts)
	if err != nil {
		return err
	}

	fmt.Fprint(out, practiceHelp)
	ctrl.Start()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	var code []string
	inCode := false

	for {
		select {
		case <-ctrl.Done():
			return nil

		case <-ctx.Done():
			ctrl.End()
			<-ctrl.Done()
			return nil

		case line, ok := <-lines:
			if !ok {
				ctrl.End()
				<-ctrl.Done()
				return nil
			}

			trimmed := strings.TrimSpace(line)
			switch {
			case inCode && trimmed == "/done":
				inCode = false
				ctrl.SubmitCode(strings.Join(code, "\n"))
				code = nil
			case inCode:
				code = append(code, line)
			case trimmed == "/code":
				inCode = true
			case trimmed == "/end":
				ctrl.End()
			case trimmed != "":
				ctrl.SubmitUtterance(trimmed)
			}
		}
	}
}
