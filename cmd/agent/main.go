package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"nano-agent/internal/bootstrap"
	"nano-agent/internal/console"

	"github.com/spf13/cobra"
)

const stopTimeout = 15 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts console.Options

	cmd := &cobra.Command{
		Use:   "nano-agent",
		Short: "Drive a browser towards a natural-language goal",
		Long: `nano-agent perceives the current page, asks a reasoning model for the next
action, performs it and waits for the page to settle, one step at a time.

Without --goal an interactive prompt is started.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("overlays") {
				overlays, _ := cmd.Flags().GetBool("overlays")
				opts.Overlays = &overlays
			}

			code, err := run(cmd.Context(), opts)
			if err != nil {
				return err
			}

			if code != 0 {
				os.Exit(code)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Goal, "goal", "g", "", "run a single goal and exit")
	cmd.Flags().StringVarP(&opts.StartURL, "url", "u", "", "page to open before the first step")
	cmd.Flags().Bool("overlays", true, "draw index badges over perceived elements")

	return cmd
}

func run(ctx context.Context, opts console.Options) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	app := bootstrap.NewApp(opts)

	if err := app.Start(ctx); err != nil {
		return 1, fmt.Errorf("start: %w", err)
	}

	sig := <-app.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if err := app.Stop(stopCtx); err != nil {
		return 1, fmt.Errorf("stop: %w", err)
	}

	return sig.ExitCode, nil
}
