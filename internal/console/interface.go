package console

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"nano-agent/internal/config"
	"nano-agent/internal/entity"
	"nano-agent/internal/usecase"
	"nano-agent/pkg/logg"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var errExit = errors.New("exit")

// Options come from the command line. An empty Goal starts the interactive
// prompt; otherwise the goal runs once and the application exits.
type Options struct {
	Goal     string
	StartURL string
	Overlays *bool
}

type Interface struct {
	logger     *zap.Logger
	usecase    *usecase.Service
	terminal   *Terminal
	shutdowner fx.Shutdowner
	options    Options
	startURL   string
	in         io.Reader

	ctx    context.Context
	cancel context.CancelFunc

	overlays atomic.Bool
	runs     sync.WaitGroup
	stopOnce sync.Once
}

type Params struct {
	fx.In

	Config     *config.Config
	Logger     *zap.Logger
	Usecase    *usecase.Service
	Terminal   *Terminal
	Shutdowner fx.Shutdowner
	Options    Options
}

func NewInterface(params Params) *Interface {
	return newInterface(params, os.Stdin)
}

func newInterface(params Params, in io.Reader) *Interface {
	ctx, cancel := context.WithCancel(context.Background())

	i := &Interface{
		logger:     params.Logger.With(zap.String(logg.Layer, "Console")),
		usecase:    params.Usecase,
		terminal:   params.Terminal,
		shutdowner: params.Shutdowner,
		options:    params.Options,
		startURL:   params.Options.StartURL,
		in:         in,
		ctx:        ctx,
		cancel:     cancel,
	}

	if i.startURL == "" {
		i.startURL = params.Config.AgentConfig.StartURL
	}

	overlays := params.Config.AgentConfig.ShowOverlays
	if params.Options.Overlays != nil {
		overlays = *params.Options.Overlays
	}

	i.overlays.Store(overlays)

	return i
}

// Start reads operator input until stdin closes or exit is typed. In
// single-goal mode the goal starts immediately and the application shuts down
// when it ends.
func (i *Interface) Start() error {
	interactive := i.options.Goal == ""

	if interactive {
		i.printBanner()
		i.printHelp()
	} else {
		opts := i.nextOptions()
		i.runs.Add(1)

		go func() {
			defer i.runs.Done()

			code := 0
			if run := i.execute(i.options.Goal, opts); run == nil || run.State == entity.RunStateFailed {
				code = 1
			}

			i.shutdown(code)
		}()
	}

	scanner := bufio.NewScanner(i.in)
	defer i.terminal.CloseInput()

	for {
		if interactive && !i.usecase.Agent.Active() {
			i.terminal.Printf("\n> ")
		}

		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())

		if i.terminal.Route(line) || line == "" {
			continue
		}

		if err := i.handleCommand(line); err != nil {
			if errors.Is(err, errExit) {
				i.shutdown(0)

				return nil
			}

			i.logger.Error("Command error", zap.Error(err))
			i.terminal.Printf("Error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		i.logger.Warn("Input closed with error", zap.Error(err))
	}

	if interactive {
		i.shutdown(0)
	}

	return nil
}

// Stop cancels the active run and waits for it to return or ctx to end.
func (i *Interface) Stop(ctx context.Context) error {
	i.stopOnce.Do(func() {
		i.logger.Info("Stopping console interface...")
		i.usecase.Agent.Stop()
		i.cancel()
	})

	done := make(chan struct{})

	go func() {
		i.runs.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (i *Interface) handleCommand(input string) error {
	fields := strings.Fields(input)
	cmd := strings.ToLower(fields[0])

	switch {
	case cmd == "help" || cmd == "h":
		i.printHelp()
	case cmd == "exit" || cmd == "quit" || cmd == "q":
		i.terminal.Printf("Shutting down...\n")

		return errExit
	case cmd == "stop" && len(fields) == 1:
		if !i.usecase.Agent.Active() {
			i.terminal.Printf("No run in progress\n")

			return nil
		}

		i.usecase.Agent.Stop()
		i.terminal.Printf("🛑 Stop requested, the run ends at its next step\n")
	case cmd == "overlays" && len(fields) == 2:
		switch strings.ToLower(fields[1]) {
		case "on":
			i.overlays.Store(true)
		case "off":
			i.overlays.Store(false)
		default:
			return errors.New("usage: overlays on|off")
		}

		i.terminal.Printf("Overlays %s\n", strings.ToLower(fields[1]))
	case cmd == "open" && len(fields) == 2:
		if i.usecase.Agent.Active() {
			return errors.New("a run is in progress, stop it first")
		}

		if err := i.usecase.Browser.Navigate(i.ctx, fields[1]); err != nil {
			return err
		}

		i.terminal.Printf("🌐 Opened %s\n", fields[1])
	default:
		if i.usecase.Agent.Active() {
			return errors.New("a run is in progress, type stop to end it")
		}

		opts := i.nextOptions()
		i.runs.Add(1)

		go func() {
			defer i.runs.Done()

			i.execute(input, opts)
			i.terminal.Printf("\n> ")
		}()
	}

	return nil
}

// nextOptions is called from the input goroutine only. The start URL
// applies to the first run.
func (i *Interface) nextOptions() entity.RunOptions {
	opts := entity.RunOptions{ShowOverlays: i.overlays.Load(), StartURL: i.startURL}
	i.startURL = ""

	return opts
}

func (i *Interface) execute(goal string, opts entity.RunOptions) *entity.Run {
	i.terminal.Printf("\n🤖 Starting: %s\n", goal)
	i.terminal.Printf("%s\n", strings.Repeat("─", 50))

	run, err := i.usecase.Agent.Execute(i.ctx, goal, opts)
	if run == nil {
		i.terminal.Printf("❌ Could not start: %v\n", err)

		return nil
	}

	i.terminal.Printf("%s\n", strings.Repeat("─", 50))

	switch run.State {
	case entity.RunStateFinished:
		i.terminal.Printf("✅ Finished in %d steps\n", run.Steps)
	case entity.RunStateBudgetExhausted:
		i.terminal.Printf("⌛ Stopped after %d steps without finishing\n", run.Steps)
	case entity.RunStateCancelled:
		i.terminal.Printf("🛑 Cancelled after %d steps\n", run.Steps)
	default:
		i.terminal.Printf("❌ Failed (%s): %s\n", run.ErrorCode, run.Error)
	}

	for _, snippet := range run.Extracted {
		i.terminal.Printf("   • %s\n", snippet)
	}

	return run
}

func (i *Interface) shutdown(code int) {
	if err := i.shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
		i.logger.Warn("Shutdown request failed", zap.Error(err))
	}
}

func (i *Interface) printBanner() {
	i.terminal.Printf(`
╔═══════════════════════════════════════════════╗
║                                               ║
║         🤖  Nano Browser Agent  🌐            ║
║                                               ║
╚═══════════════════════════════════════════════╝
`)
}

func (i *Interface) printHelp() {
	i.terminal.Printf(`
Available commands:
  help, h            - Show this help message
  stop               - Stop the current run at its next step
  overlays on|off    - Toggle element badges drawn during scans
  open <url>         - Navigate the browser
  exit, quit, q      - Exit the application

Anything else is treated as a goal, for example:
  - click the login button
  - search for running shoes and open the first result
  - what do the plans on this page cost
`)
}
