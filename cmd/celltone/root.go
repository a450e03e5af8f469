package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"go-celltone/config"
	"go-celltone/debug"
	"go-celltone/midi"
	"go-celltone/parser"
	"go-celltone/sequencer"
	"go-celltone/theme"
	"go-celltone/tui"
	"go-celltone/watch"
	"go-celltone/widgets"
)

type options struct {
	cfg        *config.Config
	configPath string
	out        string
	iterations int
}

func newRootCmd() *cobra.Command {
	o := &options{cfg: config.DefaultConfig()}

	cmd := &cobra.Command{
		Use:   "celltone [file]",
		Short: "Generative music from parts rewritten by rules",
		Long: `celltone plays a program of parts and rules. Each iteration plays a
window of every part, then rewrites the parts by the rules and moves on.

Reads the program from file, or stdin when file is omitted or "-".`,
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.loadConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return o.run(cmd, path)
		},
	}

	f := cmd.Flags()
	f.CountVarP(&o.cfg.Verbosity, "verbose", "v", "print parts (-v), fired rules (-vv) and marked slots (-vvv)")
	f.StringVar(&o.cfg.Output.Port, "port", "", "MIDI output port name or part of it")
	f.StringVarP(&o.out, "out", "o", "", "write a MIDI file instead of playing")
	f.IntVarP(&o.iterations, "iterations", "n", 0, "stop after this many iterations")
	f.BoolVar(&o.cfg.UI.TUI, "tui", false, "run the terminal UI")
	f.BoolVarP(&o.cfg.Watch, "watch", "w", false, "reload the program when the file changes")
	f.StringVar(&o.cfg.MetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	f.BoolVar(&o.cfg.Debug, "debug", false, "write a debug log to ~/.config/go-celltone/debug.log")
	cmd.PersistentFlags().StringVar(&o.configPath, "config", "", "settings file (default ~/.config/go-celltone/config.yaml)")

	cmd.AddCommand(newPortsCmd())
	return cmd
}

// loadConfig reads the settings file, then lets flags set on the command
// line override it.
func (o *options) loadConfig(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFrom(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	f := cmd.Flags()
	if f.Changed("verbose") {
		cfg.Verbosity = min(o.cfg.Verbosity, 3)
	}
	if f.Changed("port") {
		cfg.Output.Port = o.cfg.Output.Port
	}
	if f.Changed("tui") {
		cfg.UI.TUI = o.cfg.UI.TUI
	}
	if f.Changed("watch") {
		cfg.Watch = o.cfg.Watch
	}
	if f.Changed("metrics-addr") {
		cfg.MetricsAddr = o.cfg.MetricsAddr
	}
	if f.Changed("debug") {
		cfg.Debug = o.cfg.Debug
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

func readSource(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func (o *options) run(cmd *cobra.Command, path string) error {
	if o.cfg.Debug {
		if err := debug.Enable(""); err != nil {
			return err
		}
		defer debug.Disable()
	}
	if o.out != "" && o.iterations <= 0 {
		return errors.New("--out needs --iterations")
	}
	if o.cfg.Watch && path == "-" {
		return errors.New("--watch needs a file")
	}

	logOut := cmd.ErrOrStderr()
	if o.cfg.UI.TUI {
		logOut = io.Discard
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(logOut, nil)))

	src, err := readSource(cmd, path)
	if err != nil {
		return err
	}
	prog, err := parser.Parse(string(src))
	if err != nil {
		return err
	}
	engine, err := sequencer.NewEngine(prog)
	if err != nil {
		return err
	}

	// before any port or watcher is opened
	var th *theme.Theme
	if o.cfg.UI.TUI && o.out == "" {
		palette, err := theme.Load(o.cfg.UI.Palette)
		if err != nil {
			return err
		}
		th = theme.New(palette)
	}

	reg := prometheus.NewRegistry()
	metrics := sequencer.NewMetrics(reg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if o.out != "" {
		return o.bounce(ctx, cmd, engine, metrics)
	}
	return o.play(ctx, cmd, path, engine, th, reg, metrics)
}

func (o *options) verbose(cmd *cobra.Command, mgr *sequencer.Manager) {
	if o.cfg.Verbosity == 0 || o.cfg.UI.TUI {
		return
	}
	v := widgets.Verbose{Level: o.cfg.Verbosity, Width: widgets.TermWidth()}
	out := cmd.OutOrStdout()
	mgr.SetOnFrame(func(f sequencer.Frame) {
		fmt.Fprint(out, v.Frame(f))
	})
}

// bounce writes the requested iterations to a MIDI file.
func (o *options) bounce(ctx context.Context, cmd *cobra.Command, engine *sequencer.Engine, metrics *sequencer.Metrics) error {
	cfg := engine.Config()
	w := midi.NewWriter(cfg.Tempo(), cfg.Subdivision())
	mgr := sequencer.NewManager(engine, w)
	mgr.SetMetrics(metrics)
	mgr.SetOnWarn(warnNote)
	o.verbose(cmd, mgr)

	if err := ignoreCanceled(mgr.Bounce(ctx, o.iterations)); err != nil {
		return err
	}
	if err := w.WriteFile(o.out); err != nil {
		return err
	}
	slog.Info("wrote MIDI file", "path", o.out, "iterations", o.iterations, "ticks", w.Ticks())
	return nil
}

func warnNote(n midi.Note, err error) {
	slog.Warn("note dropped", "pitch", n.Pitch, "channel", n.Channel, "velocity", n.Velocity, "error", err)
}

// play runs the realtime loop with whatever the settings ask for alongside
// it. The first of them to fail, or the TUI quitting, ends all of them.
func (o *options) play(ctx context.Context, cmd *cobra.Command, path string, engine *sequencer.Engine, th *theme.Theme, reg *prometheus.Registry, metrics *sequencer.Metrics) error {
	send, portName, err := midi.OpenSender(o.cfg.Output.Port)
	if err != nil {
		return err
	}
	cfg := engine.Config()
	player := midi.NewPlayer(send, cfg.Tempo(), cfg.Subdivision())
	defer func() {
		if err := player.Silence(); err != nil {
			slog.Warn("silence failed", "error", err)
		}
	}()
	slog.Info("playing", "port", portName)

	mgr := sequencer.NewManager(engine, player)
	mgr.SetMetrics(metrics)
	mgr.SetOnWarn(warnNote)
	o.verbose(cmd, mgr)

	var program *tea.Program
	status := func(text string, isErr bool) {
		if program != nil {
			program.Send(tui.StatusMsg{Text: text, Err: isErr})
		}
	}

	var watcher *watch.Watcher
	if o.cfg.Watch {
		watcher, err = watch.New(path, func(src []byte) {
			prog, err := parser.Parse(string(src))
			if err == nil {
				err = mgr.Reload(prog)
			}
			if err != nil {
				slog.Error("reload failed", "path", path, "error", err)
				status(err.Error(), true)
				return
			}
			slog.Info("reloaded", "path", path)
			status("reloaded "+filepath.Base(path), false)
		})
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if th != nil {
		name := "stdin"
		if path != "-" {
			name = filepath.Base(path)
		}
		program = tea.NewProgram(tui.NewModel(mgr, th, name),
			tea.WithAltScreen(), tea.WithContext(gctx))
		g.Go(func() error {
			defer cancel()
			if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return err
			}
			return nil
		})
	}

	if o.iterations > 0 && th == nil {
		g.Go(func() error {
			defer cancel()
			return ignoreCanceled(mgr.Bounce(gctx, o.iterations))
		})
	} else {
		g.Go(func() error { return mgr.Run(gctx) })
		mgr.Play()
	}

	if watcher != nil {
		g.Go(func() error { return watcher.Start(gctx) })
	}

	if o.cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              o.cfg.MetricsAddr,
			Handler:           metricsHandler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			slog.Info("serving metrics", "addr", o.cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdown, done := context.WithTimeout(context.Background(), time.Second)
			defer done()
			return srv.Shutdown(shutdown)
		})
	}

	return g.Wait()
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}

// ignoreCanceled treats an interrupt as a normal end.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
