// paintctl drives the paint automation worker from the command line: issue a
// single protocol request, probe that the worker starts and shuts down
// cleanly, or rehearse the pointer-based fallback draw path.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wrenware/paintward"
	"github.com/wrenware/paintward/internal/desktop"
	"github.com/wrenware/paintward/internal/locate"
)

type rootOptions struct {
	configPath string
	worker     string
	verbose    bool
	timeout    time.Duration
	config     *runConfig
}

func (r *rootOptions) prepare() error {
	cfg, err := loadConfig(r.configPath)
	if err != nil {
		return err
	}

	if r.worker != "" {
		cfg.Worker = r.worker
	}

	if r.timeout > 0 {
		cfg.Timeout = r.timeout
	}

	r.config = cfg

	return nil
}

func (r *rootOptions) logger() *slog.Logger {
	level := slog.LevelWarn
	if r.verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// startSession resolves the worker binary and opens a session against it.
func (r *rootOptions) startSession(ctx context.Context) (*paintward.Session, error) {
	logger := r.logger()

	workerPath, err := locate.Worker(logger, r.config.Worker)
	if err != nil {
		return nil, err
	}

	return paintward.StartSession(ctx, workerPath,
		paintward.WithLogger(logger),
		paintward.WithArgs(r.config.Args...),
		paintward.WithEnv(r.config.Env),
		paintward.WithDefaultTimeout(r.config.Timeout),
		paintward.WithGracePeriod(r.config.GracePeriod),
	)
}

func main() {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "paintctl",
		Short: "CLI for the paint automation worker",
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("PAINTCTL_CONFIG"), "path to paintctl config file")
	rootCmd.PersistentFlags().StringVar(&opts.worker, "worker", "", "path to the worker binary (overrides config)")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "per-request timeout; defaults to config or 30s")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return opts.prepare()
	}

	rootCmd.AddCommand(newCallCmd(opts))
	rootCmd.AddCommand(newCheckCmd(opts))
	rootCmd.AddCommand(newDrawCmd(opts))

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func newCallCmd(root *rootOptions) *cobra.Command {
	var (
		rawParams string
		id        int64
	)

	callCmd := &cobra.Command{
		Use:   "call <method>",
		Short: "Issue one protocol request and print the response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var params any
			if rawParams != "" {
				if err := json.Unmarshal([]byte(rawParams), &params); err != nil {
					return fmt.Errorf("--params is not valid JSON: %w", err)
				}
			}

			session, err := root.startSession(ctx)
			if err != nil {
				return err
			}
			defer session.Shutdown(ctx)

			// Flag presence, not value, selects the explicit-id path: 0 is a
			// valid identifier.
			var resp *paintward.Response
			if cmd.Flags().Changed("id") {
				resp, err = session.CallWithID(ctx, id, args[0], params, root.config.Timeout)
			} else {
				resp, err = session.Call(ctx, args[0], params)
			}

			if err != nil {
				return err
			}

			if resp.IsError() {
				return resp.Err
			}

			fmt.Println(string(resp.Result))

			return nil
		},
	}

	callCmd.Flags().StringVar(&rawParams, "params", "", "request parameters as raw JSON")
	callCmd.Flags().Int64Var(&id, "id", 0, "explicit request identifier (omit to auto-assign)")

	return callCmd
}

func newCheckCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Spawn the worker, query its version, and shut it down",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			session, err := root.startSession(ctx)
			if err != nil {
				return err
			}

			version, callErr := session.Version(ctx)

			if err := session.Shutdown(ctx); err != nil {
				return err
			}

			if callErr != nil {
				fmt.Printf("worker responded badly: %v\nstderr tail:\n%s\n", callErr, session.StderrTail())

				return callErr
			}

			fmt.Printf("worker ok: version %s (pid was %d)\n", version, session.PID())

			return nil
		},
	}
}

func newDrawCmd(root *rootOptions) *cobra.Command {
	drawCmd := &cobra.Command{
		Use:   "draw",
		Short: "Drive the pointer-based fallback draw path",
	}

	var (
		from   string
		to     string
		dryRun bool
	)

	lineCmd := &cobra.Command{
		Use:   "line",
		Short: "Drag the pointer between two screen coordinates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			start, err := parsePoint(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}

			end, err := parsePoint(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			if !dryRun {
				return fmt.Errorf("no OS automator is built into paintctl; use --dry-run")
			}

			rec := &desktop.Recorder{}

			win, err := rec.FindWindowByProcess(ctx, "mspaint.exe")
			if err != nil {
				return err
			}

			if err := rec.Activate(ctx, win); err != nil {
				return err
			}

			if err := rec.DragPointer(ctx, start, end); err != nil {
				return err
			}

			for _, op := range rec.Ops() {
				fmt.Println(op)
			}

			return nil
		},
	}

	lineCmd.Flags().StringVar(&from, "from", "", "start coordinate as x,y")
	lineCmd.Flags().StringVar(&to, "to", "", "end coordinate as x,y")
	lineCmd.Flags().BoolVar(&dryRun, "dry-run", true, "record pointer operations instead of performing them")
	_ = lineCmd.MarkFlagRequired("from")
	_ = lineCmd.MarkFlagRequired("to")

	drawCmd.AddCommand(lineCmd)

	return drawCmd
}

func parsePoint(s string) (desktop.Point, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return desktop.Point{}, fmt.Errorf("expected x,y, got %q", s)
	}

	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return desktop.Point{}, err
	}

	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return desktop.Point{}, err
	}

	return desktop.Point{X: x, Y: y}, nil
}
