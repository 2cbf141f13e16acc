package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kingrea/robot-behaviors/internal/behavior"
	"github.com/kingrea/robot-behaviors/internal/engine"
	"github.com/kingrea/robot-behaviors/internal/system"
	"github.com/kingrea/robot-behaviors/internal/telemetry"
	"github.com/kingrea/robot-behaviors/internal/tui"
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	var (
		ticks       uint64
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Tick the behavior system against the simulated robot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := openProject(flags)
			if err != nil {
				return err
			}
			defer p.close()
			d, err := newDaemon(p)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("metrics") {
				metricsAddr = p.cfg.Project.MetricsAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := d.run(ctx, ticks, metricsAddr); err != nil {
				return err
			}
			printState(cmd.OutOrStdout(), d.engine.Manager().Snapshot())
			return nil
		},
	}
	cmd.Flags().Uint64Var(&ticks, "ticks", 0, "stop after this many ticks (0 runs until interrupted)")
	cmd.Flags().StringVar(&metricsAddr, "metrics", "", "serve Prometheus metrics on this address (overrides config)")
	return cmd
}

func newMonitorCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Run the behavior system with a live terminal monitor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := openProject(flags)
			if err != nil {
				return err
			}
			defer p.close()
			d, err := newDaemon(p)
			if err != nil {
				return err
			}

			transitions := d.router.Subscribe(telemetry.KindTransition)
			defer transitions.Close()
			results := d.router.Subscribe(telemetry.KindResult)
			defer results.Close()
			failures := d.router.Subscribe(telemetry.KindInitFailure)
			defer failures.Close()
			activities := d.router.Subscribe(telemetry.KindActivity)
			defer activities.Close()

			app, err := tui.NewApp(d.engine.Manager(),
				tui.WithLogger(p.logger.Named("monitor")),
				tui.WithEvents(transitions.Events, results.Events, failures.Events, activities.Events),
			)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			runErr := make(chan error, 1)
			go func() { runErr <- d.run(ctx, 0, p.cfg.Project.MetricsAddr) }()

			if _, err := tea.NewProgram(app, tea.WithAltScreen()).Run(); err != nil {
				cancel()
				<-runErr
				return fmt.Errorf("run monitor: %w", err)
			}
			cancel()
			return <-runErr
		},
	}
}

func newValidateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the behavior config and plugins and print each activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := openProject(flags)
			if err != nil {
				return err
			}
			defer p.close()
			rc, files, err := p.robotConfig()
			if err != nil {
				return err
			}
			e, err := engine.Build(rc, engine.WithLogger(p.logger.Logger))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "OK: %d behaviors, %d activities, %d plugins\n",
				e.Container().Len(), len(rc.Activities), len(files))
			sets := e.EnabledSets()
			for _, ac := range rc.Activities {
				set, ok := sets[ac.ID]
				if !ok {
					fmt.Fprintf(out, "- %s (%s): every behavior on request\n", ac.ID, ac.Kind())
					continue
				}
				fmt.Fprintf(out, "- %s (%s): %s\n", ac.ID, ac.Kind(), formatEnabled(set))
			}
			return nil
		},
	}
}

func newStatusCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the last saved manager snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := openProject(flags)
			if err != nil {
				return err
			}
			defer p.close()
			state, err := system.NewRepository(p.cfg.StateDir()).Load()
			if errors.Is(err, system.ErrStateNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "No snapshot yet. Start the daemon with `behaviord run`.")
				return nil
			}
			if err != nil {
				return err
			}
			printState(cmd.OutOrStdout(), state)
			return nil
		},
	}
}

func newUseActivityCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "use-activity <id>",
		Short: "Set the activity entered on startup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(flags)
			if err != nil {
				return err
			}
			defer p.close()
			rc, _, err := p.robotConfig()
			if err != nil {
				return err
			}
			id := strings.TrimSpace(args[0])
			if _, ok := rc.Activity(id); !ok {
				return fmt.Errorf("unknown activity %q", id)
			}
			if err := p.cfg.SetDefaultActivity(id); err != nil {
				return err
			}
			p.logger.Info("startup activity changed", zap.String("activity", id))
			fmt.Fprintf(cmd.OutOrStdout(), "Startup activity set to %s\n", id)
			return nil
		},
	}
}

func printState(out io.Writer, s system.State) {
	current := "none"
	if s.Running() {
		current = fmt.Sprintf("%s (%s)", s.Current, s.CurrentClass)
	}
	fmt.Fprintf(out, "Tick:     %d\n", s.Tick)
	fmt.Fprintf(out, "Enabled:  %t\n", s.Enabled)
	fmt.Fprintf(out, "Activity: %s\n", s.Activity)
	fmt.Fprintf(out, "Behavior: %s\n", current)
	if !s.Since.IsZero() && s.Running() {
		fmt.Fprintf(out, "Since:    %s\n", s.Since.Format(time.RFC3339))
	}
	if len(s.Helpers) > 0 {
		fmt.Fprintf(out, "Helpers:  %s\n", strings.Join(s.Helpers, " > "))
	}
	if !s.TakenAt.IsZero() {
		fmt.Fprintf(out, "Taken:    %s\n", s.TakenAt.Format(time.RFC3339))
	}
}

func formatEnabled(set map[behavior.ID]bool) string {
	if len(set) == 0 {
		return "no behaviors"
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if set[behavior.ID(id)] {
			parts = append(parts, id)
		} else {
			parts = append(parts, id+" (disabled)")
		}
	}
	return strings.Join(parts, ", ")
}
