package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/urfave/cli"

	"quiethours/internal/app"
)

var runCommand = cli.Command{
	Name:   "run",
	Usage:  "run the daemon (config hot reload, reminder sweeps)",
	Action: runDaemon,
}

func runDaemon(*cli.Context) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.NewApp(cfgPath)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		stopCtx, cancelStop := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelStop()
		_ = a.Stop(stopCtx, app.StopFatalError)
		return err
	}

	// Under systemd Type=notify; a no-op elsewhere.
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	select {
	case <-ctx.Done():
	case <-a.Done():
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	reason := app.StopSIGTERM
	if a.Err() != nil {
		reason = app.StopFatalError
	}
	stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStop()
	_ = a.Stop(stopCtx, reason)

	if err := a.Err(); err != nil {
		return fmt.Errorf("exited: %w", err)
	}
	return nil
}

var remindAt string

var remindCommand = cli.Command{
	Name:  "remind",
	Usage: "run one reminder sweep and exit",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:        "at",
			Usage:       "reference instant in RFC3339 (default: now)",
			Destination: &remindAt,
		},
	},
	Action: remindOnce,
}

func remindOnce(*cli.Context) error {
	now := time.Now()
	if remindAt != "" {
		t, err := time.Parse(time.RFC3339, remindAt)
		if err != nil {
			return fmt.Errorf("--at: %w", err)
		}
		now = t
	}

	a, err := app.NewApp(cfgPath)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rep, err := a.Reminders().Run(ctx, now)
	if err != nil {
		return err
	}

	fmt.Printf("window [%s, %s): processed=%d sent=%d skipped=%d failed=%d in %s\n",
		rep.From.Format(time.RFC3339), rep.To.Format(time.RFC3339),
		rep.Processed, rep.Sent, rep.Skipped, rep.Failed, rep.Took.Round(time.Millisecond))
	for _, f := range rep.Failures {
		fmt.Printf("  failed %s (owner %s) at %s: %v\n", f.BlockID, f.OwnerID, f.Stage, f.Err)
	}
	if rep.Failed > 0 {
		return cli.NewExitError("", 1)
	}
	return nil
}
