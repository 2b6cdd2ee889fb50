// unifi-led switches the LED of a device managed by a UniFi Network
// controller on or off.
//
// Usage:
//
//	unifi-led led on
//	unifi-led led off
//
// Settings come from the environment (UNIFI_CONTROLLER, UNIFI_USER,
// UNIFI_PASS, UNIFI_DEVICE_ID, and optionally UNIFI_SITE,
// UNIFI_VERIFY_SSL, UNIFI_PAYLOAD_DIR, UNIFI_LOG_LEVEL, UNIFI_CONFIG).
// The device documents led_on.json and led_off.json are read from the
// directory holding the binary unless UNIFI_PAYLOAD_DIR says otherwise,
// so cron jobs behave the same as interactive runs:
//
//	0 23 * * * UNIFI_USER=apiuser UNIFI_PASS=secret /opt/unifi-led/unifi-led led off
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/nugget/unifi-led/internal/buildinfo"
	"github.com/nugget/unifi-led/internal/config"
	"github.com/nugget/unifi-led/internal/led"
	"github.com/nugget/unifi-led/internal/unifi"
)

// errUsage is returned after the usage text has been printed.
var errUsage = errors.New("usage")

// main is intentionally minimal. It builds the OS-level environment and
// delegates to [run] so the whole invocation can be driven from tests.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx, os.Stdout, os.Args[1:])
	stop()
	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		}
		os.Exit(1)
	}
}

// run performs one LED update. Progress logs go to stdout; the caller
// reports the returned error.
func run(ctx context.Context, stdout io.Writer, args []string) error {
	if len(args) != 2 || args[0] != "led" {
		printUsage(stdout)
		return errUsage
	}
	mode, err := led.ParseMode(args[1])
	if err != nil {
		printUsage(stdout)
		return errUsage
	}

	// Configuration problems must surface before any network call.
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireDevice(); err != nil {
		return err
	}

	logger, err := newLogger(stdout, cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.Info("starting", "build", buildinfo.String())

	dir := cfg.PayloadDir
	if dir == "" {
		if dir, err = led.ExecutableDir(); err != nil {
			return err
		}
	}

	session, err := unifi.Login(ctx,
		unifi.Endpoint{BaseURL: cfg.Controller, VerifyTLS: bool(cfg.VerifySSL)},
		unifi.Credentials{Username: cfg.Username, Password: cfg.Password},
		logger,
	)
	if err != nil {
		return err
	}

	logger.Info("updating device LED",
		"mode", mode,
		"controller", cfg.Controller,
		"site", cfg.Site,
		"device_id", cfg.DeviceID,
	)

	doc, err := led.Load(mode, dir)
	if err != nil {
		return err
	}

	if err := session.PutDevice(ctx, cfg.Site, cfg.DeviceID, doc); err != nil {
		return err
	}

	logger.Info("done")
	return nil
}

// newLogger builds the text logger for one invocation. Every record
// carries a run_id so overlapping cron runs can be told apart.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := config.ParseLogLevel(level)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return config.NewLogger(w, lvl).With("run_id", id.String()), nil
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s led on|off\n", os.Args[0])
}
