// unifi-token opens a controller session and prints the TOKEN cookie
// and CSRF token. It exists for debugging controller firmware quirks;
// it needs only UNIFI_CONTROLLER, UNIFI_USER and UNIFI_PASS.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/nugget/unifi-led/internal/config"
	"github.com/nugget/unifi-led/internal/unifi"
)

var errUsage = errors.New("usage")

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

func run(ctx context.Context, stdout io.Writer, args []string) error {
	if len(args) != 0 {
		fmt.Fprintf(stdout, "Usage: %s\n", os.Args[0])
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := config.NewLogger(stdout, level).With("run_id", uuid.NewString())

	session, err := unifi.Login(ctx,
		unifi.Endpoint{BaseURL: cfg.Controller, VerifyTLS: bool(cfg.VerifySSL)},
		unifi.Credentials{Username: cfg.Username, Password: cfg.Password},
		logger,
	)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "=== UniFi Session Info ===")
	fmt.Fprintf(stdout, "Controller: %s\n", session.BaseURL())
	fmt.Fprintf(stdout, "VERIFY_SSL: %t\n", bool(cfg.VerifySSL))
	fmt.Fprintf(stdout, "TOKEN:      %s\n", session.Token())
	fmt.Fprintf(stdout, "CSRF:       %s\n", session.CSRF())
	return nil
}
