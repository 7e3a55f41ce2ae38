package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ctibridge/internal/gateway/app"
	"ctibridge/internal/gateway/config"

	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		envFiles []string
		httpAddr string
		noStdio  bool
		quiet    bool
	)
	flagSet := pflag.NewFlagSet("ctibridge", pflag.ContinueOnError)
	flagSet.StringSliceVar(&envFiles, "env-file", nil, "env file(s) to load before the process environment (default: .env when present)")
	flagSet.StringVar(&httpAddr, "http", "", "also serve tools over HTTP on this address (overrides CTIBRIDGE_HTTP_ADDR)")
	flagSet.BoolVar(&noStdio, "no-stdio", false, "do not serve MCP on stdin/stdout; requires --http")
	flagSet.BoolVarP(&quiet, "quiet", "q", false, "suppress diagnostic logging")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	// stdout carries the protocol; diagnostics go to stderr.
	logger := log.New(os.Stderr, "ctibridge: ", log.LstdFlags)
	if quiet {
		logger.SetOutput(io.Discard)
	}
	log.SetOutput(logger.Writer())

	cfg, err := config.Load(envFiles...)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}

	var in io.Reader = os.Stdin
	if noStdio {
		in = nil
	}
	if err := a.Run(ctx, in, os.Stdout); err != nil {
		return err
	}
	logger.Println("exiting")
	return nil
}
