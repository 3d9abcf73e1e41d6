package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/torosent/volley/internal/commands"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], streams{in: os.Stdin, out: os.Stdout, err: os.Stderr})
	stop()
	os.Exit(code)
}

// execute runs the CLI and returns the process exit code.
func execute(ctx context.Context, args []string, std streams) int {
	reg, err := newRegistry(std)
	if err != nil {
		fmt.Fprintf(std.err, "Error: %v\n", err)
		return exitConfig
	}

	root := reg.Root("volley", "Issue a batch of HTTP requests with retries and durable results")
	root.SetArgs(args)
	root.SetIn(std.in)
	root.SetOut(std.out)
	root.SetErr(std.err)

	return exitCode(root.ExecuteContext(ctx), std.err)
}

func newRegistry(std streams) (*commands.Registry, error) {
	reg := commands.NewRegistry()
	handlers := []commands.Handler{
		runHandler(std),
		{
			Name:  "version",
			Short: "Print the volley version",
			Run: func(cmd *cobra.Command, _ []string) error {
				fmt.Fprintf(cmd.OutOrStdout(), "volley %s\n", version)
				return nil
			},
		},
	}
	for _, h := range handlers {
		if err := reg.Register(h); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

const (
	exitOK          = 0
	exitFailures    = 1
	exitConfig      = 2
	exitWrite       = 3
	exitInterrupted = 130
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// exitCode prints err, if any, and maps it onto an exit code. Errors that
// carry no code come from argument parsing and count as configuration errors.
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", ee.err)
		}
		return ee.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitConfig
}
