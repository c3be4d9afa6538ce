// Command tsuki-host loads tsuki plugins and drives them from the command
// line: catalogue queries against extensions, and an inbound HTTP server for
// processors.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	domainerrors "github.com/tsuki-dev/tsuki-host/domain/errors"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", domainerrors.ToErrorDetail(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.teardown(context.WithoutCancel(ctx)))
}
