package tunnelify

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"

	lg "github.com/go-puzzles/puzzles/plog"
)

// openArgs asks ssh to fork into the background once every forward is
// listening, owning a control master on sock. ssh exits non-zero before
// forking if any forward fails.
func openArgs(conf *Config, sock string, specs []string) []string {
	args := []string{
		"-f",
		"-N",
		"-o", "ExitOnForwardFailure=yes",
	}
	for _, opt := range conf.Options {
		args = append(args, "-o", opt)
	}
	args = append(args, "-M", "-S", sock)
	for _, spec := range specs {
		args = append(args, "-L", spec)
	}
	args = append(args, conf.Host)
	if conf.Verbose {
		args = append(args, "-v")
	}
	return args
}

func closeArgs(conf *Config, sock string) []string {
	return []string{"-S", sock, "-O", "exit", conf.Host}
}

// runSsh runs the ssh client to completion and returns its exit code. A
// non-nil error means ssh could not be run at all.
func runSsh(ctx context.Context, conf *Config, args []string) (int, error) {
	lg.Debugc(ctx, "%s %s", conf.Binary, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, conf.Binary, args...)
	// Only *os.File values here: with a pipe, Wait would block until the
	// forked background ssh closes it.
	if conf.inheritStdio() {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return -1, errors.Wrapf(err, "start %s", conf.Binary)
	}

	err := cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		return exitErr.ExitCode(), nil
	}
	if ctx.Err() != nil {
		return -1, errors.Wrapf(ctx.Err(), "wait %s", conf.Binary)
	}
	return -1, errors.Wrapf(err, "wait %s", conf.Binary)
}
