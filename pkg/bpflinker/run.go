package bpflinker

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"sbpfld/pkg/linker"
)

// Run executes bpf-linker with opts and waits for it to finish.
func Run(ctx context.Context, logger log.Logger, opts *Options) error {
	args, err := opts.Args()
	if err != nil {
		return err
	}

	level.Debug(logger).Log("msg", "running bpf-linker", "linker", opts.Linker, "args", strings.Join(args, " "))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, opts.Linker, args...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "%s failed: %s", opts.Linker, strings.TrimSpace(stderr.String()))
	}
	if stderr.Len() > 0 {
		level.Warn(logger).Log("msg", "bpf-linker diagnostics", "output", strings.TrimSpace(stderr.String()))
	}
	return nil
}

// ProgramPath is where Build writes the program: <stem>.so next to the
// intermediate object.
func ProgramPath(output string) string {
	return linker.DefaultOutputPath(output)
}

// Build runs bpf-linker and re-links the object it produced. It returns
// the path of the program it wrote.
func Build(ctx context.Context, logger log.Logger, opts *Options, l *linker.Linker) (string, error) {
	if err := Run(ctx, logger, opts); err != nil {
		return "", err
	}

	out, err := l.LinkFile(opts.Output)
	if err != nil {
		return "", err
	}

	path := ProgramPath(opts.Output)
	if err := os.WriteFile(path, out, 0o755); err != nil {
		return "", errors.Wrapf(err, "writing %s", path)
	}
	level.Info(logger).Log("msg", "successfully linked", "output", filepath.Clean(path), "bytes", len(out))
	return path, nil
}
