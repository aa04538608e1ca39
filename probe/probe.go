package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Func represents a health check that returns an error when the resource is unavailable.
type Func func(ctx context.Context) error

// ErrNotReady is returned by NewReadyProbe while the component is not ready.
var ErrNotReady = errors.New("not ready")

// NewReadyProbe fails with ErrNotReady until ready reports true. The host
// uses it to hold readiness until the first operator scan has finished.
func NewReadyProbe(name string, ready func() bool) Func {
	return func(ctx context.Context) error {
		if ready == nil {
			return fmt.Errorf("%s probe: ready function is nil", name)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !ready() {
			return fmt.Errorf("%s probe: %w", name, ErrNotReady)
		}
		return nil
	}
}

// NewDirectoryProbe checks that dir exists, is a directory and can be listed.
func NewDirectoryProbe(name, dir string) Func {
	return func(ctx context.Context) error {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("%s probe: directory is required", name)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("%s probe failed: %w", name, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s probe: %s is not a directory", name, dir)
		}

		f, err := os.Open(dir)
		if err != nil {
			return fmt.Errorf("%s probe failed: %w", name, err)
		}
		defer f.Close()
		if _, err := f.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("%s probe: cannot list %s: %w", name, dir, err)
		}
		return nil
	}
}
