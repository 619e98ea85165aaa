// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package posix

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

var (
	// ErrNoStrategies indicates that ApplyMode was called without any strategy.
	ErrNoStrategies = errors.New("posix: no permission strategies configured")

	// ErrModeNotApplied indicates that every strategy ran but none produced the requested mode.
	ErrModeNotApplied = errors.New("posix: file mode could not be applied")
)

// CommandRunner executes an external command. It matches the signature of a
// thin wrapper around [exec.CommandContext] so tests can substitute it.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// PermissionStrategy is one way of setting a file mode.
type PermissionStrategy interface {
	// Name identifies the strategy in logs.
	Name() string
	// Apply attempts to set mode on path.
	Apply(ctx context.Context, path string, mode os.FileMode) error
}

// DirectChmod sets the mode with [os.Chmod].
type DirectChmod struct{}

// Name returns "chmod".
func (DirectChmod) Name() string { return "chmod" }

// Apply calls [os.Chmod].
func (DirectChmod) Apply(_ context.Context, path string, mode os.FileMode) error {
	return os.Chmod(path, mode)
}

// ShellChmod runs the chmod binary, optionally prefixed by a privilege
// escalation command such as "sudo -n".
type ShellChmod struct {
	// Prefix is prepended to the chmod invocation (e.g. []string{"sudo", "-n"}).
	Prefix []string
	// Run executes the command; nil uses [exec.CommandContext].
	Run CommandRunner
}

// Name returns "shell" or "sudo" depending on the prefix.
func (s ShellChmod) Name() string {
	if len(s.Prefix) > 0 {
		return s.Prefix[0]
	}
	return "shell"
}

// Apply runs "[prefix...] chmod <octal> <path>".
func (s ShellChmod) Apply(ctx context.Context, path string, mode os.FileMode) error {
	args := append([]string(nil), s.Prefix...)
	args = append(args, "chmod", strconv.FormatUint(uint64(mode.Perm()), 8), path)

	run := s.Run
	if run == nil {
		run = runCommand
	}
	return run(ctx, args[0], args[1:]...)
}

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (%s)", name, err, out)
	}
	return nil
}

// DefaultStrategies returns the cascade used for certificate bundles:
// direct chmod, then the chmod binary, then "sudo -n chmod".
func DefaultStrategies() []PermissionStrategy {
	return []PermissionStrategy{
		DirectChmod{},
		ShellChmod{},
		ShellChmod{Prefix: []string{"sudo", "-n"}},
	}
}

// ApplyMode tries each strategy in order until the file's permission bits equal mode.
//
// A strategy counts as successful only when a subsequent stat confirms the mode;
// a strategy that returns nil without changing the mode is treated as failed.
//
// Parameters:
//   - ctx: Context for external commands
//   - path: Target file
//   - mode: Desired permission bits
//   - strategies: Ordered strategies
//
// Returns:
//   - string: Name of the strategy that succeeded
//   - error: [ErrModeNotApplied] joined with every strategy error, or [ErrNoStrategies]
func ApplyMode(ctx context.Context, path string, mode os.FileMode, strategies ...PermissionStrategy) (string, error) {
	if len(strategies) == 0 {
		return "", ErrNoStrategies
	}

	errs := []error{ErrModeNotApplied}
	for _, s := range strategies {
		if err := s.Apply(ctx, path, mode); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: stat: %w", s.Name(), err))
			continue
		}
		if info.Mode().Perm() == mode.Perm() {
			return s.Name(), nil
		}
		errs = append(errs, fmt.Errorf("%s: mode is %04o", s.Name(), info.Mode().Perm()))
	}

	return "", errors.Join(errs...)
}
