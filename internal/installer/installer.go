// Package installer hands a downloaded package to the operating system.
package installer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
)

// PathPlaceholder is replaced by the package path in an install command.
const PathPlaceholder = "{path}"

// ErrNoPackage is returned when there is no package path to install.
var ErrNoPackage = errors.New("no package to install")

// Installer runs a configured install command, or opens the package with the
// OS default handler when no command is set.
type Installer struct {
	command []string
	opener  func(path string) error
}

// Option configures an Installer.
type Option func(*Installer)

// WithOpener replaces the OS default handler (useful for testing).
func WithOpener(fn func(path string) error) Option {
	return func(i *Installer) {
		i.opener = fn
	}
}

// New creates an Installer that runs command, e.g.
// []string{"adb", "install", "-r", "{path}"}. Arguments are used as given,
// empty ones are dropped. If no argument has a {path} placeholder the package
// path is appended as the last argument. An empty command opens the package
// with the OS default handler.
func New(command []string, opts ...Option) *Installer {
	i := &Installer{
		command: slices.DeleteFunc(slices.Clone(command), func(arg string) bool {
			return strings.TrimSpace(arg) == ""
		}),
		opener: open.Start,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Program returns the executable the install command runs, or "" when
// packages are opened with the OS default handler.
func (i *Installer) Program() string {
	if len(i.command) == 0 {
		return ""
	}
	return i.command[0]
}

// Install implements updater.Installer.
func (i *Installer) Install(ctx context.Context, path string) error {
	if path == "" {
		return ErrNoPackage
	}

	if len(i.command) == 0 {
		log.Infof("opening %s with the default handler", path)
		if err := i.opener(path); err != nil {
			return fmt.Errorf("opening package %s: %w", path, err)
		}
		return nil
	}

	args := commandArgs(i.command, path)
	log.WithField("command", strings.Join(args, " ")).Info("running install command")

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		if out := strings.TrimSpace(output.String()); out != "" {
			return fmt.Errorf("install command %s failed: %w: %s", args[0], err, out)
		}
		return fmt.Errorf("install command %s failed: %w", args[0], err)
	}
	log.Debugf("install command output: %s", strings.TrimSpace(output.String()))
	return nil
}

func commandArgs(command []string, path string) []string {
	args := make([]string, 0, len(command)+1)
	substituted := false
	for _, arg := range command {
		if strings.Contains(arg, PathPlaceholder) {
			arg = strings.ReplaceAll(arg, PathPlaceholder, path)
			substituted = true
		}
		args = append(args, arg)
	}
	if !substituted {
		args = append(args, path)
	}
	return args
}
