// Package shell runs host commands without a shell interpreter.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/melih/lighthouse-panel/internal/core/ports"
)

var _ ports.HostCommandRunner = (*Runner)(nil)

// DefaultPrograms is the set of programs the panel invokes on the host.
var DefaultPrograms = []string{
	"systemctl", "ufw", "certbot", "nginx", "apt-get",
	"pg_dump", "tar", "mkdir", "rm", "find", "tail", "postmap", "du",
}

// Runner executes allow-listed programs with os/exec. Arguments are passed
// as argv, never through a shell.
type Runner struct {
	allowed map[string]bool
	env     []string
	log     *zap.Logger
}

func NewRunner(log *zap.Logger, programs []string, env ...string) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	allowed := make(map[string]bool, len(programs))
	for _, p := range programs {
		allowed[p] = true
	}
	return &Runner{allowed: allowed, env: env, log: log}
}

func (r *Runner) Run(ctx context.Context, cmd ports.Command) (ports.CommandResult, error) {
	if !r.allowed[cmd.Name] {
		return ports.CommandResult{}, fmt.Errorf("command %q is not allowed", cmd.Name)
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	if len(r.env) > 0 {
		c.Env = append(os.Environ(), r.env...)
	}
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	started := time.Now()
	err := c.Run()
	res := ports.CommandResult{Output: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return res, fmt.Errorf("failed to run %s: %w", cmd.Name, err)
	}

	r.log.Debug("host command finished",
		zap.String("command", cmd.Name),
		zap.Strings("args", cmd.Args),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("took", time.Since(started)))
	return res, nil
}
