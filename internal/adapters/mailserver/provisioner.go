// Package mailserver keeps the postfix and dovecot lookup files in sync
// with the mail accounts in the registry.
package mailserver

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/melih/lighthouse-panel/internal/core/domain"
	"github.com/melih/lighthouse-panel/internal/core/ports"
)

var _ ports.MailProvisioner = (*Provisioner)(nil)

type Config struct {
	VhostsPath       string
	VmailboxPath     string
	DovecotUsersPath string
	MailRoot         string
}

func (c *Config) defaults() {
	if c.VhostsPath == "" {
		c.VhostsPath = "/etc/postfix/vhosts"
	}
	if c.VmailboxPath == "" {
		c.VmailboxPath = "/etc/postfix/vmailbox"
	}
	if c.DovecotUsersPath == "" {
		c.DovecotUsersPath = "/etc/dovecot/users"
	}
	if c.MailRoot == "" {
		c.MailRoot = "/var/mail/vhosts"
	}
}

type Provisioner struct {
	cfg    Config
	runner ports.HostCommandRunner
	log    *zap.Logger
	mu     sync.Mutex
}

func NewProvisioner(cfg Config, runner ports.HostCommandRunner, log *zap.Logger) *Provisioner {
	cfg.defaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Provisioner{cfg: cfg, runner: runner, log: log}
}

func (p *Provisioner) AddDomain(ctx context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := editLines(p.cfg.VhostsPath, func(lines []string) []string {
		for _, l := range lines {
			if strings.TrimSpace(l) == name {
				return lines
			}
		}
		return append(lines, name)
	})
	if err != nil {
		return err
	}
	return p.reload(ctx)
}

// UpsertMailbox writes the postfix mailbox mapping and the dovecot
// credential line for email, replacing existing entries.
func (p *Provisioner) UpsertMailbox(ctx context.Context, email, passwordHash string) error {
	local, dom := domain.SplitAddress(email)
	if local == "" || dom == "" {
		return fmt.Errorf("invalid mailbox address %q", email)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	mailbox := email + " " + dom + "/" + local + "/"
	if err := editLines(p.cfg.VmailboxPath, replaceEntry(email, mailbox, vmailboxKey)); err != nil {
		return err
	}
	credential := email + ":{BLF-CRYPT}" + passwordHash
	if err := editLines(p.cfg.DovecotUsersPath, replaceEntry(email, credential, dovecotKey)); err != nil {
		return err
	}
	return p.rebuild(ctx)
}

func (p *Provisioner) RemoveMailbox(ctx context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := editLines(p.cfg.VmailboxPath, replaceEntry(email, "", vmailboxKey)); err != nil {
		return err
	}
	if err := editLines(p.cfg.DovecotUsersPath, replaceEntry(email, "", dovecotKey)); err != nil {
		return err
	}
	return p.rebuild(ctx)
}

// MailboxUsage returns the bytes stored in the mailbox directory. A mailbox
// that has not received mail yet has no directory and uses nothing.
func (p *Provisioner) MailboxUsage(ctx context.Context, email string) (int64, error) {
	local, dom := domain.SplitAddress(email)
	dir := filepath.Join(p.cfg.MailRoot, dom, local)

	res, err := p.runner.Run(ctx, ports.Command{Name: "du", Args: []string{"-sb", dir}})
	if err != nil {
		return 0, err
	}
	if res.ExitCode != 0 {
		return 0, nil
	}
	fields := strings.Fields(res.Output)
	if len(fields) == 0 {
		return 0, nil
	}
	size, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse mailbox usage %q: %w", res.Output, err)
	}
	return size, nil
}

func (p *Provisioner) rebuild(ctx context.Context) error {
	if err := p.run(ctx, "postmap", p.cfg.VmailboxPath); err != nil {
		return err
	}
	return p.reload(ctx)
}

func (p *Provisioner) reload(ctx context.Context) error {
	return p.run(ctx, "systemctl", "reload", "postfix", "dovecot")
}

func (p *Provisioner) run(ctx context.Context, name string, args ...string) error {
	res, err := p.runner.Run(ctx, ports.Command{Name: name, Args: args})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		p.log.Error("mail server command failed",
			zap.String("command", name),
			zap.Strings("args", args),
			zap.String("stderr", res.Stderr))
		return fmt.Errorf("%s exited with status %d: %s", name, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return nil
}

func vmailboxKey(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func dovecotKey(line string) string {
	key, _, _ := strings.Cut(line, ":")
	return key
}

// replaceEntry drops every line keyed by email and appends replacement
// unless it is empty.
func replaceEntry(email, replacement string, key func(string) string) func([]string) []string {
	return func(lines []string) []string {
		out := lines[:0]
		for _, l := range lines {
			if key(l) != email {
				out = append(out, l)
			}
		}
		if replacement != "" {
			out = append(out, replacement)
		}
		return out
	}
}

// editLines rewrites a lookup file through fn. The new content is written
// to a temporary file and renamed over the original.
func editLines(path string, fn func([]string) []string) error {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if l := sc.Text(); strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	lines = fn(lines)

	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Chmod(0o640); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
