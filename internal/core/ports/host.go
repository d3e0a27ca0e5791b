package ports

import (
	"context"

	"github.com/melih/lighthouse-panel/internal/core/domain"
)

// Command is a program and its arguments. It is never interpreted by a shell.
type Command struct {
	Name string
	Args []string
}

// CommandResult is the captured outcome of a finished command.
type CommandResult struct {
	Output   string
	Stderr   string
	ExitCode int
}

// HostCommandRunner is the only OS-coupled surface of the panel.
// Run returns an error only when the command could not be executed at all;
// a non-zero exit code is reported through the result.
type HostCommandRunner interface {
	Run(ctx context.Context, cmd Command) (CommandResult, error)
}

// HostStats reports host facts and resource usage.
type HostStats interface {
	Info(ctx context.Context) (domain.HostInfo, error)
	Stats(ctx context.Context) (domain.HostStats, error)
}

// TXTResolver looks up DNS TXT records.
type TXTResolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// MailProvisioner keeps the mail server maps in sync with the registry.
type MailProvisioner interface {
	AddDomain(ctx context.Context, name string) error
	UpsertMailbox(ctx context.Context, email, passwordHash string) error
	RemoveMailbox(ctx context.Context, email string) error
	MailboxUsage(ctx context.Context, email string) (int64, error)
}
