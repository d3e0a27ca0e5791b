package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/melih/lighthouse-panel/internal/adapters/storage/memory"
	"github.com/melih/lighthouse-panel/internal/core/domain"
	"github.com/melih/lighthouse-panel/internal/core/ports"
)

var (
	admin = domain.Subject{ID: "u-admin", Email: "admin@example.com", Role: domain.RoleAdmin}
	alice = domain.Subject{ID: "u-alice", Email: "alice@example.com", Role: domain.RoleUser}
	bob   = domain.Subject{ID: "u-bob", Email: "bob@example.com", Role: domain.RoleUser}
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testCommon(events ports.Publisher) Common {
	var mu sync.Mutex
	n := 0
	return Common{
		Events: events,
		Clock:  func() time.Time { return testNow },
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("id-%d", n)
		},
	}
}

type fakeRuntime struct {
	mu sync.Mutex

	pullErr    error
	createErr  error
	startErr   error
	removeErr  error
	inspectErr error
	statusErr  error
	running    bool
	exec       domain.ExecResult

	calls   []string
	specs   []domain.ContainerSpec
	created int
}

func (f *fakeRuntime) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeRuntime) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRuntime) ListContainers(context.Context) ([]domain.Container, error) {
	f.record("list")
	return nil, nil
}

func (f *fakeRuntime) PullImage(_ context.Context, ref string, progress func(domain.PullProgress)) error {
	f.record("pull " + ref)
	if progress != nil {
		progress(domain.PullProgress{ID: "layer1", Status: "Downloading", Current: 10, Total: 100})
	}
	return f.pullErr
}

func (f *fakeRuntime) CreateContainer(_ context.Context, spec domain.ContainerSpec) (string, error) {
	f.record("create " + spec.Name)
	if f.createErr != nil {
		return "", f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.specs = append(f.specs, spec)
	f.created++
	return fmt.Sprintf("ctr-%d", f.created), nil
}

func (f *fakeRuntime) StartContainer(_ context.Context, id string) error {
	f.record("start " + id)
	return f.startErr
}

func (f *fakeRuntime) StopContainer(_ context.Context, id string) error {
	f.record("stop " + id)
	return nil
}

func (f *fakeRuntime) RestartContainer(_ context.Context, id string) error {
	f.record("restart " + id)
	return nil
}

func (f *fakeRuntime) RemoveContainer(_ context.Context, id string, _ bool) error {
	f.record("remove " + id)
	return f.removeErr
}

func (f *fakeRuntime) InspectContainer(_ context.Context, id string) (domain.ContainerInfo, error) {
	f.record("inspect " + id)
	if f.inspectErr != nil {
		return domain.ContainerInfo{}, f.inspectErr
	}
	status := "exited"
	if f.running {
		status = "running"
	}
	return domain.ContainerInfo{Status: status, Running: f.running, IPAddress: "172.17.0.2"}, nil
}

func (f *fakeRuntime) ContainerLogs(_ context.Context, id string, tail int) (string, error) {
	f.record(fmt.Sprintf("logs %s %d", id, tail))
	return "container output\n", nil
}

func (f *fakeRuntime) Exec(_ context.Context, id string, cmd []string) (domain.ExecResult, error) {
	f.record("exec " + id + " " + strings.Join(cmd, " "))
	return f.exec, nil
}

func (f *fakeRuntime) Status(context.Context) (domain.RuntimeStatus, error) {
	f.record("status")
	return domain.RuntimeStatus{Version: "25.0.5", Containers: 2, ContainersRunning: 1}, f.statusErr
}

func (f *fakeRuntime) ListImages(context.Context) ([]domain.Image, error) {
	f.record("images")
	return []domain.Image{{ID: "sha256:aaa", RepoTags: []string{"nginx:latest"}}}, nil
}

func (f *fakeRuntime) RemoveImage(_ context.Context, id string, force bool) error {
	f.record(fmt.Sprintf("rmi %s %t", id, force))
	return f.removeErr
}

func (f *fakeRuntime) ListNetworks(context.Context) ([]domain.Network, error) {
	f.record("networks")
	return []domain.Network{{ID: "n1", Name: "bridge", Driver: "bridge"}}, nil
}

func (f *fakeRuntime) CreateNetwork(_ context.Context, name, driver string) (string, error) {
	f.record("network " + name + " " + driver)
	return "net-" + name, nil
}

func (f *fakeRuntime) ListVolumes(context.Context) ([]domain.Volume, error) {
	f.record("volumes")
	return []domain.Volume{{Name: "data", Driver: "local"}}, nil
}

func (f *fakeRuntime) CreateVolume(_ context.Context, name string) (domain.Volume, error) {
	f.record("volume " + name)
	return domain.Volume{Name: name, Driver: "local"}, nil
}

type fakeBuilder struct {
	err   error
	repos []string
}

func (f *fakeBuilder) BuildImage(_ context.Context, repo, image string, progress io.Writer) (string, error) {
	f.repos = append(f.repos, repo)
	if progress != nil {
		_, _ = progress.Write([]byte("Step 1/2 : FROM alpine\nStep 2/2 : COPY . .\n"))
	}
	return image, f.err
}

// fakeRunner answers commands from a table keyed by program name.
type fakeRunner struct {
	mu      sync.Mutex
	results map[string]ports.CommandResult
	errs    map[string]error
	calls   []ports.Command
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{results: map[string]ports.CommandResult{}, errs: map[string]error{}}
}

func (f *fakeRunner) Run(_ context.Context, cmd ports.Command) (ports.CommandResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cmd)
	if err := f.errs[cmd.Name]; err != nil {
		return ports.CommandResult{}, err
	}
	return f.results[cmd.Name], nil
}

func (f *fakeRunner) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, strings.TrimSpace(c.Name+" "+strings.Join(c.Args, " ")))
	}
	return out
}

type fakeResolver struct {
	values map[string][]string
	err    error
}

func (f fakeResolver) LookupTXT(_ context.Context, name string) ([]string, error) {
	return f.values[name], f.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(e domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.events))
	for _, e := range p.events {
		names = append(names, e.Name)
	}
	return names
}

type fakeProvisioner struct {
	domains   []string
	mailboxes map[string]string
	usage     int64
	err       error
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{mailboxes: map[string]string{}}
}

func (f *fakeProvisioner) AddDomain(_ context.Context, name string) error {
	f.domains = append(f.domains, name)
	return f.err
}

func (f *fakeProvisioner) UpsertMailbox(_ context.Context, email, hash string) error {
	if f.err != nil {
		return f.err
	}
	f.mailboxes[email] = hash
	return nil
}

func (f *fakeProvisioner) RemoveMailbox(_ context.Context, email string) error {
	delete(f.mailboxes, email)
	return f.err
}

func (f *fakeProvisioner) MailboxUsage(context.Context, string) (int64, error) {
	return f.usage, nil
}

// plainHasher stores "hashed:<password>".
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "hashed:" + p, nil }

func (plainHasher) Compare(hash, p string) error {
	if hash != "hashed:"+p {
		return errors.New("mismatch")
	}
	return nil
}

// fakeTokens issues "token-<user id>".
type fakeTokens struct{}

func (fakeTokens) Issue(u *domain.User) (string, error) { return "token-" + u.ID, nil }

func (fakeTokens) Verify(token string) (string, error) {
	id, ok := strings.CutPrefix(token, "token-")
	if !ok {
		return "", errors.New("bad token")
	}
	return id, nil
}

type fakeRecorder struct {
	results []string
}

func (f *fakeRecorder) InstallFinished(result string, _ time.Duration) {
	f.results = append(f.results, result)
}

type fakeStats struct{}

func (fakeStats) Info(context.Context) (domain.HostInfo, error) {
	return domain.HostInfo{Hostname: "panel-host", CPUs: 4}, nil
}

func (fakeStats) Stats(context.Context) (domain.HostStats, error) {
	return domain.HostStats{CPUPercent: 12.5}, nil
}

type fakeUpdater struct {
	head string
	err  error
}

func (f fakeUpdater) Pull(context.Context, string, string) (string, error) {
	return f.head, f.err
}

var _ ports.Store = (*memory.Store)(nil)
