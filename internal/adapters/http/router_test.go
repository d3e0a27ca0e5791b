package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	stdhttp "net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/melih/lighthouse-panel/internal/adapters/auth"
	"github.com/melih/lighthouse-panel/internal/adapters/storage/memory"
	"github.com/melih/lighthouse-panel/internal/core/domain"
	"github.com/melih/lighthouse-panel/internal/core/ports"
	"github.com/melih/lighthouse-panel/internal/core/services"
)

type fakeRuntime struct {
	pullErr error
	info    domain.ContainerInfo
	created int
}

func (f *fakeRuntime) ListContainers(context.Context) ([]domain.Container, error) {
	return []domain.Container{{ID: "c1", Name: "blog", State: "running"}}, nil
}

func (f *fakeRuntime) PullImage(_ context.Context, _ string, progress func(domain.PullProgress)) error {
	if progress != nil {
		progress(domain.PullProgress{Status: "Pulling fs layer", ID: "l1"})
	}
	return f.pullErr
}

func (f *fakeRuntime) CreateContainer(context.Context, domain.ContainerSpec) (string, error) {
	f.created++
	return "ctr-" + strconv.Itoa(f.created), nil
}

func (f *fakeRuntime) StartContainer(context.Context, string) error   { return nil }
func (f *fakeRuntime) StopContainer(context.Context, string) error    { return nil }
func (f *fakeRuntime) RestartContainer(context.Context, string) error { return nil }
func (f *fakeRuntime) RemoveContainer(context.Context, string, bool) error {
	return nil
}

func (f *fakeRuntime) InspectContainer(context.Context, string) (domain.ContainerInfo, error) {
	return f.info, nil
}

func (f *fakeRuntime) ContainerLogs(context.Context, string, int) (string, error) {
	return "log line\n", nil
}

func (f *fakeRuntime) Exec(_ context.Context, _ string, cmd []string) (domain.ExecResult, error) {
	return domain.ExecResult{Output: strings.Join(cmd, " ") + "\n"}, nil
}

func (f *fakeRuntime) Status(context.Context) (domain.RuntimeStatus, error) {
	return domain.RuntimeStatus{Version: "25.0.5", APIVersion: "1.44", Containers: 1, ContainersRunning: 1}, nil
}

func (f *fakeRuntime) ListImages(context.Context) ([]domain.Image, error) {
	return []domain.Image{{ID: "sha256:aaa", RepoTags: []string{"ghost:latest"}}}, nil
}

func (f *fakeRuntime) RemoveImage(context.Context, string, bool) error { return nil }

func (f *fakeRuntime) ListNetworks(context.Context) ([]domain.Network, error) {
	return []domain.Network{{ID: "n1", Name: "bridge", Driver: "bridge"}}, nil
}

func (f *fakeRuntime) CreateNetwork(_ context.Context, name, _ string) (string, error) {
	return "net-" + name, nil
}

func (f *fakeRuntime) ListVolumes(context.Context) ([]domain.Volume, error) {
	return []domain.Volume{}, nil
}

func (f *fakeRuntime) CreateVolume(_ context.Context, name string) (domain.Volume, error) {
	return domain.Volume{Name: name, Driver: "local"}, nil
}

type fakeRunner struct {
	calls   []ports.Command
	results map[string]ports.CommandResult
}

func (f *fakeRunner) Run(_ context.Context, cmd ports.Command) (ports.CommandResult, error) {
	f.calls = append(f.calls, cmd)
	if res, ok := f.results[cmd.Name]; ok {
		return res, nil
	}
	return ports.CommandResult{Output: "active\n"}, nil
}

type testEnv struct {
	app     *fiber.App
	store   *memory.Store
	runtime *fakeRuntime
	runner  *fakeRunner
	admin   string
	user    string
	userID  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.New()
	rt := &fakeRuntime{info: domain.ContainerInfo{Status: "running", Running: true}}
	runner := &fakeRunner{}
	hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}
	tokens, err := auth.NewJWTIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	authSvc := services.NewAuthService(services.AuthServiceDeps{Users: store, Hasher: hasher, Tokens: tokens})
	svc := Services{
		Auth:    authSvc,
		Catalog: services.NewCatalogService(services.Common{}, store),
		Apps: services.NewAppService(services.AppServiceDeps{
			Catalog: store, Instances: store, Domains: store, Runtime: rt,
		}),
		Domains: services.NewDomainService(services.DomainServiceDeps{Domains: store}),
		System: services.NewSystemService(services.SystemServiceDeps{
			Runner:  runner,
			Domains: store,
			After:   func(time.Duration, func()) {},
			Config:  services.SystemConfig{LetsEncryptEmail: "ops@example.com"},
		}),
		Containers: services.NewContainerService(services.Common{}, rt),
	}

	env := &testEnv{
		app:     NewRouter(svc, RouterConfig{BaseDomain: "localhost", TokenTTL: time.Hour, LoginRatePerMinute: 3}),
		store:   store,
		runtime: rt,
		runner:  runner,
	}

	ctx := context.Background()
	admin, _, err := authSvc.Bootstrap(ctx, services.NewUser{Email: "admin@example.com", Password: "adminpass", Role: domain.RoleAdmin})
	require.NoError(t, err)
	user, _, err := authSvc.Bootstrap(ctx, services.NewUser{Email: "user@example.com", Password: "userpass1"})
	require.NoError(t, err)

	env.admin, err = tokens.Issue(admin)
	require.NoError(t, err)
	env.user, err = tokens.Issue(user)
	require.NoError(t, err)
	env.userID = user.ID
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*stdhttp.Response, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = strings.NewReader(string(b))
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)

	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return resp, out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, "GET", "/health", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, "POST", "/api/auth/login", "", fiber.Map{"email": "admin@example.com", "password": "wrong-pass"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid email or password", body["error"])

	req := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(`{"email":"ADMIN@example.com","password":"adminpass"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var cookie *stdhttp.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == TokenCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	me := httptest.NewRequest("GET", "/api/auth/me", nil)
	me.AddCookie(cookie)
	resp, err = env.app.Test(me, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestLoginIsRateLimited(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		resp, _ := env.do(t, "POST", "/api/auth/login", "", fiber.Map{"email": "x@example.com", "password": "whatever1"})
		require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	}
	resp, _ := env.do(t, "POST", "/api/auth/login", "", fiber.Map{"email": "x@example.com", "password": "whatever1"})
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, "GET", "/api/apps/catalog", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, body["error"])

	resp, _ = env.do(t, "GET", "/api/apps/catalog", "garbage", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAdminOnlyRoutes(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/system/info", "/api/docker/containers", "/api/auth/users"} {
		resp, _ := env.do(t, "GET", path, env.user, nil)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode, path)
	}

	resp, _ := env.do(t, "GET", "/api/docker/containers", env.admin, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCatalogDuplicateSlugIsBadRequest(t *testing.T) {
	env := newTestEnv(t)
	entry := fiber.Map{"name": "Ghost", "slug": "ghost", "image": "ghost"}

	resp, body := env.do(t, "POST", "/api/apps/catalog", env.admin, entry)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "latest", body["tag"])

	resp, body = env.do(t, "POST", "/api/apps/catalog", env.admin, entry)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "slug is already in use", body["error"])
}

func TestInstallFailureReportsDetails(t *testing.T) {
	env := newTestEnv(t)
	env.runtime.pullErr = errors.New("manifest unknown")

	_, entry := env.do(t, "POST", "/api/apps/catalog", env.admin, fiber.Map{"name": "Ghost", "slug": "ghost", "image": "ghost"})
	resp, body := env.do(t, "POST", "/api/apps/"+entry["id"].(string)+"/install", env.admin, fiber.Map{"containerName": "blog"})
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body["details"], "manifest unknown")

	list, err := env.store.ListInstances(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.StatusError, list[0].Status)
	assert.Empty(t, list[0].ContainerID)
}

func TestFirewallValidation(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, "POST", "/api/system/firewall", env.admin, fiber.Map{"port": "22; rm -rf /"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, env.runner.calls)

	resp, _ = env.do(t, "POST", "/api/system/firewall", env.admin, fiber.Map{"port": "8080"})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Len(t, env.runner.calls, 1)
	assert.Equal(t, ports.Command{Name: "ufw", Args: []string{"allow", "8080/tcp"}}, env.runner.calls[0])
}

func TestServiceControlAllowList(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, "POST", "/api/system/services/sshd/stop", env.admin, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, "POST", "/api/system/services/nginx/reload", env.admin, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Len(t, env.runner.calls, 1)
	assert.Equal(t, []string{"reload", "nginx"}, env.runner.calls[0].Args)
}

func TestProxyRoutesSubdomainToInstance(t *testing.T) {
	env := newTestEnv(t)

	backend := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		_, _ = w.Write([]byte("hello from " + r.URL.Path))
	}))
	defer backend.Close()
	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(backend.URL, "http://"))
	require.NoError(t, err)
	port, _ := strconv.Atoi(portStr)
	env.runtime.info.IPAddress = host

	require.NoError(t, env.store.CreateInstance(context.Background(), &domain.Instance{
		ID: "i1", ContainerName: "blog", ContainerID: "ctr-1", Subdomain: "blog",
		Status: domain.StatusRunning, Ports: []domain.PortBinding{{Container: port, Host: 8081}},
	}))

	req := httptest.NewRequest("GET", "http://blog.localhost/posts", nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "hello from /posts", string(raw))

	resp, err = env.app.Test(httptest.NewRequest("GET", "http://missing.localhost/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestInstallRouteAcceptsCamelCaseBody(t *testing.T) {
	env := newTestEnv(t)

	_, entry := env.do(t, "POST", "/api/apps/catalog", env.admin, fiber.Map{"name": "Ghost", "slug": "ghost", "image": "ghost"})
	id := entry["id"].(string)

	resp, body := env.do(t, "POST", "/api/apps/"+id+"/install", env.admin, fiber.Map{
		"containerName": "blog",
		"subdomain":     "blog",
		"memory":        256,
		"cpu":           0.5,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "blog", body["container_name"])
	assert.EqualValues(t, 256, body["memory_mb"])
	assert.Equal(t, "running", body["status"])

	resp, _ = env.do(t, "POST", "/api/apps/"+id+"/install", env.user, fiber.Map{"containerName": "blog2"})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// The catalog entry itself is still reachable under the same prefix.
	resp, _ = env.do(t, "GET", "/api/apps/catalog/"+id, env.user, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestOwnerIssuesCertificateForOwnDomain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.CreateDomain(ctx, &domain.Domain{
		ID: "d1", Name: "example.com", OwnerID: env.userID, Active: true, Verified: true,
	}))
	require.NoError(t, env.store.CreateDomain(ctx, &domain.Domain{
		ID: "d2", Name: "example.org", OwnerID: "someone-else", Active: true, Verified: true,
	}))

	resp, body := env.do(t, "POST", "/api/domains/d1/ssl", env.user, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	ssl := body["ssl"].(map[string]any)
	assert.Equal(t, true, ssl["enabled"])
	require.Len(t, env.runner.calls, 1)
	assert.Equal(t, "certbot", env.runner.calls[0].Name)

	resp, _ = env.do(t, "POST", "/api/domains/d1/ssl/renew", env.user, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, "POST", "/api/domains/d2/ssl", env.user, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestDockerResourceRoutes(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/docker/status", "/api/docker/images", "/api/docker/networks", "/api/docker/volumes"} {
		resp, _ := env.do(t, "GET", path, env.user, nil)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode, path)
		resp, _ = env.do(t, "GET", path, env.admin, nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, path)
	}

	resp, body := env.do(t, "GET", "/api/docker/status", env.admin, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "25.0.5", body["version"])

	resp, _ = env.do(t, "DELETE", "/api/docker/images/sha256:aaa?force=true", env.admin, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body = env.do(t, "POST", "/api/docker/networks", env.admin, fiber.Map{"name": "apps"})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "net-apps", body["id"])

	resp, _ = env.do(t, "POST", "/api/docker/networks", env.admin, fiber.Map{"name": "apps", "driver": "host"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, "POST", "/api/docker/volumes", env.admin, fiber.Map{"name": "uploads"})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "uploads", body["name"])
}

func TestCreateAndExecContainer(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, "POST", "/api/docker/containers", env.admin, fiber.Map{
		"name": "cache", "image": "redis:7", "env": []fiber.Map{{"key": "A", "value": "1"}},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "ctr-1", body["id"])

	resp, _ = env.do(t, "POST", "/api/docker/containers", env.admin, fiber.Map{"name": "cache"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, "POST", "/api/docker/containers/ctr-1/exec", env.admin, fiber.Map{"cmd": []string{"redis-cli", "ping"}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "redis-cli ping\n", body["output"])

	resp, _ = env.do(t, "POST", "/api/docker/containers/ctr-1/exec", env.user, fiber.Map{"cmd": []string{"sh"}})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestCheckUpdateRoute(t *testing.T) {
	env := newTestEnv(t)
	env.runner.results = map[string]ports.CommandResult{
		"apt": {Output: "Listing... Done\ncurl/jammy-updates 7.81.0-1ubuntu1.16 amd64 [upgradable from: 7.81.0-1ubuntu1.15]\n"},
	}

	resp, body := env.do(t, "GET", "/api/system/check-update", env.admin, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["update_available"])
	pkgs := body["packages"].([]any)
	require.Len(t, pkgs, 1)
	assert.Equal(t, "curl", pkgs[0].(map[string]any)["name"])
	assert.Equal(t, []string{"list", "--upgradable"}, env.runner.calls[0].Args)

	resp, _ = env.do(t, "GET", "/api/system/check-update", env.user, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
