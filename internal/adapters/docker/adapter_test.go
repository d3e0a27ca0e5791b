package docker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melih/lighthouse-panel/internal/core/domain"
)

type fakeClient struct {
	apiClient

	pullBody   string
	pullErr    error
	created    *container.Config
	hostConfig *container.HostConfig
	name       string
	logs       []byte
	logsOpts   container.LogsOptions
	inspect    types.ContainerJSON
}

func (f *fakeClient) ImagePull(_ context.Context, _ string, _ types.ImagePullOptions) (io.ReadCloser, error) {
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	return io.NopCloser(strings.NewReader(f.pullBody)), nil
}

func (f *fakeClient) ContainerCreate(_ context.Context, cfg *container.Config, host *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, name string) (container.CreateResponse, error) {
	f.created, f.hostConfig, f.name = cfg, host, name
	return container.CreateResponse{ID: "abc123"}, nil
}

func (f *fakeClient) ContainerLogs(_ context.Context, _ string, opts container.LogsOptions) (io.ReadCloser, error) {
	f.logsOpts = opts
	return io.NopCloser(bytes.NewReader(f.logs)), nil
}

func (f *fakeClient) ContainerInspect(_ context.Context, _ string) (types.ContainerJSON, error) {
	return f.inspect, nil
}

func TestPullImageReportsProgress(t *testing.T) {
	cli := &fakeClient{pullBody: `{"status":"Pulling fs layer","id":"l1"}
{"status":"Downloading","id":"l1","progressDetail":{"current":50,"total":100}}
{"status":"Download complete","id":"l1"}
`}
	a := &Adapter{cli: cli}

	var got []domain.PullProgress
	err := a.PullImage(context.Background(), "nginx:latest", func(p domain.PullProgress) { got = append(got, p) })
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, domain.PullProgress{ID: "l1", Status: "Downloading", Current: 50, Total: 100}, got[1])
}

func TestPullImageStreamError(t *testing.T) {
	cli := &fakeClient{pullBody: `{"status":"Pulling fs layer","id":"l1"}
{"errorDetail":{"message":"manifest unknown"},"error":"manifest unknown"}
`}
	a := &Adapter{cli: cli}

	err := a.PullImage(context.Background(), "nope:latest", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manifest unknown")
}

func TestPullImageRequestError(t *testing.T) {
	a := &Adapter{cli: &fakeClient{pullErr: errors.New("daemon unavailable")}}
	err := a.PullImage(context.Background(), "nginx:latest", nil)
	assert.ErrorContains(t, err, "daemon unavailable")
}

func TestCreateContainerBuildsConfig(t *testing.T) {
	cli := &fakeClient{}
	a := &Adapter{cli: cli}

	id, err := a.CreateContainer(context.Background(), domain.ContainerSpec{
		Name:        "blog",
		Image:       "wordpress:latest",
		Ports:       []domain.PortBinding{{Container: 80, Host: 8080}, {Container: 53, Host: 5353, Protocol: "udp"}},
		Volumes:     []domain.VolumeBinding{{Container: "/var/www/html", Host: "/srv/blog"}},
		Env:         []string{"A=1"},
		MemoryBytes: 512 * 1024 * 1024,
		NanoCPUs:    1_500_000_000,
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)
	assert.Equal(t, "blog", cli.name)

	assert.Equal(t, "wordpress:latest", cli.created.Image)
	assert.Equal(t, []string{"A=1"}, cli.created.Env)
	assert.Contains(t, cli.created.ExposedPorts, nat.Port("80/tcp"))
	assert.Contains(t, cli.created.ExposedPorts, nat.Port("53/udp"))

	assert.Equal(t, []nat.PortBinding{{HostPort: "8080"}}, cli.hostConfig.PortBindings[nat.Port("80/tcp")])
	assert.Equal(t, []string{"/srv/blog:/var/www/html"}, cli.hostConfig.Binds)
	assert.EqualValues(t, "unless-stopped", cli.hostConfig.RestartPolicy.Name)
	assert.Equal(t, int64(512*1024*1024), cli.hostConfig.Memory)
	assert.Equal(t, int64(1_500_000_000), cli.hostConfig.NanoCPUs)
}

func TestContainerLogsDemultiplexes(t *testing.T) {
	var buf bytes.Buffer
	_, err := stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte("hello\n"))
	require.NoError(t, err)
	_, err = stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte("oops\n"))
	require.NoError(t, err)

	cli := &fakeClient{logs: buf.Bytes()}
	a := &Adapter{cli: cli}

	out, err := a.ContainerLogs(context.Background(), "abc", 50)
	require.NoError(t, err)
	assert.Equal(t, "hello\noops\n", out)
	assert.Equal(t, "50", cli.logsOpts.Tail)
}

func TestInspectStoppedContainer(t *testing.T) {
	cli := &fakeClient{inspect: types.ContainerJSON{
		ContainerJSONBase: &types.ContainerJSONBase{
			State: &types.ContainerState{Status: "exited", StartedAt: "2024-05-01T10:00:00Z"},
		},
	}}
	a := &Adapter{cli: cli}

	info, err := a.InspectContainer(context.Background(), "abc")
	require.NoError(t, err)
	assert.False(t, info.Running)
	assert.Equal(t, "exited", info.Status)
	require.NotNil(t, info.StartedAt)
	assert.Equal(t, 2024, info.StartedAt.Year())
}
