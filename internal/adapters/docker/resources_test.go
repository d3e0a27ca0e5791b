package docker

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/system"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melih/lighthouse-panel/internal/core/domain"
)

type resourceClient struct {
	apiClient

	versionErr error
	images     []image.Summary
	removed    string
	removeOpts types.ImageRemoveOptions
	networks   []types.NetworkResource
	netName    string
	netOpts    types.NetworkCreate
	volumes    []*volume.Volume
	volumeOpts volume.CreateOptions
	execConfig types.ExecConfig
	execOutput func(net.Conn)
	execExit   int
}

func (f *resourceClient) ServerVersion(context.Context) (types.Version, error) {
	return types.Version{Version: "25.0.5", APIVersion: "1.44"}, f.versionErr
}

func (f *resourceClient) Info(context.Context) (system.Info, error) {
	return system.Info{
		Containers: 3, ContainersRunning: 2, ContainersStopped: 1, Images: 7,
		OperatingSystem: "Ubuntu 22.04", MemTotal: 2 << 30, NCPU: 4,
	}, nil
}

func (f *resourceClient) ImageList(context.Context, types.ImageListOptions) ([]image.Summary, error) {
	return f.images, nil
}

func (f *resourceClient) ImageRemove(_ context.Context, id string, opts types.ImageRemoveOptions) ([]image.DeleteResponse, error) {
	f.removed, f.removeOpts = id, opts
	return []image.DeleteResponse{{Deleted: id}}, nil
}

func (f *resourceClient) NetworkList(context.Context, types.NetworkListOptions) ([]types.NetworkResource, error) {
	return f.networks, nil
}

func (f *resourceClient) NetworkCreate(_ context.Context, name string, opts types.NetworkCreate) (types.NetworkCreateResponse, error) {
	f.netName, f.netOpts = name, opts
	return types.NetworkCreateResponse{ID: "net123"}, nil
}

func (f *resourceClient) VolumeList(context.Context, volume.ListOptions) (volume.ListResponse, error) {
	return volume.ListResponse{Volumes: f.volumes}, nil
}

func (f *resourceClient) VolumeCreate(_ context.Context, opts volume.CreateOptions) (volume.Volume, error) {
	f.volumeOpts = opts
	return volume.Volume{Name: opts.Name, Driver: "local", Mountpoint: "/var/lib/docker/volumes/" + opts.Name + "/_data"}, nil
}

func (f *resourceClient) ContainerExecCreate(_ context.Context, _ string, cfg types.ExecConfig) (types.IDResponse, error) {
	f.execConfig = cfg
	return types.IDResponse{ID: "exec1"}, nil
}

func (f *resourceClient) ContainerExecAttach(context.Context, string, types.ExecStartCheck) (types.HijackedResponse, error) {
	client, server := net.Pipe()
	go func() {
		f.execOutput(server)
		server.Close()
	}()
	return types.NewHijackedResponse(client, ""), nil
}

func (f *resourceClient) ContainerExecInspect(context.Context, string) (types.ContainerExecInspect, error) {
	return types.ContainerExecInspect{ExecID: "exec1", ExitCode: f.execExit}, nil
}

func TestStatusCombinesVersionAndInfo(t *testing.T) {
	a := &Adapter{cli: &resourceClient{}}
	st, err := a.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.RuntimeStatus{
		Version: "25.0.5", APIVersion: "1.44", OS: "Ubuntu 22.04",
		Containers: 3, ContainersRunning: 2, ContainersStopped: 1, Images: 7,
		MemoryTotal: 2 << 30, CPUs: 4,
	}, st)

	a = &Adapter{cli: &resourceClient{versionErr: errors.New("connection refused")}}
	_, err = a.Status(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestListImages(t *testing.T) {
	cli := &resourceClient{images: []image.Summary{
		{ID: "sha256:aaa", RepoTags: []string{"nginx:latest"}, Size: 1024, Created: 1714557600},
		{ID: "sha256:bbb", Size: 10},
	}}
	a := &Adapter{cli: cli}

	images, err := a.ListImages(context.Background())
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, []string{"nginx:latest"}, images[0].RepoTags)
	assert.Equal(t, 2024, images[0].Created.Year())
	assert.NotNil(t, images[1].RepoTags)

	require.NoError(t, a.RemoveImage(context.Background(), "sha256:aaa", true))
	assert.Equal(t, "sha256:aaa", cli.removed)
	assert.True(t, cli.removeOpts.Force)
}

func TestNetworks(t *testing.T) {
	cli := &resourceClient{networks: []types.NetworkResource{
		{ID: "0123456789abcdef", Name: "web", Driver: "bridge", Scope: "local"},
		{ID: "ffff", Name: "bridge", Driver: "bridge", Scope: "local"},
	}}
	a := &Adapter{cli: cli}

	list, err := a.ListNetworks(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "bridge", list[0].Name)
	assert.Equal(t, "0123456789ab", list[1].ID)

	id, err := a.CreateNetwork(context.Background(), "apps", "bridge")
	require.NoError(t, err)
	assert.Equal(t, "net123", id)
	assert.Equal(t, "apps", cli.netName)
	assert.Equal(t, "bridge", cli.netOpts.Driver)
	assert.True(t, cli.netOpts.CheckDuplicate)
}

func TestVolumes(t *testing.T) {
	cli := &resourceClient{volumes: []*volume.Volume{
		{Name: "data", Driver: "local", Mountpoint: "/var/lib/docker/volumes/data/_data"},
		nil,
	}}
	a := &Adapter{cli: cli}

	list, err := a.ListVolumes(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "data", list[0].Name)

	v, err := a.CreateVolume(context.Background(), "uploads")
	require.NoError(t, err)
	assert.Equal(t, "uploads", cli.volumeOpts.Name)
	assert.Equal(t, "local", v.Driver)
}

func TestExecMergesStreams(t *testing.T) {
	cli := &resourceClient{
		execExit: 2,
		execOutput: func(conn net.Conn) {
			_, _ = stdcopy.NewStdWriter(conn, stdcopy.Stdout).Write([]byte("total 0\n"))
			_, _ = stdcopy.NewStdWriter(conn, stdcopy.Stderr).Write([]byte("ls: /missing: No such file\n"))
		},
	}
	a := &Adapter{cli: cli}

	res, err := a.Exec(context.Background(), "abc", []string{"ls", "/missing"})
	require.NoError(t, err)
	assert.Equal(t, "total 0\nls: /missing: No such file\n", res.Output)
	assert.Equal(t, 2, res.ExitCode)
	assert.Equal(t, []string{"ls", "/missing"}, cli.execConfig.Cmd)
	assert.True(t, cli.execConfig.AttachStderr)
}
