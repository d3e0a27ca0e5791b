package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melih/lighthouse-panel/internal/core/domain"
)

func TestDockerResourcesAreAdminOnly(t *testing.T) {
	rt := &fakeRuntime{}
	svc := NewContainerService(testCommon(nil), rt)
	ctx := context.Background()

	_, err := svc.Status(ctx, alice)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
	_, err = svc.Images(ctx, alice)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
	assert.Equal(t, domain.KindForbidden, domain.KindOf(svc.RemoveImage(ctx, alice, "sha256:aaa", false)))
	_, err = svc.Networks(ctx, alice)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
	_, err = svc.CreateNetwork(ctx, alice, "apps", "")
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
	_, err = svc.Volumes(ctx, alice)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
	_, err = svc.CreateVolume(ctx, alice, "data")
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
	_, err = svc.Create(ctx, alice, NewContainer{Image: "nginx"})
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
	_, err = svc.Exec(ctx, alice, "abc", []string{"ls"})
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))

	assert.Empty(t, rt.Calls())
}

func TestDockerStatus(t *testing.T) {
	rt := &fakeRuntime{}
	svc := NewContainerService(testCommon(nil), rt)

	st, err := svc.Status(context.Background(), admin)
	require.NoError(t, err)
	assert.Equal(t, "25.0.5", st.Version)

	rt.statusErr = errors.New("dial unix /var/run/docker.sock: connect: no such file or directory")
	_, err = svc.Status(context.Background(), admin)
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.KindUpstream, de.Kind)
	assert.Contains(t, de.Details, "docker.sock")
}

func TestImages(t *testing.T) {
	rt := &fakeRuntime{}
	svc := NewContainerService(testCommon(nil), rt)
	ctx := context.Background()

	images, err := svc.Images(ctx, admin)
	require.NoError(t, err)
	require.Len(t, images, 1)

	require.NoError(t, svc.RemoveImage(ctx, admin, "sha256:aaa", true))
	rt.removeErr = errors.New("image is being used by running container")
	assert.Equal(t, domain.KindUpstream, domain.KindOf(svc.RemoveImage(ctx, admin, "sha256:aaa", false)))
	assert.Equal(t, []string{"images", "rmi sha256:aaa true", "rmi sha256:aaa false"}, rt.Calls())
}

func TestCreateNetwork(t *testing.T) {
	rt := &fakeRuntime{}
	svc := NewContainerService(testCommon(nil), rt)
	ctx := context.Background()

	id, err := svc.CreateNetwork(ctx, admin, " apps ", "")
	require.NoError(t, err)
	assert.Equal(t, "net-apps", id)

	_, err = svc.CreateNetwork(ctx, admin, "", "bridge")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	_, err = svc.CreateNetwork(ctx, admin, "apps", "host; rm")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = svc.Networks(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, []string{"network apps bridge", "networks"}, rt.Calls())
}

func TestCreateVolume(t *testing.T) {
	rt := &fakeRuntime{}
	svc := NewContainerService(testCommon(nil), rt)
	ctx := context.Background()

	v, err := svc.CreateVolume(ctx, admin, "uploads")
	require.NoError(t, err)
	assert.Equal(t, "uploads", v.Name)

	_, err = svc.CreateVolume(ctx, admin, "../etc")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	list, err := svc.Volumes(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateContainer(t *testing.T) {
	rt := &fakeRuntime{}
	svc := NewContainerService(testCommon(nil), rt)
	ctx := context.Background()

	id, err := svc.Create(ctx, admin, NewContainer{
		Name:        "cache",
		Image:       " redis:7 ",
		Ports:       []domain.PortBinding{{Container: 6379, Host: 6379}},
		Environment: []domain.EnvVar{{Key: "A", Value: "1"}, {Key: "EMPTY"}},
		Network:     "apps",
		MemoryMB:    256,
		CPU:         0.5,
		Restart:     "always",
	})
	require.NoError(t, err)
	assert.Equal(t, "ctr-1", id)
	assert.Equal(t, []string{"create cache", "start ctr-1"}, rt.Calls())

	require.Len(t, rt.specs, 1)
	spec := rt.specs[0]
	assert.Equal(t, "redis:7", spec.Image)
	assert.Equal(t, []string{"A=1"}, spec.Env)
	assert.Equal(t, int64(256*1024*1024), spec.MemoryBytes)
	assert.Equal(t, int64(500_000_000), spec.NanoCPUs)
	assert.Equal(t, "apps", spec.Network)
	assert.Equal(t, "always", spec.RestartPolicy)
}

func TestCreateContainerValidation(t *testing.T) {
	svc := NewContainerService(testCommon(nil), &fakeRuntime{})
	ctx := context.Background()

	for name, req := range map[string]NewContainer{
		"no image":     {Name: "x1"},
		"bad name":     {Name: "-x", Image: "nginx"},
		"bad port":     {Image: "nginx", Ports: []domain.PortBinding{{Container: 0, Host: 80}}},
		"negative cpu": {Image: "nginx", CPU: -1},
		"bad restart":  {Image: "nginx", Restart: "sometimes"},
	} {
		_, err := svc.Create(ctx, admin, req)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err), name)
	}
}

func TestCreateContainerStartFailureKeepsID(t *testing.T) {
	rt := &fakeRuntime{startErr: errors.New("port is already allocated")}
	svc := NewContainerService(testCommon(nil), rt)

	id, err := svc.Create(context.Background(), admin, NewContainer{Image: "nginx"})
	assert.Equal(t, domain.KindUpstream, domain.KindOf(err))
	assert.Equal(t, "ctr-1", id)
}

func TestExec(t *testing.T) {
	rt := &fakeRuntime{exec: domain.ExecResult{Output: "hello\n", ExitCode: 0}}
	svc := NewContainerService(testCommon(nil), rt)
	ctx := context.Background()

	res, err := svc.Exec(ctx, admin, "abc", []string{"echo", "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", res.Output)
	assert.Equal(t, []string{"exec abc echo hello"}, rt.Calls())

	_, err = svc.Exec(ctx, admin, "abc", nil)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	_, err = svc.Exec(ctx, admin, "abc", []string{" "})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}
