package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melih/lighthouse-panel/internal/core/domain"
)

func TestPullImage(t *testing.T) {
	rt := &fakeRuntime{}
	events := &recordingPublisher{}
	svc := NewContainerService(testCommon(events), rt)
	ctx := context.Background()

	require.NoError(t, svc.Pull(ctx, admin, " nginx "))
	require.NoError(t, svc.Pull(ctx, admin, "localhost:5000/team/app"))
	require.NoError(t, svc.Pull(ctx, admin, "redis:7"))
	assert.Equal(t, []string{
		"pull nginx:latest",
		"pull localhost:5000/team/app:latest",
		"pull redis:7",
	}, rt.Calls())
	assert.Equal(t, []string{domain.EventDockerPullProgress, domain.EventDockerPullComplete}, events.Names()[:2])

	assert.Equal(t, domain.KindValidation, domain.KindOf(svc.Pull(ctx, admin, "  ")))
	assert.Equal(t, domain.KindForbidden, domain.KindOf(svc.Pull(ctx, alice, "nginx")))
}

func TestPullImageFailure(t *testing.T) {
	rt := &fakeRuntime{pullErr: errors.New("manifest unknown")}
	events := &recordingPublisher{}
	svc := NewContainerService(testCommon(events), rt)

	err := svc.Pull(context.Background(), admin, "nginx:nope")
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.KindUpstream, de.Kind)
	assert.Equal(t, "manifest unknown", de.Details)
	assert.Equal(t, domain.EventDockerPullError, events.Names()[len(events.Names())-1])
}

func TestContainerControlIsAdminOnly(t *testing.T) {
	rt := &fakeRuntime{removeErr: errors.New("container is running")}
	svc := NewContainerService(testCommon(nil), rt)
	ctx := context.Background()

	assert.Equal(t, domain.KindForbidden, domain.KindOf(svc.Stop(ctx, bob, "abc")))
	_, err := svc.Logs(ctx, bob, "abc", 10)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
	assert.Empty(t, rt.Calls())

	require.NoError(t, svc.Restart(ctx, admin, "abc"))
	assert.Equal(t, domain.KindUpstream, domain.KindOf(svc.Remove(ctx, admin, "abc", false)))

	_, err = svc.Logs(ctx, admin, "abc", 0)
	require.NoError(t, err)
	_, err = svc.Logs(ctx, admin, "abc", 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, []string{"restart abc", "remove abc", "logs abc 100", "logs abc 5000"}, rt.Calls())
}
