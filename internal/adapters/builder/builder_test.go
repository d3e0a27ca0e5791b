package builder

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayBuildOutput(t *testing.T) {
	body := strings.NewReader(`{"stream":"Step 1/2 : FROM alpine\n"}
{"stream":"Step 2/2 : RUN true\n"}
{"aux":{"ID":"sha256:abc"}}
`)
	var out strings.Builder
	require.NoError(t, relayBuildOutput(body, &out))
	assert.Equal(t, "Step 1/2 : FROM alpine\nStep 2/2 : RUN true\n", out.String())
}

func TestRelayBuildOutputFailure(t *testing.T) {
	body := strings.NewReader(`{"stream":"Step 1/2 : FROM alpine\n"}
{"errorDetail":{"code":1,"message":"The command '/bin/sh -c false' returned a non-zero code: 1"},"error":"The command '/bin/sh -c false' returned a non-zero code: 1"}
`)
	err := relayBuildOutput(body, &strings.Builder{})
	assert.ErrorContains(t, err, "non-zero code")
}

func commitFile(t *testing.T, repo *git.Repository, dir, name, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)
	hash, err := wt.Commit("update "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "ops", Email: "ops@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

func TestGitUpdaterPull(t *testing.T) {
	upstreamDir := t.TempDir()
	upstream, err := git.PlainInit(upstreamDir, false)
	require.NoError(t, err)
	commitFile(t, upstream, upstreamDir, "VERSION", "1\n")

	checkoutDir := t.TempDir()
	_, err = git.PlainClone(checkoutDir, false, &git.CloneOptions{URL: upstreamDir})
	require.NoError(t, err)

	head := commitFile(t, upstream, upstreamDir, "VERSION", "2\n")

	got, err := GitUpdater{}.Pull(context.Background(), checkoutDir, "origin")
	require.NoError(t, err)
	assert.Equal(t, head, got)

	// A second pull is already up to date and still reports HEAD.
	got, err = GitUpdater{}.Pull(context.Background(), checkoutDir, "origin")
	require.NoError(t, err)
	assert.Equal(t, head, got)
}

func TestGitUpdaterMissingRepository(t *testing.T) {
	_, err := GitUpdater{}.Pull(context.Background(), t.TempDir(), "origin")
	assert.ErrorContains(t, err, "failed to open repository")
}
