package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	git "gopkg.in/src-d/go-git.v4"
	"gopkg.in/src-d/go-git.v4/plumbing/object"
)

func TestDescribeSource(t *testing.T) {
	dir := t.TempDir()
	r, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	path := filepath.Join(dir, "Makefile")
	require.NoError(t, os.WriteFile(path, []byte("APPLICATION = bench_runtime_coreapis\n"), 0o644))

	w, err := r.Worktree()
	require.NoError(t, err)
	_, err = w.Add("Makefile")
	require.NoError(t, err)
	hash, err := w.Commit("add application", &git.CommitOptions{
		Author: &object.Signature{Name: "RIOT", Email: "riot@example.org", When: time.Now()},
	})
	require.NoError(t, err)

	desc, err := describeSource(dir)
	require.NoError(t, err)
	assert.Equal(t, hash.String()+" (master)", desc)

	require.NoError(t, os.WriteFile(path, []byte("APPLICATION = changed\n"), 0o644))
	desc, err = describeSource(dir)
	require.NoError(t, err)
	assert.Equal(t, hash.String()+" (master) dirty", desc)
}

func TestDescribeSourceNotARepository(t *testing.T) {
	_, err := describeSource(t.TempDir())
	assert.Error(t, err)
}
