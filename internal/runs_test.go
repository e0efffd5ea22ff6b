package internal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRunStore(t *testing.T) (*RunStore, string) {
	t.Helper()
	dir := t.TempDir()

	writeArtifact(t, dir, textsFilename, `["doc one","doc two"]`)
	writeArtifact(t, dir, summariesFilename, `{"-1":"None","0":"Astronomy"}`)

	store, err := OpenRunStore(dir)
	require.NoError(t, err)
	return store, dir
}

func writeArtifact(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestRunStoreCommitAndLog(t *testing.T) {
	store, _ := setupRunStore(t)
	ctx := context.Background()

	run, err := store.CommitRun(ctx, "fit: 2 docs, 1 clusters")
	require.NoError(t, err)
	assert.NotEmpty(t, run.Hash)
	assert.Equal(t, "fit: 2 docs, 1 clusters", run.Message)

	runs, err := store.Log(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.Hash, runs[0].Hash)
}

func TestRunStoreCommitNoChanges(t *testing.T) {
	store, _ := setupRunStore(t)
	ctx := context.Background()

	_, err := store.CommitRun(ctx, "first")
	require.NoError(t, err)

	_, err = store.CommitRun(ctx, "second")
	assert.ErrorIs(t, err, ErrNoChanges)
}

func TestRunStoreLogEmpty(t *testing.T) {
	store, _ := setupRunStore(t)

	runs, err := store.Log(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunStoreLogLimit(t *testing.T) {
	store, dir := setupRunStore(t)
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		writeArtifact(t, dir, textsFilename, `["`+text+`"]`)
		_, err := store.CommitRun(ctx, text)
		require.NoError(t, err)
	}

	runs, err := store.Log(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "three", runs[0].Message)
	assert.Equal(t, "two", runs[1].Message)
}

func TestRunStoreReopen(t *testing.T) {
	store, dir := setupRunStore(t)
	ctx := context.Background()

	run, err := store.CommitRun(ctx, "persisted")
	require.NoError(t, err)

	reopened, err := OpenRunStore(dir)
	require.NoError(t, err)

	runs, err := reopened.Log(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.Hash, runs[0].Hash)
}

func TestRunStoreDiffSummaries(t *testing.T) {
	store, dir := setupRunStore(t)
	ctx := context.Background()

	_, err := store.CommitRun(ctx, "first")
	require.NoError(t, err)

	diff, err := store.DiffSummaries(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, diff)

	writeArtifact(t, dir, summariesFilename, `{"-1":"None","0":"Astronomy","1":"Cooking"}`)

	diff, err = store.DiffSummaries(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, diff, "Cooking")
}

func TestRunStoreDiffSummariesAgainstOlderRun(t *testing.T) {
	store, dir := setupRunStore(t)
	ctx := context.Background()

	first, err := store.CommitRun(ctx, "first")
	require.NoError(t, err)

	writeArtifact(t, dir, summariesFilename, `{"-1":"None","0":"Baking"}`)
	_, err = store.CommitRun(ctx, "second")
	require.NoError(t, err)

	diff, err := store.DiffSummaries(ctx, first.Hash)
	require.NoError(t, err)
	assert.Contains(t, diff, "Baking")
}

func TestRunStoreDiffSummariesBadRef(t *testing.T) {
	store, _ := setupRunStore(t)
	ctx := context.Background()

	_, err := store.CommitRun(ctx, "first")
	require.NoError(t, err)

	_, err = store.DiffSummaries(ctx, "no-such-ref")
	assert.Error(t, err)
}

func TestRunStoreCreatesRunsDir(t *testing.T) {
	_, dir := setupRunStore(t)

	info, err := os.Stat(filepath.Join(dir, runsDirName))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
