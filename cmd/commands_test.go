package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/torznab-title-mapper/internal/mapping"
	"github.com/MimeLyc/torznab-title-mapper/internal/persistence"
)

func id(n int64) *int64 { return &n }

func sampleMappings() []mapping.Mapping {
	return []mapping.Mapping{
		{CanonicalTitle: "Running Man", SourceTitle: "런닝맨", Aliases: []string{"Runningman"}, CatalogID: id(42)},
		{CanonicalTitle: "Knowing Bros", SourceTitle: "아는 형님", Aliases: []string{}},
	}
}

func TestPrintMappings(t *testing.T) {
	var out bytes.Buffer
	printMappings(&out, sampleMappings())

	got := out.String()
	assert.Contains(t, got, "Running Man")
	assert.Contains(t, got, "런닝맨")
	assert.Contains(t, got, "Runningman")
	assert.Contains(t, got, "42")
	assert.Contains(t, got, "ko")
	assert.NotContains(t, got, "╭", "rounded borders only on a terminal")
}

func TestPrintMappings_Empty(t *testing.T) {
	var out bytes.Buffer
	printMappings(&out, nil)
	assert.Equal(t, "No mappings\n", out.String())
}

func TestResolveTitle(t *testing.T) {
	table := mapping.NewTable(sampleMappings())

	var out bytes.Buffer
	require.NoError(t, resolveTitle(&out, table, "Runningman"))
	assert.Contains(t, out.String(), "Canonical title: Running Man")
	assert.Contains(t, out.String(), "Source title:    런닝맨")
	assert.Contains(t, out.String(), "Catalog ID:      42")

	out.Reset()
	require.NoError(t, resolveTitle(&out, table, "Knowing Bros"))
	assert.Contains(t, out.String(), "Catalog ID:      -")

	err := resolveTitle(&out, table, "running man")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no mapping for "running man"`)
}

type fakeReloader struct {
	run mapping.ReconcileRun
	err error
}

func (f fakeReloader) Reload(context.Context, string) (mapping.ReconcileRun, error) {
	return f.run, f.err
}

func TestRunReconcile(t *testing.T) {
	var out bytes.Buffer
	err := runReconcile(context.Background(), &out, fakeReloader{
		run: mapping.ReconcileRun{ID: "abc", Resolved: 2, Unresolved: 1, Persisted: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "Run abc: 2 resolved, 1 unresolved, persisted=true\n", out.String())

	out.Reset()
	err = runReconcile(context.Background(), &out, fakeReloader{
		run: mapping.ReconcileRun{ID: "def"},
		err: errors.New("catalog down"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog down")
	assert.Contains(t, out.String(), "persisted=false")
}

func TestSeedFromFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	file := mapping.NewFileStore(filepath.Join(dir, "title_mappings.json"))
	require.NoError(t, file.Save(ctx, sampleMappings()))

	db, err := persistence.NewSQLiteStore(filepath.Join(dir, "mappings.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, seedFromFile(ctx, db, file))
	got, err := db.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleMappings(), got)

	// a populated database is left alone
	require.NoError(t, file.Save(ctx, sampleMappings()[:1]))
	require.NoError(t, seedFromFile(ctx, db, file))
	got, err = db.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSeedFromFile_MissingFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db, err := persistence.NewSQLiteStore(filepath.Join(dir, "mappings.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, seedFromFile(ctx, db, mapping.NewFileStore(filepath.Join(dir, "missing.json"))))
	got, err := db.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRootCommand_Resolve(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "title_mappings.json")
	require.NoError(t, mapping.Save(path, sampleMappings()))

	t.Setenv("SONARR_API_KEY", "key")
	t.Setenv("DATA_DIR", dir)
	t.Setenv("MAPPING_FILE", path)
	t.Setenv("MAPPING_STORE", "json")
	t.Setenv("CONFIG_FILE", "")

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"resolve", "Runningman"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "Canonical title: Running Man")
}

func TestRootCommand_MappingsFromSQLite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, mapping.Save(filepath.Join(dir, "title_mappings.json"), sampleMappings()))

	t.Setenv("SONARR_API_KEY", "key")
	t.Setenv("DATA_DIR", dir)
	t.Setenv("MAPPING_FILE", "")
	t.Setenv("MAPPING_STORE", "sqlite")
	t.Setenv("CONFIG_FILE", "")

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"mappings"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "Knowing Bros")
	assert.FileExists(t, filepath.Join(dir, "mappings.db"))
}

func TestRootCommand_ResolveRequiresTitle(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"resolve"})
	assert.Error(t, cmd.Execute())
}
