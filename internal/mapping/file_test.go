package mapping

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestLoadAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "title_mappings.json")

	original := sampleMappings()
	require.NoError(t, Save(path, original))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestLoad_LegacyLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "title_mappings.json")
	legacy := `[
  {"englishTitle": "My Show", "koreanTitle": "마이쇼", "aliases": ["MS"], "id": 42},
  {"englishTitle": "New Show", "koreanTitle": "새쇼", "aliases": []}
]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "My Show", loaded[0].CanonicalTitle)
	assert.Equal(t, "마이쇼", loaded[0].SourceTitle)
	assert.Equal(t, []string{"MS"}, loaded[0].Aliases)
	require.NotNil(t, loaded[0].CatalogID)
	assert.Equal(t, int64(42), *loaded[0].CatalogID)
	assert.Nil(t, loaded[1].CatalogID)
}

func TestLoad_LegacyZeroIDIsUnresolved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "title_mappings.json")
	legacy := `[{"englishTitle": "My Show", "koreanTitle": "마이쇼", "aliases": [], "id": 0}]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Nil(t, loaded[0].CatalogID)
	assert.False(t, loaded[0].HasCatalogID())

	result := Reconcile(loaded, []CatalogEntry{{ID: 7, Title: "My Show"}})
	require.Len(t, result.Resolved, 1)
	assert.Equal(t, int64(7), *result.Mappings[0].CatalogID)
}

func TestLoad_MissingAliasesBecomesEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"canonicalTitle":"A","sourceTitle":"에이"}]`), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.NotNil(t, loaded[0].Aliases)
	assert.Empty(t, loaded[0].Aliases)
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestFileStore_MissingFileLoadsEmpty(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "absent.json"))

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestFileStore_SaveCreatesDirectoryAndReleasesLock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "title_mappings.json")
	store := NewFileStore(path)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleMappings()))
	// a second save must be able to take the lock again
	require.NoError(t, store.Save(ctx, sampleMappings()[:1]))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "My Show", loaded[0].CanonicalTitle)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestSave_WritesNativeFieldNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.json")
	require.NoError(t, Save(path, sampleMappings()[:1]))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"canonicalTitle": "My Show"`)
	assert.Contains(t, string(data), `"catalogId": 42`)
	assert.NotContains(t, string(data), "englishTitle")
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, language.Korean, DetectLanguage("마이쇼"))
	assert.Equal(t, language.Und, DetectLanguage(""))
	assert.Equal(t, language.Und, DetectLanguage("   "))
}
