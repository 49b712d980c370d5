package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infrascan/internal/tree"
)

const multiProfile = `
server:
  port: 8080
app:
  storage: /nas1/app/data
  hosts: [a, b, c]
---
spring:
  config:
    activate:
      on-profile: dev
app:
  storage: /nas1/dev/data
  debug: true
---
spring:
  profiles: stg
app:
  storage: /nas2/stg/data
  hosts: [z]
---
app:
  name: shared
`

func lookup(t *testing.T, root tree.Value, path string) string {
	t.Helper()
	v, outcome := tree.Lookup(root, path)
	require.Equal(t, tree.Found, outcome, path)
	return v.String()
}

func TestSplit(t *testing.T) {
	docs := Split("a: 1\n---\nb: 2\n--- # comment\nc: 3\n---not-a-marker: 4\n")
	require.Len(t, docs, 3)
	assert.Equal(t, "a: 1\n", docs[0])
	assert.Equal(t, "---\nb: 2\n", docs[1])
	assert.Equal(t, "--- # comment\nc: 3\n---not-a-marker: 4\n", docs[2])

	assert.Empty(t, Split(""))
}

func TestLoad_BaseOnly(t *testing.T) {
	root := Load(multiProfile, "")

	assert.Equal(t, "/nas1/app/data", lookup(t, root, "app.storage"))
	assert.Equal(t, "shared", lookup(t, root, "app.name"))
	assert.False(t, tree.Has(root, "app.debug"))
}

func TestLoad_ProfileOverridesBase(t *testing.T) {
	root := Load(multiProfile, "dev")

	assert.Equal(t, "/nas1/dev/data", lookup(t, root, "app.storage"))
	assert.Equal(t, "true", lookup(t, root, "app.debug"))
	assert.Equal(t, "8080", lookup(t, root, "server.port"))
	// base documents after the profile document still belong to the base
	assert.Equal(t, "shared", lookup(t, root, "app.name"))
}

func TestLoad_LegacyProfileKeyAndListReplacement(t *testing.T) {
	root := Load(multiProfile, "stg")

	assert.Equal(t, "/nas2/stg/data", lookup(t, root, "app.storage"))
	hosts, ok := tree.LookupList(root, "app.hosts")
	require.True(t, ok)
	assert.Equal(t, []string{"z"}, tree.StringList(hosts))
}

func TestLoad_ProfileIsolation(t *testing.T) {
	root := Load(multiProfile, "dev")
	assert.NotEqual(t, "/nas2/stg/data", lookup(t, root, "app.storage"))

	hosts, ok := tree.LookupList(root, "app.hosts")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c"}, tree.StringList(hosts))
}

func TestLoad_UnknownProfileFallsBackToBase(t *testing.T) {
	assert.Equal(t, Load(multiProfile, "").String(), Load(multiProfile, "prod").String())
}

func TestLoad_MalformedDocumentSkipped(t *testing.T) {
	text := "a: 1\n---\nb: [unclosed\n---\nc: 3\n"
	root := Load(text, "")

	assert.Equal(t, "1", lookup(t, root, "a"))
	assert.Equal(t, "3", lookup(t, root, "c"))
	assert.False(t, tree.Has(root, "b"))
}

func TestLoad_NonMapDocumentsSkipped(t *testing.T) {
	root := Load("- just\n- a list\n---\nkey: value\n---\n", "")
	assert.Equal(t, []string{"key"}, root.Keys())
}

func TestLoad_Empty(t *testing.T) {
	assert.Equal(t, 0, Load("", "dev").Len())
}

func TestProfileOf(t *testing.T) {
	docs := Parse(multiProfile)
	require.Len(t, docs, 4)

	assert.False(t, docs[0].HasProfile)
	assert.Equal(t, "dev", docs[1].Profile)
	assert.Equal(t, "stg", docs[2].Profile)
	assert.False(t, docs[3].HasProfile)

	// legacy key only counts when it is a string
	m, err := tree.Parse("spring:\n  profiles: [dev]\n")
	require.NoError(t, err)
	_, has := ProfileOf(m.(*tree.Map))
	assert.False(t, has)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file yields empty tree", func(t *testing.T) {
		root := LoadFile(filepath.Join(dir, "nope.yml"), "dev")
		assert.Equal(t, 0, root.Len())
	})

	t.Run("reads and merges", func(t *testing.T) {
		path := filepath.Join(dir, "application.yml")
		require.NoError(t, os.WriteFile(path, []byte(multiProfile), 0644))

		root := LoadFile(path, "dev")
		assert.Equal(t, "/nas1/dev/data", lookup(t, root, "app.storage"))
	})
}

func TestReadSource(t *testing.T) {
	_, found, err := ReadSource(filepath.Join(t.TempDir(), "missing.yml"))
	assert.NoError(t, err)
	assert.False(t, found)

	_, _, err = ReadSource(t.TempDir())
	assert.Error(t, err)
}

func TestCache(t *testing.T) {
	c, err := NewCache(4)
	require.NoError(t, err)

	first := c.Load(multiProfile, "dev")
	second := c.Load(multiProfile, "dev")
	assert.Same(t, first, second)

	_ = c.Load(multiProfile, "stg")
	_ = c.Load(multiProfile+"\nextra: 1\n", "dev")

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(3), misses)

	c.Purge()
	_ = c.Load(multiProfile, "dev")
	_, misses = c.Stats()
	assert.Equal(t, int64(4), misses)

	var nilCache *Cache
	assert.Equal(t, first.String(), nilCache.Load(multiProfile, "dev").String())
}
