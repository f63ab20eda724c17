package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutes_AreValidAndUnique(t *testing.T) {
	names := map[string]bool{}
	paths := map[string]bool{}
	for _, r := range Routes() {
		require.NoError(t, r.Validate())
		assert.False(t, names[r.Name], "nome repetido: %s", r.Name)
		assert.False(t, paths[r.Method+" "+r.Path], "path repetido: %s", r.Path)
		names[r.Name] = true
		paths[r.Method+" "+r.Path] = true
	}
}

func TestRoutes_DedupeFieldsAreSentUpstream(t *testing.T) {
	for _, r := range Routes() {
		if r.Dedupe == nil {
			continue
		}
		for _, f := range r.Dedupe.Fields {
			if f == "cod_convenio" && r.Session {
				continue
			}
			assert.Contains(t, r.Required, f, "rota %s deduplica por %s sem exigir o campo", r.Name, f)
		}
	}
}

func TestRoutes_ReturnsFreshCopy(t *testing.T) {
	a := Routes()
	a[0].Required[0] = "mexido"
	b := Routes()
	assert.NotEqual(t, "mexido", b[0].Required[0])
}

func TestFind(t *testing.T) {
	r, ok := Find(Routes(), RouteSasCredStatus)
	require.True(t, ok)
	assert.Equal(t, "GET", r.Method)

	_, ok = Find(Routes(), "nao-existe")
	assert.False(t, ok)
}
