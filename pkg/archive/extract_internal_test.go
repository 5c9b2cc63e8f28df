package archive

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryPath(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "restore", "base")

	got, err := entryPath(root, "event1/sfincs.inp")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "event1", "sfincs.inp"), got)

	got, err = entryPath(root, "static/../static/topo.tif")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "static", "topo.tif"), got)

	for _, name := range []string{"../evil", "a/../../evil", "/etc/passwd", "static/../../base2/x"} {
		_, err := entryPath(root, name)
		assert.ErrorIs(t, err, ErrUnsafeEntry, name)
	}
}
