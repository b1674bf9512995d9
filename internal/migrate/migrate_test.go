package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesAreOrderedAndEmbedded(t *testing.T) {
	files, err := Files()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "0001_history.sql", files[0])
	assert.IsNonDecreasing(t, files)

	b, err := fs.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(b), "CREATE TABLE IF NOT EXISTS attempts")
}
