package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "features.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := writeCatalog(t, `
features:
  - id: auth
    name: Authentication
    description: Login, sessions, and credential handling
  - id: billing
    name: Billing
    description: Invoices and payments
`)

	features, err := Load(path)
	require.NoError(t, err)
	require.Len(t, features, 2)
	assert.Equal(t, "auth", features[0].ID)
	assert.Equal(t, "Authentication", features[0].Name)
	assert.Equal(t, "billing", features[1].ID)
}

func TestLoad_MissingFileIsEmptyCatalog(t *testing.T) {
	t.Parallel()

	features, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Nil(t, features)
}

func TestLoad_RejectsDuplicateIDs(t *testing.T) {
	t.Parallel()

	path := writeCatalog(t, `
features:
  - id: auth
    name: Authentication
  - id: auth
    name: Authorization
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestLoad_RejectsMissingID(t *testing.T) {
	t.Parallel()

	path := writeCatalog(t, `
features:
  - name: Nameless
    description: No id set
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	t.Parallel()

	path := writeCatalog(t, "features: [not: closed")
	_, err := Load(path)
	assert.Error(t, err)
}
