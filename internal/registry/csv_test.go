package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRegistryCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cables.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCSVAliases(t *testing.T) {
	path := writeRegistryCSV(t, "Cable ID,CableType,Status\n"+
		"EXC-001,EXC,installed\n"+
		"INT-007,,bogus\n"+
		",IAC,installed\n")

	r := testRegistry(t)
	require.NoError(t, r.LoadCSV(path))
	require.Equal(t, 3, r.Len())

	c, ok := r.Get("EXC-001")
	require.True(t, ok)
	assert.Equal(t, TypeExport, c.Type)
	assert.Equal(t, StatusInstalled, c.Status)

	c, ok = r.Get("INT-007")
	require.True(t, ok)
	assert.Equal(t, TypeInterArray, c.Type, "missing type inferred from the identifier")
	assert.Equal(t, StatusNotInstalled, c.Status, "unknown status falls back")

	assert.Contains(t, r.Validate(), "some cable IDs are empty",
		"rows load verbatim, validation reports them")
}

func TestLoadCSVByteOrderMark(t *testing.T) {
	path := writeRegistryCSV(t, "\uFEFFcable_id,type,status\nEXC-001,EXC,installed\n")

	r := testRegistry(t)
	require.NoError(t, r.LoadCSV(path))
	_, ok := r.Get("EXC-001")
	assert.True(t, ok)
}

func TestLoadCSVMissingIDColumn(t *testing.T) {
	path := writeRegistryCSV(t, "type,status\nEXC,installed\n")

	r := testRegistry(t)
	err := r.LoadCSV(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cable_id")
}

func TestLoadCSVMetadata(t *testing.T) {
	path := writeRegistryCSV(t, "cable_id,metadata\n"+
		`EXC-001,"{""client"":""north farm"",""length_km"":42.5}"`+"\n"+
		"EXC-002,not-json\n")

	r := testRegistry(t)
	require.NoError(t, r.LoadCSV(path))

	c, _ := r.Get("EXC-001")
	assert.Equal(t, "north farm", c.Metadata["client"])
	assert.Equal(t, 42.5, c.Metadata["length_km"])

	c, _ = r.Get("EXC-002")
	assert.Empty(t, c.Metadata, "unparseable metadata is dropped, not fatal")
}

func TestCSVRoundTrip(t *testing.T) {
	r := testRegistry(t)
	require.NoError(t, r.Add(Cable{
		ID:       "EXC-001",
		Status:   StatusBurialComplete,
		Metadata: map[string]any{"description": "north export route"},
	}))
	require.NoError(t, r.Add(Cable{ID: "IAC-014", Status: StatusInstalled}))

	path := filepath.Join(t.TempDir(), "registry.csv")
	require.NoError(t, r.SaveCSV(path))

	loaded := testRegistry(t)
	require.NoError(t, loaded.LoadCSV(path))
	require.Equal(t, 2, loaded.Len())

	c, ok := loaded.Get("EXC-001")
	require.True(t, ok)
	assert.Equal(t, TypeExport, c.Type)
	assert.Equal(t, StatusBurialComplete, c.Status)
	assert.Equal(t, "north export route", c.Metadata["description"])

	assert.Empty(t, loaded.Validate())
}

func TestSaveCSVEmptyRegistry(t *testing.T) {
	r := testRegistry(t)
	err := r.SaveCSV(filepath.Join(t.TempDir(), "registry.csv"))
	assert.Error(t, err)
}
