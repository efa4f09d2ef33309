package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImportRoundTrip(t *testing.T) {
	src := newTestCatalog()
	nsID, _ := src.NextID("next_namespace_id")
	_, err := src.Namespaces.Create(1, nsID, 0, "public", NamespaceDef{ID: nsID, Name: "public"})
	require.NoError(t, err)
	tblID, _ := src.NextID("next_table_id")
	_, err = src.Tables.Create(2, tblID, nsID, "orders", TableDef{ID: tblID, NamespaceID: nsID, Name: "orders"})
	require.NoError(t, err)

	snap := src.Export(2)
	raw, err := EncodeSnapshot(snap)
	require.NoError(t, err)

	decoded, err := DecodeSnapshot(raw)
	require.NoError(t, err)
	assert.Equal(t, snap, decoded)

	dst := newTestCatalog()
	require.NoError(t, dst.Import(decoded))

	found, ok, err := dst.Tables.ByName(nsID, "orders", 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tblID, found.ID)
}

func TestImportSkipsExistingNames(t *testing.T) {
	c := newTestCatalog()
	id, _ := c.NextID("next_namespace_id")
	_, err := c.Namespaces.Create(1, id, 0, "public", NamespaceDef{ID: id, Name: "public"})
	require.NoError(t, err)

	snap := Snapshot{Version: 1, Namespaces: []NamespaceDef{{ID: 999, Name: "public"}}}
	require.NoError(t, c.Import(snap))

	found, ok, err := c.Namespaces.ByName(0, "public", 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, found.ID)
}
