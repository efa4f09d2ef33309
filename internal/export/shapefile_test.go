package export

import (
	"path/filepath"
	"testing"

	shp "github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reifydb/internal/column"
)

func TestColumnsToShapefileWritesPointsAndAttributes(t *testing.T) {
	cols, err := column.FromRows([]string{"lon", "lat", "name"}, [][]column.Value{
		{column.Float64Value(13.4), column.Float64Value(52.5), column.Utf8Value("berlin")},
		{column.Float64Value(2.35), column.Float64Value(48.86), column.Utf8Value("paris")},
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cities.shp")
	err = ColumnsToShapefile(cols, path, Options{XColumn: "lon", YColumn: "lat"})
	require.NoError(t, err)

	reader, err := shp.Open(path)
	require.NoError(t, err)
	defer reader.Close()

	fields := reader.Fields()
	require.Len(t, fields, 1)

	var names []string
	for reader.Next() {
		idx, shape := reader.Shape()
		point, ok := shape.(*shp.Point)
		require.True(t, ok)
		if idx == 0 {
			assert.InDelta(t, 13.4, point.X, 0.0001)
			assert.InDelta(t, 52.5, point.Y, 0.0001)
		}
		names = append(names, reader.ReadAttribute(idx, 0))
	}
	assert.Equal(t, []string{"berlin", "paris"}, names)
}

func TestColumnsToShapefileRequiresCoordinateColumns(t *testing.T) {
	cols, err := column.FromRows([]string{"name"}, [][]column.Value{{column.Utf8Value("berlin")}})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "missing.shp")
	err = ColumnsToShapefile(cols, path, Options{XColumn: "lon", YColumn: "lat"})
	require.Error(t, err)
}
