// Package export implements the shapefile/columnar export supplemental
// feature: ColumnsToShapefile renders a query result's columnar batch
// as ESRI Shapefile point features, the write-side mirror of the
// teacher's ImportShapefile (internal/importer/shapefile.go), which
// only reads shapefiles into tables and has no export path of its own.
package export

import (
	"fmt"

	shp "github.com/jonas-p/go-shp"

	"reifydb/internal/column"
	"reifydb/internal/reifyerr"
)

// Options names which columns of a result set hold point geometry.
// Every other column becomes a DBF attribute field. StringFieldLen
// bounds string attribute width; the DBF format caps a field at 254
// bytes, so exporting a wider text column truncates rather than errors.
type Options struct {
	XColumn        string
	YColumn        string
	StringFieldLen uint8
}

func (o Options) withDefaults() Options {
	if o.StringFieldLen == 0 {
		o.StringFieldLen = 254
	}
	return o
}

// ColumnsToShapefile writes cols to path as ESRI Shapefile point
// features (go-shp creates the accompanying .shx/.dbf siblings).
// Numeric attribute columns become shp.FloatField, everything else a
// shp.StringField rendered through Value.String(), the same
// canonical-text rendering internal/mutate/internal/volcano use for
// key construction.
func ColumnsToShapefile(cols *column.Columns, path string, opts Options) error {
	opts = opts.withDefaults()

	xi, yi := -1, -1
	attrIdx := make([]int, 0, len(cols.Cols))
	for i, c := range cols.Cols {
		switch c.Name {
		case opts.XColumn:
			xi = i
		case opts.YColumn:
			yi = i
		default:
			attrIdx = append(attrIdx, i)
		}
	}
	if xi < 0 || yi < 0 {
		return reifyerr.Constraint(reifyerr.CodeConstraintType,
			fmt.Sprintf("shapefile export: coordinate columns %q/%q not found in result set", opts.XColumn, opts.YColumn))
	}

	writer, err := shp.Create(path, shp.POINT)
	if err != nil {
		return reifyerr.IO(reifyerr.CodeIO, "shapefile export: "+err.Error())
	}
	defer writer.Close()

	numeric := make([]bool, len(attrIdx))
	fields := make([]shp.Field, len(attrIdx))
	for fi, ci := range attrIdx {
		c := cols.Cols[ci]
		if c.Data.Kind().IsNumeric() {
			numeric[fi] = true
			fields[fi] = shp.FloatField(c.Name, 19, 8)
		} else {
			fields[fi] = shp.StringField(c.Name, opts.StringFieldLen)
		}
	}
	writer.SetFields(fields)

	rowCount := cols.RowCount()
	for r := 0; r < rowCount; r++ {
		x, _ := cols.Cols[xi].Data.GetValue(r).AsFloat64()
		y, _ := cols.Cols[yi].Data.GetValue(r).AsFloat64()
		record := writer.Write(&shp.Point{X: x, Y: y})

		for fi, ci := range attrIdx {
			v := cols.Cols[ci].Data.GetValue(r)
			var attr any
			if numeric[fi] {
				f, _ := v.AsFloat64()
				attr = f
			} else {
				attr = v.String()
			}
			if err := writer.WriteAttribute(int(record), fi, attr); err != nil {
				return reifyerr.IO(reifyerr.CodeIO, "shapefile export: write attribute: "+err.Error())
			}
		}
	}
	return nil
}
