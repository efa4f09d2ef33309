package eval

import (
	"reifydb/internal/column"
	"reifydb/internal/reifyerr"
)

// Context carries everything an expression tree needs to resolve
// against one columnar batch: the batch itself, positional bind
// parameters, and named session variables. It is the columnar
// counterpart of the teacher's ExecEnv+Row pair threaded through
// evalExpr.
type Context struct {
	Batch      *column.Columns
	Parameters []column.Value
	Variables  map[string]column.Value
}

func (c *Context) resolveColumn(name string) (column.Column, error) {
	col, ok := c.Batch.ColumnByName(name)
	if !ok {
		return column.Column{}, reifyerr.NotFound(reifyerr.CodeColumnNotFound, "unknown column \""+name+"\"")
	}
	return col, nil
}

func (c *Context) resolveParameter(i int) (column.Value, error) {
	if i < 0 || i >= len(c.Parameters) {
		return column.Value{}, reifyerr.Format(reifyerr.CodeFormatValue, "parameter index out of range")
	}
	return c.Parameters[i], nil
}

func (c *Context) resolveVariable(name string) (column.Value, error) {
	v, ok := c.Variables[name]
	if !ok {
		return column.Value{}, reifyerr.NotFound(reifyerr.CodeColumnNotFound, "unknown variable \""+name+"\"")
	}
	return v, nil
}
