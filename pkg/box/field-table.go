package box

import (
	"fmt"
	"io"
	"math/bits"

	"github.com/pkg/errors"
)

// Table is a run of rows, one value per column per row. Its row count lives in another
// Integer field of the same box, or, when count is nil, is whatever fits in the rest of the payload.
type Table struct {
	base
	count   *Integer
	columns []column
}

func NewTable(name string, count *Integer, columns ...Field) *Table {
	t := &Table{base: base{name: name}, count: count}
	for _, c := range columns {
		t.columns = append(t.columns, c.(column))
	}
	t.resize(0)
	return t
}

func (t *Table) Kind() Kind {
	return KindTable
}

// Count is the number of rows.
func (t *Table) Count() int {
	if len(t.columns) == 0 {
		return 0
	}
	return t.columns[0].Count()
}

func (t *Table) Column(name string) Field {
	for _, c := range t.columns {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

func (t *Table) Columns() []Field {
	l := make([]Field, len(t.columns))
	for i, c := range t.columns {
		l[i] = c
	}
	return l
}

func (t *Table) resize(n int) {
	for _, c := range t.columns {
		c.resize(n)
	}
}

func (t *Table) syncCount() {
	if t.count != nil {
		t.count.values[0] = uint64(t.Count())
	}
}

// AddRow appends a zero row and bumps the count field.
func (t *Table) AddRow() {
	t.InsertRow(t.Count())
}

func (t *Table) InsertRow(i int) error {
	if i < 0 || i > t.Count() {
		return errors.Wrapf(ErrOutOfRange, "%s insert at %d of %d", t.name, i, t.Count())
	}
	for _, c := range t.columns {
		c.insertAt(i)
	}
	t.syncCount()
	return nil
}

func (t *Table) DeleteRow(i int) error {
	if i < 0 || i >= t.Count() {
		return errors.Wrapf(ErrOutOfRange, "%s delete at %d of %d", t.name, i, t.Count())
	}
	for _, c := range t.columns {
		c.deleteAt(i)
	}
	t.syncCount()
	return nil
}

func (t *Table) rowBits() (n int) {
	for _, c := range t.columns {
		if !c.Implicit() {
			n += c.rowBits()
		}
	}
	return
}

func (t *Table) Read(r *Reader) error {
	rowBits := t.rowBits()
	var rows uint64
	if t.count != nil {
		rows = t.count.Value(0)
		if rowBits == 0 && rows > 0 {
			return errors.Wrapf(ErrMalformed, "table %s: %d rows of unknown size at offset %d", t.name, rows, r.Position())
		}
		hi, lo := bits.Mul64(rows, uint64(rowBits))
		if hi != 0 || lo > uint64(r.Remaining())*8 {
			return errors.Wrapf(ErrMalformed, "table %s: %d rows of %d bits at offset %d, %d bytes left", t.name, rows, rowBits, r.Position(), r.Remaining())
		}
	} else if rowBits > 0 {
		rows = uint64(r.Remaining()) * 8 / uint64(rowBits)
	}
	t.resize(int(rows))
	for i := 0; i < int(rows); i++ {
		for _, c := range t.columns {
			if c.Implicit() {
				continue
			}
			if err := c.readAt(r, i); err != nil {
				return errors.WithMessagef(err, "%s[%d].%s", t.name, i, c.Name())
			}
		}
	}
	r.Align()
	return nil
}

func (t *Table) Write(w *Writer) error {
	rows := t.Count()
	if t.count != nil && t.count.Value(0) != uint64(rows) {
		return errors.Wrapf(ErrMalformed, "table %s: count says %d, %d rows present", t.name, t.count.Value(0), rows)
	}
	for _, c := range t.columns {
		if c.Count() != rows {
			return errors.Wrapf(ErrMalformed, "table %s: column %s has %d of %d rows", t.name, c.Name(), c.Count(), rows)
		}
	}
	for i := 0; i < rows; i++ {
		for _, c := range t.columns {
			if !c.Implicit() {
				c.writeAt(w, i)
			}
		}
	}
	w.Align()
	return nil
}

func (t *Table) Generate() {
	t.resize(0)
	t.syncCount()
}

func (t *Table) Dump(w io.Writer, indent int) {
	rows := t.Count()
	fmt.Fprintf(w, "%*s%s (%d rows)\n", indent, "", t.name, rows)
	for i := 0; i < rows; i++ {
		fmt.Fprintf(w, "%*s[%d]", indent+2, "", i)
		for _, c := range t.columns {
			fmt.Fprintf(w, " %s=%s", c.Name(), c.format(i))
		}
		fmt.Fprintln(w)
	}
}
