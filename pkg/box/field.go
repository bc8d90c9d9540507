package box

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

type Kind uint8

const (
	KindInteger8 Kind = iota + 1
	KindInteger16
	KindInteger24
	KindInteger32
	KindInteger64
	KindBits
	KindFloat32
	KindString
	KindBytes
	KindTable
	KindDescriptor
)

var kindNames = [...]string{
	KindInteger8:   "int8",
	KindInteger16:  "int16",
	KindInteger24:  "int24",
	KindInteger32:  "int32",
	KindInteger64:  "int64",
	KindBits:       "bits",
	KindFloat32:    "float32",
	KindString:     "string",
	KindBytes:      "bytes",
	KindTable:      "table",
	KindDescriptor: "descriptor",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

func (k Kind) IsInteger() bool {
	return k >= KindInteger8 && k <= KindBits
}

// Field is one named value slot of a Box or Descriptor.
// Implementations: *Integer, *Float, *String, *Bytes, *Table, *DescriptorList.
type Field interface {
	Name() string
	Kind() Kind
	Count() int
	ReadOnly() bool
	SetReadOnly(bool)
	// Implicit fields are neither read nor written; their values are derived.
	Implicit() bool
	SetImplicit(bool)
	Read(r *Reader) error
	Write(w *Writer) error
	Generate()
	Dump(w io.Writer, indent int)
}

// column is a Field that can live inside a Table, one value per row.
type column interface {
	Field
	readAt(r *Reader, i int) error
	writeAt(w *Writer, i int) error
	rowBits() int
	resize(n int)
	insertAt(i int)
	deleteAt(i int)
	format(i int) string
}

type base struct {
	name     string
	readOnly bool
	implicit bool
}

func (f *base) Name() string {
	return f.name
}

func (f *base) ReadOnly() bool {
	return f.readOnly
}

func (f *base) SetReadOnly(v bool) {
	f.readOnly = v
}

func (f *base) Implicit() bool {
	return f.implicit
}

func (f *base) SetImplicit(v bool) {
	f.implicit = v
}

// fieldList is the ordered, name-unique field set shared by Box and Descriptor.
type fieldList []Field

func (l *fieldList) add(f Field) error {
	if f.Name() != "" && l.get(f.Name()) != nil {
		return errors.Wrapf(ErrDuplicateField, "%s", f.Name())
	}
	*l = append(*l, f)
	return nil
}

func (l fieldList) get(name string) Field {
	for _, f := range l {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

func (l fieldList) read(r *Reader, mutate func()) error {
	for _, f := range l {
		if mutate != nil {
			mutate()
		}
		if f.Implicit() {
			continue
		}
		if err := f.Read(r); err != nil {
			return errors.WithMessagef(err, "field %s", f.Name())
		}
	}
	if mutate != nil {
		mutate()
	}
	return nil
}

func (l fieldList) write(w *Writer) error {
	for _, f := range l {
		if f.Implicit() {
			continue
		}
		if err := f.Write(w); err != nil {
			return errors.WithMessagef(err, "field %s", f.Name())
		}
	}
	return nil
}

func (l fieldList) dump(w io.Writer, indent int) {
	for _, f := range l {
		if !f.Implicit() {
			f.Dump(w, indent)
		}
	}
}

func dumpValues(w io.Writer, indent int, name string, n int, format func(int) string) {
	switch n {
	case 0:
		fmt.Fprintf(w, "%*s%s = <empty>\n", indent, "", name)
	case 1:
		fmt.Fprintf(w, "%*s%s = %s\n", indent, "", name, format(0))
	default:
		values := make([]string, n)
		for i := range values {
			values[i] = format(i)
		}
		fmt.Fprintf(w, "%*s%s = [%s]\n", indent, "", name, strings.Join(values, ", "))
	}
}
