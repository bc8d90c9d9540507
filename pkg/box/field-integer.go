package box

import (
	"fmt"
	"io"
	"slices"

	"github.com/pkg/errors"
)

// Integer holds one or more unsigned values of a fixed byte width (1,2,3,4,8) or a bit width (1..64).
type Integer struct {
	base
	width  int // bytes, 0 for bit fields
	bits   int
	signed bool
	values []uint64
}

func NewInteger(name string, width int) *Integer {
	return &Integer{base: base{name: name}, width: width, bits: width * 8, values: make([]uint64, 1)}
}

// NewIntegers is a fixed run of n values, such as a transformation matrix.
func NewIntegers(name string, width, n int) *Integer {
	f := NewInteger(name, width)
	f.resize(n)
	return f
}

func NewBits(name string, bits int) *Integer {
	return &Integer{base: base{name: name}, bits: bits, values: make([]uint64, 1)}
}

// Signed marks the value as two's complement for Int and Dump.
func (f *Integer) Signed() *Integer {
	f.signed = true
	return f
}

func (f *Integer) Kind() Kind {
	switch f.width {
	case 1:
		return KindInteger8
	case 2:
		return KindInteger16
	case 3:
		return KindInteger24
	case 4:
		return KindInteger32
	case 8:
		return KindInteger64
	}
	return KindBits
}

func (f *Integer) Count() int {
	return len(f.values)
}

// Width is the encoded size in bytes, or 0 for bit fields.
func (f *Integer) Width() int {
	return f.width
}

func (f *Integer) Bits() int {
	return f.bits
}

// SetWidth changes the encoded byte width, truncating values that no longer fit.
func (f *Integer) SetWidth(width int) {
	f.width, f.bits = width, width*8
	for i := range f.values {
		f.values[i] &= f.mask()
	}
}

// SetBits turns the field into an unaligned bit field of n bits.
func (f *Integer) SetBits(n int) {
	f.width, f.bits = 0, n
	for i := range f.values {
		f.values[i] &= f.mask()
	}
}

func (f *Integer) mask() uint64 {
	if f.bits >= 64 {
		return ^uint64(0)
	}
	return 1<<uint(f.bits) - 1
}

func (f *Integer) Value(i int) uint64 {
	if i < 0 || i >= len(f.values) {
		return 0
	}
	return f.values[i]
}

// Int sign-extends Value(i) when the field is signed.
func (f *Integer) Int(i int) int64 {
	v := f.Value(i)
	if f.signed && f.bits < 64 && v&(1<<uint(f.bits-1)) != 0 {
		v |= ^f.mask()
	}
	return int64(v)
}

func (f *Integer) SetValue(v uint64, i int) error {
	if f.readOnly {
		return errors.Wrapf(ErrReadOnly, "%s", f.name)
	}
	if i < 0 || i >= len(f.values) {
		return errors.Wrapf(ErrOutOfRange, "%s[%d] of %d", f.name, i, len(f.values))
	}
	f.values[i] = v & f.mask()
	return nil
}

func (f *Integer) SetInt(v int64, i int) error {
	return f.SetValue(uint64(v), i)
}

func (f *Integer) AddValue(v uint64) {
	f.values = append(f.values, v&f.mask())
}

func (f *Integer) InsertValue(v uint64, i int) error {
	if i < 0 || i > len(f.values) {
		return errors.Wrapf(ErrOutOfRange, "%s insert at %d of %d", f.name, i, len(f.values))
	}
	f.values = slices.Insert(f.values, i, v&f.mask())
	return nil
}

func (f *Integer) DeleteValue(i int) error {
	if i < 0 || i >= len(f.values) {
		return errors.Wrapf(ErrOutOfRange, "%s delete at %d of %d", f.name, i, len(f.values))
	}
	f.values = slices.Delete(f.values, i, i+1)
	return nil
}

func (f *Integer) IncrementValue(delta int64, i int) error {
	return f.SetValue(uint64(int64(f.Value(i))+delta), i)
}

func (f *Integer) SetCount(n int) {
	f.resize(n)
}

func (f *Integer) resize(n int) {
	if n <= cap(f.values) {
		f.values = f.values[:n]
		clear(f.values)
		return
	}
	f.values = make([]uint64, n)
}

func (f *Integer) insertAt(i int) {
	f.values = slices.Insert(f.values, i, 0)
}

func (f *Integer) deleteAt(i int) {
	f.values = slices.Delete(f.values, i, i+1)
}

func (f *Integer) rowBits() int {
	return f.bits
}

func (f *Integer) readAt(r *Reader, i int) (err error) {
	if f.width > 0 {
		f.values[i], err = r.ReadUint(f.width)
	} else {
		f.values[i], err = r.ReadBits(f.bits)
	}
	return
}

func (f *Integer) writeAt(w *Writer, i int) error {
	if f.width > 0 {
		w.WriteUint(f.values[i], f.width)
	} else {
		w.WriteBits(f.values[i], f.bits)
	}
	return nil
}

// Read decodes Count values; tables decode their rows through readAt instead.
func (f *Integer) Read(r *Reader) error {
	for i := range f.values {
		if err := f.readAt(r, i); err != nil {
			return err
		}
	}
	return nil
}

func (f *Integer) Write(w *Writer) error {
	for i := range f.values {
		f.writeAt(w, i)
	}
	return nil
}

func (f *Integer) Generate() {
	f.resize(len(f.values))
}

func (f *Integer) format(i int) string {
	if f.signed {
		return fmt.Sprint(f.Int(i))
	}
	v := f.Value(i)
	if f.bits > 8 && v > 0xFFFF {
		return fmt.Sprintf("%d (0x%x)", v, v)
	}
	return fmt.Sprint(v)
}

func (f *Integer) Dump(w io.Writer, indent int) {
	dumpValues(w, indent, f.name, len(f.values), f.format)
}
