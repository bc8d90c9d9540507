package box

import (
	"fmt"
	"io"
	"slices"

	"github.com/pkg/errors"
)

// abstract aligned(8) expandable(2^28-1) class BaseDescriptor : bit(8) tag=0 {
// 	// empty. To be filled by classes extending this class.
// }
//
//	int sizeOfInstance = 0;
//	bit(1) nextByte;
//	bit(7) sizeOfInstance;
//	while(nextByte) {
//		bit(1) nextByte;
//		bit(7) sizeByte;
//		sizeOfInstance = sizeOfInstance<<7 | sizeByte;
//	}

const (
	ODescrTag              = 0x01
	IODescrTag             = 0x02
	ESDescrTag             = 0x03
	DecoderConfigDescrTag  = 0x04
	DecSpecificInfoTag     = 0x05
	SLConfigDescrTag       = 0x06
	ESIDIncDescrTag        = 0x0E
	ESIDRefDescrTag        = 0x0F
	FileIODescrTag         = 0x10
	FileODescrTag          = 0x11
	maxDescriptorSizeBytes = 4
)

type DescriptorDef struct {
	Tag  uint8
	Name string
	// Fields builds a fresh field set; d is passed so conditional fields can be wired up.
	Fields   func(d *Descriptor) []Field
	Mutate   func(d *Descriptor)
	Generate func(d *Descriptor)
}

var descriptorDefs = map[uint8]*DescriptorDef{}

func RegisterDescriptor(defs ...*DescriptorDef) {
	for _, def := range defs {
		descriptorDefs[def.Tag] = def
	}
}

var opaqueDescriptor = &DescriptorDef{
	Name: "descriptor",
	Fields: func(*Descriptor) []Field {
		return []Field{NewRestBytes("data")}
	},
}

// Descriptor is an MPEG-4 Systems object descriptor: a tag, an expandable size and a field set.
type Descriptor struct {
	Tag     uint8
	def     *DescriptorDef
	fields  fieldList
	sizeLen int
	extra   []byte
}

func NewDescriptor(tag uint8) *Descriptor {
	def, ok := descriptorDefs[tag]
	if !ok {
		def = opaqueDescriptor
	}
	d := &Descriptor{Tag: tag, def: def}
	for _, f := range def.Fields(d) {
		d.fields.add(f)
	}
	return d
}

func (d *Descriptor) Name() string {
	if d.def == opaqueDescriptor {
		return fmt.Sprintf("descriptor(0x%02x)", d.Tag)
	}
	return d.def.Name
}

func (d *Descriptor) Field(name string) Field {
	return d.fields.get(name)
}

func (d *Descriptor) Fields() []Field {
	return d.fields
}

func (d *Descriptor) Integer(name string) *Integer {
	f, _ := d.fields.get(name).(*Integer)
	return f
}

func (d *Descriptor) mutate() {
	if d.def.Mutate != nil {
		d.def.Mutate(d)
	}
}

// read decodes size and payload; the tag has already been consumed.
func (d *Descriptor) read(r *Reader) error {
	var size uint64
	for i := 0; ; i++ {
		if i == maxDescriptorSizeBytes {
			return errors.Wrapf(ErrMalformed, "descriptor 0x%02x size longer than %d bytes at offset %d", d.Tag, maxDescriptorSizeBytes, r.Position())
		}
		next, err := r.ReadBits(1)
		if err != nil {
			return err
		}
		b, err := r.ReadBits(7)
		if err != nil {
			return err
		}
		size = size<<7 | b
		if next == 0 {
			d.sizeLen = i + 1
			break
		}
	}
	r.Align()
	start := r.Position()
	payload, err := r.ReadN(int(size))
	if err != nil {
		return errors.WithMessagef(err, "descriptor 0x%02x", d.Tag)
	}
	sub, err := r.sub(payload, start)
	if err != nil {
		return err
	}
	if err = d.fields.read(sub, d.mutate); err != nil {
		return errors.WithMessagef(err, "%s", d.Name())
	}
	if sub.Remaining() > 0 {
		d.extra = slices.Clone(sub.Peek())
	}
	return nil
}

func (d *Descriptor) Write(w *Writer) error {
	d.mutate()
	body := &Writer{Logger: w.Logger}
	if err := d.fields.write(body); err != nil {
		return errors.WithMessagef(err, "%s", d.Name())
	}
	body.Write(d.extra)
	size := body.Len()
	n := 1
	for size>>(7*n) > 0 {
		n++
	}
	if n > maxDescriptorSizeBytes {
		return errors.Wrapf(ErrInvalidValue, "%s: %d bytes exceed descriptor size limit", d.Name(), size)
	}
	n = max(n, d.sizeLen)
	w.WriteUint(uint64(d.Tag), 1)
	for i := n - 1; i >= 0; i-- {
		next := uint64(0)
		if i > 0 {
			next = 1
		}
		w.WriteBits(next, 1)
		w.WriteBits(uint64(size>>(7*i)), 7)
	}
	w.Write(body.Bytes())
	return nil
}

func (d *Descriptor) Generate() {
	for _, f := range d.fields {
		f.Generate()
	}
	d.extra = nil
	d.sizeLen = maxDescriptorSizeBytes
	if d.def.Generate != nil {
		d.def.Generate(d)
	}
	d.mutate()
}

func (d *Descriptor) Dump(w io.Writer, indent int) {
	fmt.Fprintf(w, "%*s%s (tag 0x%02x)\n", indent, "", d.Name(), d.Tag)
	d.fields.dump(w, indent+2)
	if len(d.extra) > 0 {
		fmt.Fprintf(w, "%*s<%d trailing bytes>\n", indent+2, "", len(d.extra))
	}
}

// DescriptorList is a Field holding consecutive descriptors whose tags fall in [tagStart, tagEnd].
type DescriptorList struct {
	base
	tagStart, tagEnd uint8
	required         bool
	onlyOne          bool
	values           []*Descriptor
}

func NewDescriptorList(name string, tagStart, tagEnd uint8, required, onlyOne bool) *DescriptorList {
	return &DescriptorList{base: base{name: name}, tagStart: tagStart, tagEnd: tagEnd, required: required, onlyOne: onlyOne}
}

func (l *DescriptorList) Kind() Kind {
	return KindDescriptor
}

func (l *DescriptorList) Count() int {
	return len(l.values)
}

func (l *DescriptorList) Descriptor(i int) *Descriptor {
	if i < 0 || i >= len(l.values) {
		return nil
	}
	return l.values[i]
}

// SetTags changes the accepted tag range; end 0 means the single tag start.
func (l *DescriptorList) SetTags(start, end uint8) {
	if end == 0 {
		end = start
	}
	l.tagStart, l.tagEnd = start, end
}

func (l *DescriptorList) accepts(tag uint8) bool {
	return tag >= l.tagStart && tag <= l.tagEnd
}

// AddDescriptor appends a generated descriptor of the given tag.
func (l *DescriptorList) AddDescriptor(tag uint8) (*Descriptor, error) {
	if !l.accepts(tag) {
		return nil, errors.Wrapf(ErrTypeMismatch, "%s: tag 0x%02x outside 0x%02x-0x%02x", l.name, tag, l.tagStart, l.tagEnd)
	}
	if l.onlyOne && len(l.values) > 0 {
		return nil, errors.Wrapf(ErrInvalidValue, "%s holds only one descriptor", l.name)
	}
	d := NewDescriptor(tag)
	d.Generate()
	l.values = append(l.values, d)
	return d, nil
}

func (l *DescriptorList) RemoveDescriptor(i int) error {
	if i < 0 || i >= len(l.values) {
		return errors.Wrapf(ErrOutOfRange, "%s[%d] of %d", l.name, i, len(l.values))
	}
	l.values = slices.Delete(l.values, i, i+1)
	return nil
}

func (l *DescriptorList) Read(r *Reader) error {
	l.values = l.values[:0]
	for r.Remaining() > 0 {
		tag := r.Peek()[0]
		if !l.accepts(tag) {
			break
		}
		r.ReadN(1)
		d := NewDescriptor(tag)
		if err := d.read(r); err != nil {
			return err
		}
		l.values = append(l.values, d)
		if l.onlyOne {
			break
		}
	}
	if l.required && len(l.values) == 0 {
		r.logger().Warn("required descriptor missing", "field", l.name, "offset", r.Position())
	}
	return nil
}

func (l *DescriptorList) Write(w *Writer) error {
	for _, d := range l.values {
		if err := d.Write(w); err != nil {
			return err
		}
	}
	return nil
}

// Generate empties the list, then creates the one descriptor a required single-tag list must hold.
func (l *DescriptorList) Generate() {
	l.values = nil
	if l.required && l.onlyOne && l.tagStart == l.tagEnd {
		l.AddDescriptor(l.tagStart)
	}
}

func (l *DescriptorList) Dump(w io.Writer, indent int) {
	if l.name != "" {
		fmt.Fprintf(w, "%*s%s (%d)\n", indent, "", l.name, len(l.values))
		indent += 2
	}
	for _, d := range l.values {
		d.Dump(w, indent)
	}
}
