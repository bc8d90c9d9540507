package box

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/pkg/errors"
)

const (
	BasicBoxLen = 8
	FullBoxLen  = 12
	maxBoxSize  = 0xFFFFFFFF
)

func f(s string) [4]byte {
	return [4]byte([]byte(s))
}

// TypeString renders a four-character code, escaping non-printable bytes.
func TypeString(t [4]byte) string {
	for _, c := range t {
		if c < 0x20 || c > 0x7e {
			return fmt.Sprintf("%q", string(t[:]))
		}
	}
	return string(t[:])
}

//	aligned(8) class Box (unsigned int(32) boxtype, optional unsigned int(8)[16] extended_type) {
//	    unsigned int(32) size;
//	    unsigned int(32) type = boxtype;
//	    if (size==1) {
//	       unsigned int(64) largesize;
//	    } else if (size==0) {
//	       // box extends to end of file
//	    }
//	    if (boxtype=='uuid') {
//	    unsigned int(8)[16] usertype = extended_type;
//	 }
//	}
type Header struct {
	Size       uint64 // whole box including the header; resolved by the caller when ToEnd
	Type       [4]byte
	UserType   [16]byte
	HeaderSize int
	LargeSize  bool
	ToEnd      bool
}

func ReadHeader(r io.Reader) (h Header, err error) {
	var buf [8]byte
	if _, err = io.ReadFull(r, buf[:]); err != nil {
		return
	}
	h.Size = uint64(binary.BigEndian.Uint32(buf[:4]))
	copy(h.Type[:], buf[4:])
	h.HeaderSize = BasicBoxLen
	switch h.Size {
	case 1:
		if _, err = io.ReadFull(r, buf[:]); err != nil {
			return
		}
		h.Size = binary.BigEndian.Uint64(buf[:])
		h.LargeSize = true
		h.HeaderSize += 8
	case 0:
		h.ToEnd = true
	}
	if h.Type == TypeUUID {
		if _, err = io.ReadFull(r, h.UserType[:]); err != nil {
			return
		}
		h.HeaderSize += 16
	}
	if !h.ToEnd && h.Size < uint64(h.HeaderSize) {
		err = errors.Wrapf(ErrMalformed, "box %s size %d smaller than its header", TypeString(h.Type), h.Size)
	}
	return
}

func (h *Header) headerLen() int {
	n := BasicBoxLen
	if h.LargeSize {
		n += 8
	}
	if h.Type == TypeUUID {
		n += 16
	}
	return n
}

// encode renders the header for a box whose total size is size.
func (h *Header) encode(size uint64) []byte {
	b := make([]byte, h.headerLen())
	copy(b[4:8], h.Type[:])
	switch {
	case h.LargeSize:
		binary.BigEndian.PutUint32(b, 1)
		binary.BigEndian.PutUint64(b[8:], size)
	case h.ToEnd:
	default:
		binary.BigEndian.PutUint32(b, uint32(size))
	}
	if h.Type == TypeUUID {
		copy(b[len(b)-16:], h.UserType[:])
	}
	return b
}

// Box is one node of the container tree: an ordered field set and, for containers, ordered children.
type Box struct {
	Header
	Offset   int64
	def      *Def
	parent   *Box
	fields   fieldList
	children []*Box
	extra    []byte // unparsed trailing payload, written back verbatim
	unloaded bool   // payload left in the stream
}

// New builds an empty box of type t; parent selects parent-specific definitions and may be nil.
func New(t [4]byte, parent *Box) *Box {
	var pt [4]byte
	if parent != nil {
		pt = parent.Type
	}
	return newBox(Lookup(pt, t), t)
}

func newBox(def *Def, t [4]byte) *Box {
	b := &Box{def: def}
	b.Type = t
	b.HeaderSize = BasicBoxLen
	if t == TypeUUID {
		b.HeaderSize += 16
	}
	if def.Fields != nil {
		for _, fd := range def.Fields(b) {
			b.fields.add(fd)
		}
	}
	return b
}

// NewLazy records a box whose payload stays in the stream, such as mdat.
func NewLazy(h Header, offset int64, parent *Box) *Box {
	b := New(h.Type, parent)
	b.Header = h
	b.Offset = offset
	b.parent = parent
	b.unloaded = true
	return b
}

// NewRoot returns the synthetic, headerless root that holds the top-level boxes of a file.
func NewRoot() *Box {
	return &Box{def: rootDef}
}

func (b *Box) isRoot() bool {
	return b.def == rootDef
}

func (b *Box) TypeString() string {
	return TypeString(b.Type)
}

func (b *Box) Parent() *Box {
	return b.parent
}

func (b *Box) Children() []*Box {
	return b.children
}

func (b *Box) Fields() []Field {
	return b.fields
}

func (b *Box) Field(name string) Field {
	return b.fields.get(name)
}

func (b *Box) Integer(name string) *Integer {
	f, _ := b.fields.get(name).(*Integer)
	return f
}

// Extra is the payload that followed the declared fields and children.
func (b *Box) Extra() []byte {
	return b.extra
}

func (b *Box) IsContainer() bool {
	return b.def.Container
}

// IsLazy reports whether the payload of this box type is left in the stream when parsing a file.
func (b *Box) IsLazy() bool {
	return b.def.Lazy
}

func (b *Box) Unloaded() bool {
	return b.unloaded
}

func (b *Box) AddField(fd Field) error {
	return b.fields.add(fd)
}

// Child returns the i-th child of type t, or nil.
func (b *Box) Child(t [4]byte, i int) *Box {
	for _, c := range b.children {
		if c.Type == t {
			if i == 0 {
				return c
			}
			i--
		}
	}
	return nil
}

func (b *Box) ChildCount(t [4]byte) (n int) {
	for _, c := range b.children {
		if c.Type == t {
			n++
		}
	}
	return
}

func (b *Box) AddChild(c *Box) {
	c.parent = b
	b.children = append(b.children, c)
}

func (b *Box) InsertChild(c *Box, i int) error {
	if i < 0 || i > len(b.children) {
		return errors.Wrapf(ErrOutOfRange, "insert %s at %d of %d", c.TypeString(), i, len(b.children))
	}
	c.parent = b
	b.children = slices.Insert(b.children, i, c)
	return nil
}

func (b *Box) RemoveChild(c *Box) error {
	i := slices.Index(b.children, c)
	if i < 0 {
		return errors.Wrapf(ErrNotFound, "%s is not a child of %s", c.TypeString(), b.TypeString())
	}
	b.children = slices.Delete(b.children, i, i+1)
	c.parent = nil
	return nil
}

// NewChild appends a generated child of type t.
func (b *Box) NewChild(t [4]byte) *Box {
	c := New(t, b)
	b.AddChild(c)
	c.Generate()
	return c
}

func (b *Box) mutate() {
	if b.def.Mutate != nil {
		b.def.Mutate(b)
	}
}

// Relayout applies the layout hook again, for example after the version of a full box changed.
func (b *Box) Relayout() {
	b.mutate()
}

// Generate fills default values and creates the children a box must hold exactly once.
func (b *Box) Generate() {
	for _, fd := range b.fields {
		fd.Generate()
	}
	b.extra = nil
	if b.def.Generate != nil {
		b.def.Generate(b)
	}
	b.mutate()
	for _, c := range b.def.Children {
		if c.Required && c.OnlyOne && b.Child(c.Type, 0) == nil {
			b.NewChild(c.Type)
		}
	}
}

// Decode parses a box from its payload. h describes the header that preceded it at offset.
func Decode(h Header, payload []byte, offset int64, parent *Box, opts *ParseOptions) (*Box, error) {
	r := NewReader(payload, offset+int64(h.HeaderSize), opts)
	if parent != nil {
		r.depth = parent.depth() + 1
	}
	return decodeBox(h, r, offset, parent)
}

func (b *Box) depth() (n int) {
	for p := b.parent; p != nil && !p.isRoot(); p = p.parent {
		n++
	}
	return
}

func decodeBox(h Header, r *Reader, offset int64, parent *Box) (*Box, error) {
	var pt [4]byte
	if parent != nil {
		pt = parent.Type
	}
	def := Lookup(pt, h.Type)
	if r.opts.Skip != nil && r.opts.Skip(h.Type) {
		def = opaqueDef
	}
	b := newBox(def, h.Type)
	b.Header = h
	b.Offset = offset
	b.parent = parent
	if err := b.Read(r); err != nil {
		return nil, err
	}
	return b, nil
}

// Read decodes fields, children and trailing bytes from a reader positioned at the payload.
func (b *Box) Read(r *Reader) error {
	if err := b.fields.read(r, b.mutate); err != nil {
		return errors.WithMessagef(err, "%s at offset %d", b.TypeString(), b.Offset)
	}
	r.Align()
	if b.def.Container {
		if err := b.ReadChildren(r); err != nil {
			return err
		}
	}
	if r.Remaining() > 0 {
		b.extra = slices.Clone(r.Peek())
		r.ReadN(r.Remaining())
	}
	if b.def.Finish != nil {
		b.def.Finish(b)
	}
	b.checkChildren(r.logger())
	return nil
}

// ReadChildren decodes consecutive boxes until fewer bytes than a header remain.
func (b *Box) ReadChildren(r *Reader) error {
	for r.Remaining() >= BasicBoxLen {
		offset := r.Position()
		rest := r.Peek()
		h, err := ReadHeader(bytes.NewReader(rest))
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return errors.Wrapf(ErrMalformed, "truncated header in %s at offset %d", b.TypeString(), offset)
			}
			return errors.WithMessagef(err, "in %s at offset %d", b.TypeString(), offset)
		}
		if h.ToEnd {
			h.Size = uint64(len(rest))
		}
		if h.Size > uint64(len(rest)) {
			return errors.Wrapf(ErrMalformed, "box %s at offset %d: size %d exceeds the %d bytes left in %s", TypeString(h.Type), offset, h.Size, len(rest), b.TypeString())
		}
		data, _ := r.ReadN(int(h.Size))
		sub, err := r.sub(data[h.HeaderSize:], offset+int64(h.HeaderSize))
		if err != nil {
			return err
		}
		c, err := decodeBox(h, sub, offset, b)
		if err != nil {
			return err
		}
		b.children = append(b.children, c)
	}
	return nil
}

func (b *Box) checkChildren(log *slog.Logger) {
	for _, c := range b.def.Children {
		n := b.ChildCount(c.Type)
		if c.Required && n == 0 {
			log.Warn("required child missing", "box", b.TypeString(), "child", TypeString(c.Type), "offset", b.Offset)
		} else if c.OnlyOne && n > 1 {
			log.Warn("child appears more than once", "box", b.TypeString(), "child", TypeString(c.Type), "count", n)
		}
	}
}

// Validate checks child cardinality across the subtree.
func (b *Box) Validate() error {
	for _, c := range b.def.Children {
		n := b.ChildCount(c.Type)
		if c.Required && n == 0 {
			return errors.Wrapf(ErrMalformed, "%s: missing required %s", b.TypeString(), TypeString(c.Type))
		}
		if c.OnlyOne && n > 1 {
			return errors.Wrapf(ErrMalformed, "%s: %d %s children, at most one allowed", b.TypeString(), n, TypeString(c.Type))
		}
	}
	for _, c := range b.children {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Write serializes the box. The header keeps its original form, switching to a 64-bit size
// only when the box no longer fits 32 bits.
func (b *Box) Write(w *Writer) error {
	if b.unloaded {
		return errors.Wrapf(ErrInvalidValue, "%s payload is not loaded", b.TypeString())
	}
	start := w.Len()
	if !b.isRoot() {
		w.Write(make([]byte, b.headerLen()))
	}
	if b.def.Prepare != nil {
		b.def.Prepare(b)
	}
	b.mutate()
	if err := b.fields.write(w); err != nil {
		return errors.WithMessagef(err, "%s", b.TypeString())
	}
	for _, c := range b.children {
		if err := c.Write(w); err != nil {
			return err
		}
	}
	w.Write(b.extra)
	if b.isRoot() {
		return nil
	}
	if !b.def.Container && len(b.fields) == 0 && len(b.extra) == 0 {
		w.logger().Warn("box has no fields", "box", b.TypeString())
	}
	size := uint64(w.Len() - start)
	if size > maxBoxSize && !b.LargeSize {
		w.insert(start+BasicBoxLen, 8)
		b.LargeSize = true
		size += 8
	}
	b.Size, b.HeaderSize = size, b.headerLen()
	copy(w.buf[start:], b.encode(size))
	return nil
}

// Encode serializes the box into a new buffer.
func (b *Box) Encode() ([]byte, error) {
	w := &Writer{}
	if err := b.Write(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func (b *Box) WriteTo(wr io.Writer) (int64, error) {
	data, err := b.Encode()
	if err != nil {
		return 0, err
	}
	n, err := wr.Write(data)
	return int64(n), err
}
