package box

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/yapingcat/gomedia/go-codec"

	"m7s.live/mp4/pkg/util"
)

type ParseOptions struct {
	Logger   *slog.Logger
	MaxDepth int
	// Skip reports whether a box of the given type is kept as opaque bytes instead of being parsed.
	Skip func(t [4]byte) bool
}

const defaultMaxDepth = 64

// Reader decodes the payload of one box or descriptor. It never reads past the payload.
type Reader struct {
	buf      util.Buffer
	base     int64
	size     int
	bits     *codec.BitStream
	bitsRead int
	depth    int
	opts     *ParseOptions
}

func NewReader(data []byte, offset int64, opts *ParseOptions) *Reader {
	if opts == nil {
		opts = &ParseOptions{}
	}
	return &Reader{buf: data, base: offset, size: len(data), opts: opts}
}

func (r *Reader) sub(data []byte, offset int64) (*Reader, error) {
	max := r.opts.MaxDepth
	if max <= 0 {
		max = defaultMaxDepth
	}
	if r.depth+1 > max {
		return nil, errors.Wrapf(ErrMalformed, "nesting deeper than %d at offset %d", max, offset)
	}
	return &Reader{buf: data, base: offset, size: len(data), depth: r.depth + 1, opts: r.opts}, nil
}

func (r *Reader) logger() *slog.Logger {
	if r.opts.Logger == nil {
		return discard
	}
	return r.opts.Logger
}

// Remaining counts whole bytes not yet consumed; a partly read byte counts as consumed.
func (r *Reader) Remaining() int {
	n := r.buf.Len()
	if r.bits != nil {
		n -= (r.bitsRead + 7) / 8
	}
	return n
}

// Position is the absolute stream offset of the next unread byte.
func (r *Reader) Position() int64 {
	return r.base + int64(r.size-r.Remaining())
}

// Align drops the unread bits of a partly consumed byte.
func (r *Reader) Align() {
	if r.bits == nil {
		return
	}
	r.buf.ReadN((r.bitsRead + 7) / 8)
	r.bits, r.bitsRead = nil, 0
}

// Peek returns the unread bytes without consuming them.
func (r *Reader) Peek() []byte {
	r.Align()
	return r.buf
}

// ReadN returns the next n bytes. The slice aliases the payload.
func (r *Reader) ReadN(n int) ([]byte, error) {
	r.Align()
	if !r.buf.CanReadN(n) {
		return nil, errors.Wrapf(ErrMalformed, "need %d bytes at offset %d, %d left", n, r.Position(), r.buf.Len())
	}
	return r.buf.ReadN(n), nil
}

func (r *Reader) ReadUint(size int) (uint64, error) {
	b, err := r.ReadN(size)
	if err != nil {
		return 0, err
	}
	return util.ReadBE[uint64](b), nil
}

func (r *Reader) ReadBits(n int) (v uint64, err error) {
	if r.bits == nil {
		r.bits = codec.NewBitStream(r.buf)
		r.bitsRead = 0
	}
	if r.bits.RemainBits() < n {
		return 0, errors.Wrapf(ErrMalformed, "need %d bits at offset %d", n, r.Position())
	}
	for n > 0 {
		k := min(n, 8)
		v = v<<uint(k) | r.bits.GetBits(k)
		r.bitsRead += k
		n -= k
	}
	return
}

// Writer encodes boxes into memory. Bit writes go through a BitStreamWriter until the next
// byte-aligned write flushes them.
type Writer struct {
	buf         util.Buffer
	bits        *codec.BitStreamWriter
	bitsWritten int
	Logger      *slog.Logger
}

func (w *Writer) logger() *slog.Logger {
	if w.Logger == nil {
		return discard
	}
	return w.Logger
}

// Align pads a partly written byte with zero bits and flushes it.
func (w *Writer) Align() {
	if w.bits == nil {
		return
	}
	if pad := (8 - w.bitsWritten%8) % 8; pad > 0 {
		w.bits.PutUint8(0, pad)
		w.bitsWritten += pad
	}
	w.buf.Write(w.bits.Bits()[:w.bitsWritten/8])
	w.bits, w.bitsWritten = nil, 0
}

func (w *Writer) Write(p []byte) {
	w.Align()
	w.buf.Write(p)
}

func (w *Writer) WriteUint(v uint64, size int) {
	w.Align()
	w.buf.WriteUint(v, size)
}

// WriteBits appends the low n bits of v, most significant first.
func (w *Writer) WriteBits(v uint64, n int) {
	if w.bits == nil {
		w.bits = codec.NewBitStreamWriter(16)
	}
	for n > 0 {
		k := n % 8
		if k == 0 {
			k = 8
		}
		n -= k
		w.bits.PutUint8(uint8(v>>uint(n))&uint8(1<<uint(k)-1), k)
		w.bitsWritten += k
	}
}

// Len flushes pending bits and returns the number of bytes written.
func (w *Writer) Len() int {
	w.Align()
	return w.buf.Len()
}

func (w *Writer) Bytes() []byte {
	w.Align()
	return w.buf
}

func (w *Writer) patch(at int, v uint64, size int) {
	util.PutBE(w.buf[at:at+size], v)
}

// insert opens n zero bytes at offset at.
func (w *Writer) insert(at, n int) {
	w.buf.Malloc(n)
	copy(w.buf[at+n:], w.buf[at:len(w.buf)-n])
	clear(w.buf[at : at+n])
}

var discard = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }
