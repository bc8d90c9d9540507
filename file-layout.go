package mp4

import (
	"io"
	"math"
	"slices"

	"github.com/pkg/errors"

	"m7s.live/mp4/pkg/box"
	"m7s.live/mp4/pkg/util"
)

// free space reserved in front of a new mdat: room for a 64-bit mdat header or a few more ftyp brands
const placeholderSize = 16

func isFree(b *box.Box) bool {
	return b != nil && (b.Type == box.TypeFREE || b.Type == box.TypeSKIP)
}

func indexOf(list []*box.Box, b *box.Box) int {
	if i := slices.Index(list, b); i >= 0 {
		return i
	}
	return len(list)
}

// writeFree writes a free box header of size bytes at offset and returns the matching node.
// The payload is zeroed when zero is set and left as it is otherwise.
func (f *File) writeFree(offset int64, size uint64, zero bool) (*box.Box, error) {
	if size < box.BasicBoxLen || size > math.MaxUint32 {
		return nil, errors.Wrapf(ErrOutOfRange, "free box of %d bytes", size)
	}
	var header util.Buffer
	header.WriteUint32(uint32(size))
	header.Write(box.TypeFREE[:])
	if err := f.writeAt(offset, header); err != nil {
		return nil, err
	}
	if zero {
		zeros := make([]byte, min(size-box.BasicBoxLen, 32<<10))
		for left := size - box.BasicBoxLen; left > 0; {
			n := min(left, uint64(len(zeros)))
			if _, err := f.ws.Write(zeros[:n]); err != nil {
				return nil, errors.Wrap(err, "zero free box")
			}
			left -= n
		}
	}
	return box.NewLazy(box.Header{Type: box.TypeFREE, Size: size, HeaderSize: box.BasicBoxLen}, offset, f.root), nil
}

// blank overwrites b in the stream with a zeroed free box of the same size.
func (f *File) blank(b *box.Box) error {
	free, err := f.writeFree(b.Offset, b.Size, true)
	if err != nil {
		return err
	}
	i := indexOf(f.root.Children(), b)
	f.root.RemoveChild(b)
	return f.root.InsertChild(free, i)
}

// beginMdat writes the free placeholder and an empty mdat header at pos.
func (f *File) beginMdat(pos int64) error {
	var b util.Buffer
	b.WriteUint32(placeholderSize)
	b.Write(box.TypeFREE[:])
	b.Write(make([]byte, placeholderSize-box.BasicBoxLen))
	b.WriteUint32(box.BasicBoxLen)
	b.Write(box.TypeMDAT[:])
	if err := f.writeAt(pos, b); err != nil {
		return err
	}
	f.placeholder = box.NewLazy(box.Header{Type: box.TypeFREE, Size: placeholderSize, HeaderSize: box.BasicBoxLen}, pos, f.root)
	f.mdat = box.NewLazy(box.Header{Type: box.TypeMDAT, Size: box.BasicBoxLen, HeaderSize: box.BasicBoxLen}, pos+placeholderSize, f.root)
	f.root.AddChild(f.placeholder)
	f.root.AddChild(f.mdat)
	f.end = pos + int64(len(b))
	return nil
}

// finishMdat patches the mdat size. Past 4 GiB the header grows into the placeholder in front of it.
func (f *File) finishMdat() error {
	var b util.Buffer
	size := uint64(f.end - f.mdat.Offset)
	if size <= math.MaxUint32 {
		b.WriteUint32(uint32(size))
		b.Write(box.TypeMDAT[:])
		f.mdat.Size = size
		return f.writeAt(f.mdat.Offset, b)
	}
	p := f.placeholder
	if p == nil || p.Size < box.BasicBoxLen || p.Offset+int64(p.Size) != f.mdat.Offset {
		return errors.Wrapf(ErrOutOfRange, "mdat of %d bytes needs a 64-bit header and has no room for it", size)
	}
	start := f.mdat.Offset - box.BasicBoxLen
	size += box.BasicBoxLen
	b.WriteUint32(1)
	b.Write(box.TypeMDAT[:])
	b.WriteUint64(size)
	if err := f.writeAt(start, b); err != nil {
		return err
	}
	f.mdat.Offset, f.mdat.Size, f.mdat.LargeSize, f.mdat.HeaderSize = start, size, true, 16
	f.root.RemoveChild(p)
	f.placeholder = nil
	if rest := p.Size - box.BasicBoxLen; rest > 0 {
		free, err := f.writeFree(p.Offset, rest, false)
		if err != nil {
			return err
		}
		f.placeholder = free
		return f.root.InsertChild(free, indexOf(f.root.Children(), f.mdat))
	}
	return nil
}

// rewriteFtyp writes ftyp back in place. A grown ftyp takes its room from the free box right
// behind it; when that is not possible the stream keeps the old ftyp.
func (f *File) rewriteFtyp() error {
	ftyp := f.root.Child(box.TypeFTYP, 0)
	if ftyp == nil {
		return nil
	}
	old := ftyp.Size
	data, err := ftyp.Encode()
	if err != nil {
		return errors.WithMessage(err, "encode ftyp")
	}
	grow := int64(len(data)) - int64(old)
	if grow == 0 {
		return f.writeAt(ftyp.Offset, data)
	}
	children := f.root.Children()
	i := indexOf(children, ftyp)
	var next *box.Box
	var slack int64
	if i+1 < len(children) && isFree(children[i+1]) {
		next = children[i+1]
		slack = int64(next.Size)
	}
	rest := slack - grow
	if rest != 0 && rest < box.BasicBoxLen {
		f.log.Warn("no room to rewrite ftyp", "size", len(data), "old", old, "free", slack)
		ftyp.Size = old
		return nil
	}
	if err = f.writeAt(ftyp.Offset, data); err != nil {
		return err
	}
	if next != nil {
		f.root.RemoveChild(next)
	}
	var free *box.Box
	if rest > 0 {
		if free, err = f.writeFree(ftyp.Offset+int64(len(data)), uint64(rest), false); err != nil {
			return err
		}
		if err = f.root.InsertChild(free, i+1); err != nil {
			return err
		}
	}
	if next == f.placeholder {
		f.placeholder = free
	}
	return nil
}

// truncate drops what is left of the previous layout behind end.
func (f *File) truncate(end int64) error {
	size, err := f.ws.Seek(0, io.SeekEnd)
	if err != nil {
		return errors.Wrap(err, "seek to end")
	}
	if size <= end {
		return nil
	}
	if tr, ok := f.ws.(interface{ Truncate(int64) error }); ok {
		return errors.Wrap(tr.Truncate(end), "truncate")
	}
	if gap := uint64(size - end); gap >= box.BasicBoxLen && gap <= math.MaxUint32 {
		free, err := f.writeFree(end, gap, false)
		if err == nil {
			f.root.AddChild(free)
		}
		return err
	}
	f.log.Warn("stale bytes after moov", "offset", end, "size", size-end)
	return nil
}
