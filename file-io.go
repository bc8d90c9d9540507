package mp4

import (
	"io"
	"math"
	"math/bits"

	"github.com/pkg/errors"

	"m7s.live/mp4/pkg/box"
)

// seconds between 1904-01-01 and 1970-01-01
const macEpochOffset = 2082844800

func (f *File) now() uint64 {
	return uint64(f.opts.Now().Unix() + macEpochOffset)
}

func (f *File) position() (int64, error) {
	pos, err := f.rs.Seek(0, io.SeekCurrent)
	return pos, errors.Wrap(err, "tell")
}

func (f *File) setPosition(pos int64) error {
	_, err := f.rs.Seek(pos, io.SeekStart)
	return errors.Wrapf(err, "seek to %d", pos)
}

func (f *File) writeAt(pos int64, data []byte) error {
	if _, err := f.ws.Seek(pos, io.SeekStart); err != nil {
		return errors.Wrapf(err, "seek to %d", pos)
	}
	_, err := f.ws.Write(data)
	return errors.Wrapf(err, "write %d bytes at %d", len(data), pos)
}

// writeBytes appends data to the media data and returns where it landed.
func (f *File) writeBytes(data []byte) (offset int64, err error) {
	offset = f.end
	if err = f.writeAt(offset, data); err == nil {
		f.end += int64(len(data))
	}
	return
}

// readBytes reads size bytes at offset of src, reusing buf when it is large enough.
// The result is never nil. The position of src is restored afterwards.
func readBytes(src io.ReadSeeker, offset, size uint64, buf []byte) ([]byte, error) {
	saved, err := src.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, errors.Wrap(err, "tell")
	}
	defer src.Seek(saved, io.SeekStart)
	end, err := src.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, errors.Wrap(err, "seek to end")
	}
	if offset > uint64(end) || size > uint64(end)-offset {
		return nil, errors.Wrapf(ErrMalformed, "%d bytes at %d beyond the end of the data at %d", size, offset, end)
	}
	if _, err = src.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, errors.Wrapf(err, "seek to %d", offset)
	}
	if buf != nil && uint64(cap(buf)) >= size {
		buf = buf[:size]
	} else {
		buf = make([]byte, size)
	}
	if _, err = io.ReadFull(src, buf); err != nil {
		return nil, errors.Wrapf(err, "read %d bytes at %d", size, offset)
	}
	return buf, nil
}

// ConvertTime rescales t from one timescale to another, rounding down.
func ConvertTime(t uint64, from, to uint32) uint64 {
	if from == 0 {
		return 0
	}
	if from == to {
		return t
	}
	return mulDiv(t, uint64(to), uint64(from), false)
}

// mulDiv computes a*b/c without intermediate overflow, saturating at MaxUint64.
func mulDiv(a, b, c uint64, ceil bool) uint64 {
	if c == 0 {
		return 0
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return math.MaxUint64
	}
	q, r := bits.Div64(hi, lo, c)
	if ceil && r != 0 && q < math.MaxUint64 {
		q++
	}
	return q
}

func setVersion(b *box.Box, v uint64) {
	if version := b.Integer("version"); version != nil && version.Value(0) != v {
		version.SetValue(v, 0)
		b.Relayout()
	}
}

// setTime stores a time field, switching the box to version 1 when v needs 64 bits.
func setTime(b *box.Box, name string, v uint64) {
	if v > math.MaxUint32 {
		setVersion(b, 1)
	}
	if fd := b.Integer(name); fd != nil {
		fd.SetValue(v, 0)
	}
}
