package util

import (
	"errors"
	"fmt"
	"io"
)

// MemoryStream is an in-memory io.ReadWriteSeeker. Writes past the end grow the buffer.
type MemoryStream struct {
	buffer []byte
	offset int
}

func NewMemoryStream(capacity int) *MemoryStream {
	return &MemoryStream{
		buffer: make([]byte, 0, capacity),
	}
}

// NewMemoryStreamFrom wraps data without copying; the stream starts at offset 0.
func NewMemoryStreamFrom(data []byte) *MemoryStream {
	return &MemoryStream{buffer: data}
}

func (ms *MemoryStream) Write(p []byte) (n int, err error) {
	end := ms.offset + len(p)
	if end > cap(ms.buffer) {
		tmp := make([]byte, len(ms.buffer), cap(ms.buffer)+len(p)*2)
		copy(tmp, ms.buffer)
		ms.buffer = tmp
	}
	if len(ms.buffer) < end {
		ms.buffer = ms.buffer[:end]
	}
	copy(ms.buffer[ms.offset:], p)
	ms.offset = end
	return len(p), nil
}

func (ms *MemoryStream) Read(p []byte) (n int, err error) {
	if ms.offset >= len(ms.buffer) {
		return 0, io.EOF
	}
	n = copy(p, ms.buffer[ms.offset:])
	ms.offset += n
	return n, nil
}

func (ms *MemoryStream) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = int64(ms.offset) + offset
	case io.SeekEnd:
		target = int64(len(ms.buffer)) + offset
	default:
		return -1, errors.New("invalid whence")
	}
	if target < 0 || target > int64(len(ms.buffer)) {
		return -1, errors.New(fmt.Sprint("seek out of range ", len(ms.buffer), " ", target))
	}
	ms.offset = int(target)
	return target, nil
}

// Bytes returns the whole content written so far.
func (ms *MemoryStream) Bytes() []byte {
	return ms.buffer
}

func (ms *MemoryStream) Len() int {
	return len(ms.buffer)
}

// Truncate cuts or zero-extends the stream to size; the position is clamped to the new end.
func (ms *MemoryStream) Truncate(size int64) error {
	if size < 0 {
		return errors.New("negative size")
	}
	if n := int(size); n <= len(ms.buffer) {
		ms.buffer = ms.buffer[:n]
	} else {
		ms.buffer = append(ms.buffer, make([]byte, n-len(ms.buffer))...)
	}
	ms.offset = min(ms.offset, len(ms.buffer))
	return nil
}
