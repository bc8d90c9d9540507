package util

import (
	"encoding/binary"
	"io"
)

type Integer interface {
	~int | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

func PutBE[T Integer](b []byte, num T) []byte {
	for i, n := 0, len(b); i < n; i++ {
		b[i] = byte(num >> ((n - i - 1) << 3))
	}
	return b
}

func ReadBE[T Integer](b []byte) (num T) {
	num = 0
	for i, n := 0, len(b); i < n; i++ {
		num += T(b[i]) << ((n - i - 1) << 3)
	}
	return
}

// Buffer is a big-endian cursor when read from the front and an appender when written to the back.
// Reads never go past the end; callers check CanReadN first.
type Buffer []byte

func (b *Buffer) Read(buf []byte) (n int, err error) {
	if !b.CanReadN(len(buf)) {
		n = copy(buf, *b)
		*b = (*b)[n:]
		return n, io.EOF
	}
	ret := b.ReadN(len(buf))
	return copy(buf, ret), nil
}

// ReadN 读取 n 个字节，不足时返回剩余全部
func (b *Buffer) ReadN(n int) Buffer {
	l := b.Len()
	if n > l {
		n = l
	}
	r := (*b)[:n]
	*b = (*b)[n:l]
	return r
}

// ReadUint reads an n byte big-endian unsigned integer, n in 1..8.
func (b *Buffer) ReadUint(n int) uint64 {
	return ReadBE[uint64](b.ReadN(n))
}

func (b *Buffer) ReadUint64() uint64 {
	return binary.BigEndian.Uint64(b.ReadN(8))
}
func (b *Buffer) ReadUint32() uint32 {
	return binary.BigEndian.Uint32(b.ReadN(4))
}
func (b *Buffer) ReadUint24() uint32 {
	return ReadBE[uint32](b.ReadN(3))
}
func (b *Buffer) ReadUint16() uint16 {
	return binary.BigEndian.Uint16(b.ReadN(2))
}
// ReadByte implements io.ByteReader.
func (b *Buffer) ReadByte() (byte, error) {
	if !b.CanRead() {
		return 0, io.EOF
	}
	return b.ReadN(1)[0], nil
}

// WriteUint appends v as an n byte big-endian unsigned integer.
func (b *Buffer) WriteUint(v uint64, n int) {
	PutBE(b.Malloc(n), v)
}
func (b *Buffer) WriteUint64(v uint64) {
	binary.BigEndian.PutUint64(b.Malloc(8), v)
}
func (b *Buffer) WriteUint32(v uint32) {
	binary.BigEndian.PutUint32(b.Malloc(4), v)
}
func (b *Buffer) WriteUint24(v uint32) {
	PutBE(b.Malloc(3), v)
}
func (b *Buffer) WriteUint16(v uint16) {
	binary.BigEndian.PutUint16(b.Malloc(2), v)
}
func (b *Buffer) WriteByte(v byte) error {
	b.Malloc(1)[0] = v
	return nil
}
func (b *Buffer) WriteString(a string) {
	*b = append(*b, a...)
}
func (b *Buffer) Write(a []byte) (n int, err error) {
	*b = append(*b, a...)
	return len(a), nil
}

func (b Buffer) Clone() (result Buffer) {
	return append(result, b...)
}

func (b Buffer) Bytes() []byte {
	return b
}

func (b Buffer) Len() int {
	return len(b)
}

func (b Buffer) CanRead() bool {
	return b.CanReadN(1)
}

func (b Buffer) CanReadN(n int) bool {
	return n >= 0 && b.Len() >= n
}

func (b Buffer) Cap() int {
	return cap(b)
}

func (b Buffer) SubBuf(start int, length int) Buffer {
	return b[start : start+length]
}

// Malloc 扩大原来的buffer的长度，返回新增的buffer
func (b *Buffer) Malloc(count int) Buffer {
	l := b.Len()
	newL := l + count
	if newL > b.Cap() {
		n := make(Buffer, newL, newL+newL/2)
		copy(n, *b)
		*b = n
	} else {
		*b = b.SubBuf(0, newL)
	}
	return b.SubBuf(l, count)
}

func (b *Buffer) Reset() {
	*b = b.SubBuf(0, 0)
}
