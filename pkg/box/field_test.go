package box

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegerField(t *testing.T) {
	t.Run("signed", func(t *testing.T) {
		f := NewInteger("offset", 2).Signed()
		require.NoError(t, f.SetInt(-2, 0))
		assert.EqualValues(t, 0xFFFE, f.Value(0))
		assert.EqualValues(t, -2, f.Int(0))
	})
	t.Run("bits", func(t *testing.T) {
		f := NewBits("flag", 3)
		require.NoError(t, f.SetValue(9, 0))
		assert.EqualValues(t, 1, f.Value(0))
		assert.Equal(t, KindBits, f.Kind())
		assert.True(t, errors.Is(f.SetValue(1, 1), ErrOutOfRange))
	})
	t.Run("values", func(t *testing.T) {
		f := NewInteger("list", 4)
		f.AddValue(7)
		require.NoError(t, f.InsertValue(5, 0))
		assert.Equal(t, 3, f.Count())
		require.NoError(t, f.IncrementValue(-1, 2))
		assert.EqualValues(t, 6, f.Value(2))
		require.NoError(t, f.DeleteValue(0))
		assert.EqualValues(t, 0, f.Value(0))
		f.SetReadOnly(true)
		assert.True(t, errors.Is(f.SetValue(1, 0), ErrReadOnly))
	})
}

func TestFloatField(t *testing.T) {
	t.Run(t.Name(), func(t *testing.T) {
		f := NewFloat("volume", Fixed16)
		require.NoError(t, f.SetValue(-0.5, 0))
		assert.Equal(t, -0.5, f.Value(0))
		w := &Writer{}
		require.NoError(t, f.Write(w))
		assert.Equal(t, []byte{0xFF, 0x80}, w.Bytes())
	})
}

func TestStringField(t *testing.T) {
	t.Run("counted", func(t *testing.T) {
		f := NewCountedString("compressorName", 32)
		assert.True(t, errors.Is(f.SetValue(string(make([]byte, 32)), 0), ErrInvalidValue))
		require.NoError(t, f.SetValue("abc", 0))
		w := &Writer{}
		require.NoError(t, f.Write(w))
		out := w.Bytes()
		require.Len(t, out, 32)
		assert.Equal(t, []byte{3, 'a', 'b', 'c'}, out[:4])
	})
	t.Run("unterminated", func(t *testing.T) {
		f := NewString("name")
		require.NoError(t, f.Read(NewReader([]byte("abc"), 0, nil)))
		assert.Equal(t, "abc", f.Value(0))
		w := &Writer{}
		require.NoError(t, f.Write(w))
		assert.Equal(t, []byte("abc"), w.Bytes())
		require.NoError(t, f.SetValue("abc", 0))
		w = &Writer{}
		require.NoError(t, f.Write(w))
		assert.Equal(t, []byte("abc\x00"), w.Bytes())
	})
}

func TestBytesField(t *testing.T) {
	t.Run(t.Name(), func(t *testing.T) {
		size := NewInteger("size", 1)
		f := NewCountedBytes("data", size)
		require.NoError(t, f.SetValue([]byte{1, 2, 3}, 0))
		assert.EqualValues(t, 3, size.Value(0))
		assert.True(t, errors.Is(f.SetValue(make([]byte, 256), 0), ErrInvalidValue))
		fixed := NewBytes("fixed", 2)
		assert.True(t, errors.Is(fixed.SetValue([]byte{1}, 0), ErrInvalidValue))
		reserved := NewReserved("reserved", 2)
		assert.True(t, reserved.ReadOnly())
	})
}
