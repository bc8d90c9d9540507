package box

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, data []byte, opts *ParseOptions) *Box {
	t.Helper()
	b, err := tryParse(data, opts)
	require.NoError(t, err)
	return b
}

func tryParse(data []byte, opts *ParseOptions) (*Box, error) {
	h, err := ReadHeader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if h.Size > uint64(len(data)) {
		return nil, ErrMalformed
	}
	return Decode(h, data[h.HeaderSize:h.Size], 0, nil, opts)
}

func makeBox(t string, payload ...[]byte) []byte {
	body := bytes.Join(payload, nil)
	b := binary.BigEndian.AppendUint32(nil, uint32(8+len(body)))
	return append(append(b, t...), body...)
}

func u32(v ...uint32) []byte {
	var b []byte
	for _, x := range v {
		b = binary.BigEndian.AppendUint32(b, x)
	}
	return b
}

func roundTrip(t *testing.T, data []byte) *Box {
	t.Helper()
	b := parse(t, data, nil)
	out, err := b.Encode()
	require.NoError(t, err)
	assert.Equal(t, data, out)
	return b
}

func TestFtyp(t *testing.T) {
	t.Run(t.Name(), func(t *testing.T) {
		b := roundTrip(t, makeBox("ftyp", []byte("isom"), u32(512), []byte("isommp41")))
		v, err := b.GetString("majorBrand")
		require.NoError(t, err)
		assert.Equal(t, "isom", v)
		n, err := b.GetInteger("minorVersion")
		require.NoError(t, err)
		assert.EqualValues(t, 512, n)
		v, err = b.GetString("compatibleBrands.brand[1]")
		require.NoError(t, err)
		assert.Equal(t, "mp41", v)
	})
}

func TestTablePaths(t *testing.T) {
	stts := makeBox("stts", u32(0, 2, 3, 1000, 1, 500))
	t.Run("read", func(t *testing.T) {
		b := roundTrip(t, stts)
		v, err := b.GetInteger("entries.sampleDelta[1]")
		require.NoError(t, err)
		assert.EqualValues(t, 500, v)
		v, err = b.GetInteger("entries[1].sampleCount")
		require.NoError(t, err)
		assert.EqualValues(t, 1, v)
	})
	t.Run("errors", func(t *testing.T) {
		b := parse(t, stts, nil)
		_, err := b.GetString("entryCount")
		assert.True(t, errors.Is(err, ErrTypeMismatch))
		_, err = b.GetInteger("entries.sampleDelta[5]")
		assert.True(t, errors.Is(err, ErrOutOfRange))
		_, err = b.GetInteger("entries.nothing")
		assert.True(t, errors.Is(err, ErrNotFound))
		_, err = b.GetInteger("")
		assert.True(t, errors.Is(err, ErrNotFound))
	})
	t.Run("rows", func(t *testing.T) {
		b := parse(t, stts, nil)
		table := b.Table("entries")
		require.NoError(t, table.InsertRow(1))
		assert.EqualValues(t, 3, b.Integer("entryCount").Value(0))
		assert.EqualValues(t, 0, b.Column("entries", "sampleDelta").Value(1))
		assert.EqualValues(t, 500, b.Column("entries", "sampleDelta").Value(2))
		require.NoError(t, table.DeleteRow(0))
		assert.EqualValues(t, 2, b.Integer("entryCount").Value(0))
		assert.True(t, errors.Is(table.DeleteRow(5), ErrOutOfRange))
		out, err := b.Encode()
		require.NoError(t, err)
		assert.Len(t, out, 8+4+4+2*8)
	})
}

func TestMalformed(t *testing.T) {
	cases := map[string][]byte{
		"huge count":     makeBox("stts", u32(0, 0xFFFFFFFF)),
		"child overrun":  makeBox("moov", u32(100), []byte("free")),
		"short field":    makeBox("mvhd", u32(0, 1)),
		"bad field size": makeBox("stz2", u32(0), []byte{0, 0, 0, 5}, u32(2), []byte{1, 2}),
		"small size":     append(u32(4), []byte("free")...),
		"descriptor":     makeBox("esds", u32(0), []byte{0x03, 0x80, 0x80, 0x80, 0x80, 0x01}),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tryParse(data, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed), err.Error())
		})
	}
	t.Run("truncated prefixes", func(t *testing.T) {
		trak := New(TypeTRAK, nil)
		trak.Generate()
		data, err := trak.Encode()
		require.NoError(t, err)
		for i := 0; i < len(data); i++ {
			cut := append([]byte(nil), data[:i]...)
			if len(cut) >= 4 {
				binary.BigEndian.PutUint32(cut, uint32(len(cut)))
			}
			assert.NotPanics(t, func() { tryParse(cut, nil) })
		}
	})
}

func TestDepthLimit(t *testing.T) {
	t.Run(t.Name(), func(t *testing.T) {
		data := makeBox("moov")
		for i := 0; i < 5; i++ {
			data = makeBox("moov", data)
		}
		_, err := tryParse(data, &ParseOptions{MaxDepth: 3})
		assert.True(t, errors.Is(err, ErrMalformed))
		_, err = tryParse(data, nil)
		assert.NoError(t, err)
	})
}

func TestSkip(t *testing.T) {
	t.Run(t.Name(), func(t *testing.T) {
		data := makeBox("stbl", makeBox("stts", u32(0, 1, 1, 1)))
		b := parse(t, data, &ParseOptions{Skip: func(t [4]byte) bool { return t == TypeSTTS }})
		stts := b.FindBox("stts")
		require.NotNil(t, stts)
		assert.Nil(t, stts.Field("entries"))
		assert.Len(t, stts.Field("data").(*Bytes).Value(0), 16)
		out, err := b.Encode()
		require.NoError(t, err)
		assert.Equal(t, data, out)
	})
}

func TestLargeSizeHeader(t *testing.T) {
	t.Run(t.Name(), func(t *testing.T) {
		data := append(u32(1), []byte("free")...)
		data = binary.BigEndian.AppendUint64(data, 20)
		data = append(data, 0xDE, 0xAD, 0xBE, 0xEF)
		b := roundTrip(t, data)
		assert.True(t, b.LargeSize)
		assert.Equal(t, 16, b.HeaderSize)
	})
}

func TestGenerate(t *testing.T) {
	t.Run("mvhd", func(t *testing.T) {
		b := New(TypeMVHD, nil)
		b.Generate()
		out, err := b.Encode()
		require.NoError(t, err)
		assert.Len(t, out, 108)
		rate, err := b.GetFloat("rate")
		require.NoError(t, err)
		assert.Equal(t, 1.0, rate)
		assert.True(t, errors.Is(b.SetBytes("reserved", make([]byte, 10)), ErrReadOnly))
		require.NoError(t, b.SetInteger("version", 1))
		out, err = b.Encode()
		require.NoError(t, err)
		assert.Len(t, out, 120)
		assert.Equal(t, 8, b.Integer("duration").Width())
	})
	t.Run("trak", func(t *testing.T) {
		trak := New(TypeTRAK, nil)
		trak.Generate()
		require.NoError(t, trak.Validate())
		assert.NotNil(t, trak.FindBox("mdia.minf.dinf.dref.url "))
		lang, err := trak.GetInteger("mdia.mdhd.language")
		require.NoError(t, err)
		assert.EqualValues(t, 0x55C4, lang)
		data, err := trak.Encode()
		require.NoError(t, err)
		roundTrip(t, data)
	})
	t.Run("vp09", func(t *testing.T) {
		stsd := New(TypeSTSD, nil)
		stsd.Generate()
		vp09 := stsd.NewChild(TypeVP09)
		name, err := vp09.GetString("compressorName")
		require.NoError(t, err)
		assert.Equal(t, "vp09 Coding", name)
		reserved, err := vp09.GetBytes("reserved4")
		require.NoError(t, err)
		assert.Equal(t, []byte{0x00, 0x18, 0xFF, 0xFF}, reserved)
		assert.NotNil(t, vp09.Child(TypeVPCC, 0))
		data, err := stsd.Encode()
		require.NoError(t, err)
		roundTrip(t, data)
	})
	t.Run("descendants", func(t *testing.T) {
		trak := New(TypeTRAK, nil)
		trak.Generate()
		elst, err := trak.AddDescendants("edts.elst")
		require.NoError(t, err)
		assert.Same(t, elst, trak.FindBox("edts.elst"))
		again, err := trak.AddDescendants("edts.elst")
		require.NoError(t, err)
		assert.Same(t, elst, again)
	})
}

func TestValidate(t *testing.T) {
	t.Run(t.Name(), func(t *testing.T) {
		mdia := New(TypeMDIA, nil)
		assert.True(t, errors.Is(mdia.Validate(), ErrMalformed))
		mdia.Generate()
		require.NoError(t, mdia.Validate())
		mdia.AddChild(New(TypeHDLR, mdia))
		assert.True(t, errors.Is(mdia.Validate(), ErrMalformed))
	})
}

func TestCompactSampleSizes(t *testing.T) {
	t.Run(t.Name(), func(t *testing.T) {
		data := makeBox("stz2", u32(0), []byte{0, 0, 0, 4}, u32(3), []byte{0x12, 0x30})
		b := roundTrip(t, data)
		sizes := b.Column("entries", "entrySize")
		require.Equal(t, 3, sizes.Count())
		assert.Equal(t, []uint64{1, 2, 3}, []uint64{sizes.Value(0), sizes.Value(1), sizes.Value(2)})
	})
}

func TestSampleToChunkFirstSample(t *testing.T) {
	t.Run(t.Name(), func(t *testing.T) {
		data := makeBox("stsc", u32(0, 2, 1, 5, 1, 3, 2, 1))
		b := roundTrip(t, data)
		first := b.Column("entries", "firstSample")
		assert.EqualValues(t, 1, first.Value(0))
		assert.EqualValues(t, 11, first.Value(1))
	})
}

func TestUUIDDump(t *testing.T) {
	t.Run(t.Name(), func(t *testing.T) {
		usertype := []byte{0xA2, 0x39, 0x4F, 0x52, 0x5A, 0x9B, 0x4F, 0x14, 0xA2, 0x44, 0x6C, 0x42, 0x7C, 0x64, 0x8D, 0xF4}
		b := roundTrip(t, makeBox("uuid", usertype, []byte{1, 2}))
		var out strings.Builder
		b.Dump(&out)
		assert.Contains(t, out.String(), "a2394f52-5a9b-4f14-a244-6c427c648df4")
		assert.Contains(t, out.String(), "data = <0102>")
	})
}
