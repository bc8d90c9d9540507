package box

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElementaryStreamDescriptor(t *testing.T) {
	t.Run("generate", func(t *testing.T) {
		esds := New(TypeESDS, nil)
		esds.Generate()
		v, err := esds.GetInteger("decConfigDescr.reserved")
		require.NoError(t, err)
		assert.EqualValues(t, 1, v)
		v, err = esds.GetInteger("slConfigDescr.predefined")
		require.NoError(t, err)
		assert.EqualValues(t, 2, v)
		require.NoError(t, esds.SetInteger("decConfigDescr.maxBitrate", 128000))
		require.NoError(t, esds.SetInteger("decConfigDescr.objectTypeId", 0x40))
		data, err := esds.Encode()
		require.NoError(t, err)
		// generated descriptors use four size bytes
		assert.Len(t, data, 8+4+(5+2+1)+(5+13)+(5+1))
		parsed := roundTrip(t, data)
		v, err = parsed.GetInteger("decConfigDescr.maxBitrate")
		require.NoError(t, err)
		assert.EqualValues(t, 128000, v)
	})
	t.Run("specific info", func(t *testing.T) {
		esds := New(TypeESDS, nil)
		esds.Generate()
		fd, _, err := esds.FindField("decConfigDescr.decSpecificInfo")
		require.NoError(t, err)
		list := fd.(*DescriptorList)
		d, err := list.AddDescriptor(DecSpecificInfoTag)
		require.NoError(t, err)
		require.NoError(t, d.Field("info").(*Bytes).SetValue([]byte{0x12, 0x10}, 0))
		_, err = list.AddDescriptor(DecSpecificInfoTag)
		assert.True(t, errors.Is(err, ErrInvalidValue))
		data, err := esds.Encode()
		require.NoError(t, err)
		parsed := roundTrip(t, data)
		info, err := parsed.GetBytes("decConfigDescr.decSpecificInfo.info")
		require.NoError(t, err)
		assert.Equal(t, []byte{0x12, 0x10}, info)
	})
	t.Run("short size", func(t *testing.T) {
		// SLConfigDescriptor with a one byte size
		data := makeBox("esds", u32(0), []byte{0x03, 0x06, 0x00, 0x01, 0x00, 0x06, 0x01, 0x02})
		b := roundTrip(t, data)
		v, err := b.GetInteger("ESID")
		require.NoError(t, err)
		assert.EqualValues(t, 1, v)
	})
	t.Run("url", func(t *testing.T) {
		// URL_Flag set: URLlength and URLstring follow the flags byte
		data := makeBox("esds", u32(0), []byte{0x03, 0x07, 0x00, 0x02, 0x40, 0x03, 'a', 'b', 'c'})
		b := roundTrip(t, data)
		url, err := b.GetBytes("URL")
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), url)
		n, err := b.GetInteger("URLLength")
		require.NoError(t, err)
		assert.EqualValues(t, 3, n)
	})
}

func TestObjectDescriptorTags(t *testing.T) {
	t.Run(t.Name(), func(t *testing.T) {
		iods := New(TypeIODS, nil)
		iods.Generate()
		v, err := iods.GetInteger("audioProfileLevelId")
		require.NoError(t, err)
		assert.EqualValues(t, 0xFF, v)
		fd, _, err := iods.FindField("esIds")
		require.NoError(t, err)
		list := fd.(*DescriptorList)
		_, err = list.AddDescriptor(ESDescrTag)
		assert.True(t, errors.Is(err, ErrTypeMismatch))
		d, err := list.AddDescriptor(ESIDIncDescrTag)
		require.NoError(t, err)
		require.NoError(t, d.Integer("trackId").SetValue(2, 0))
		list.SetTags(ESIDIncDescrTag, 0)
		_, err = list.AddDescriptor(ESIDRefDescrTag)
		assert.True(t, errors.Is(err, ErrTypeMismatch))
		data, err := iods.Encode()
		require.NoError(t, err)
		parsed := roundTrip(t, data)
		v, err = parsed.GetInteger("esIds.trackId")
		require.NoError(t, err)
		assert.EqualValues(t, 2, v)
	})
}

func TestUnknownDescriptor(t *testing.T) {
	t.Run(t.Name(), func(t *testing.T) {
		d := NewDescriptor(0x42)
		assert.Equal(t, "descriptor(0x42)", d.Name())
		require.NotNil(t, d.Field("data"))
	})
}
