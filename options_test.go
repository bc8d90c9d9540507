package mp4

import (
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		opts := DefaultOptions()
		assert.EqualValues(t, 1000, opts.TimeScale)
		assert.Equal(t, "isom", opts.MajorBrand)
		assert.EqualValues(t, 512, opts.MinorVersion)
		assert.Equal(t, []string{"isom", "iso2", "mp41"}, opts.CompatibleBrands)
		assert.True(t, opts.ComputeBitrate)
		assert.False(t, opts.Use64BitTimes)
		assert.Equal(t, time.Second, opts.ChunkDuration)
		assert.Equal(t, 64, opts.MaxDepth)
		assert.False(t, opts.SkipBoxes.Valid())
	})
	t.Run("load", func(t *testing.T) {
		opts, err := LoadOptions(strings.NewReader("timescale: 600\nuse64bittimes: true\nchunkduration: 250ms\nskipboxes: ^(free|skip)$\n"))
		require.NoError(t, err)
		assert.EqualValues(t, 600, opts.TimeScale)
		assert.True(t, opts.Use64BitTimes)
		assert.Equal(t, 250*time.Millisecond, opts.ChunkDuration)
		require.True(t, opts.SkipBoxes.Valid())
		assert.True(t, opts.SkipBoxes.MatchType([4]byte{'s', 'k', 'i', 'p'}))
		assert.False(t, opts.SkipBoxes.MatchType([4]byte{'m', 'o', 'o', 'v'}))
		assert.Equal(t, "isom", opts.MajorBrand)
	})
	t.Run("empty", func(t *testing.T) {
		opts, err := LoadOptions(strings.NewReader(""))
		require.NoError(t, err)
		assert.EqualValues(t, 1000, opts.TimeScale)
	})
	t.Run("env", func(t *testing.T) {
		t.Setenv("MP4_TIMESCALE", "90000")
		opts, err := LoadOptions(strings.NewReader("timescale: 600\n"))
		require.NoError(t, err)
		assert.EqualValues(t, 90000, opts.TimeScale)
	})
	t.Run("normalize", func(t *testing.T) {
		n := (&Options{}).normalize()
		assert.EqualValues(t, 1000, n.TimeScale)
		assert.Equal(t, "isom", n.MajorBrand)
		assert.Equal(t, time.Second, n.ChunkDuration)
		assert.NotNil(t, n.Logger)
		assert.NotNil(t, n.Now)
		assert.NotNil(t, n.Opener)
		assert.Nil(t, n.parseOptions().Skip)
	})
	t.Run("skip boxes", func(t *testing.T) {
		f, s := createFile(t, nil)
		tr, err := f.AddAudioTrack(1000, 100, ObjectTypeAAC)
		require.NoError(t, err)
		writeSamples(t, tr, 2, 10)
		require.NoError(t, f.Close())

		opts, err := LoadOptions(strings.NewReader("skipboxes: ^smhd$\n"))
		require.NoError(t, err)
		r := reopen(t, s, opts)
		smhd := r.FindBox("moov.trak.mdia.minf.smhd")
		require.NotNil(t, smhd)
		assert.Nil(t, smhd.Field("balance"))
		assert.NotNil(t, smhd.Field("data"))
		sample, err := r.Tracks()[0].ReadSample(2, nil)
		require.NoError(t, err)
		assert.Equal(t, payload(1, 10), sample.Data)
	})
	t.Run("bad skip boxes", func(t *testing.T) {
		for _, doc := range []string{"skipboxes: mdat1\n", "skipboxes: (free\n", "skipboxes: st\n"} {
			_, err := LoadOptions(strings.NewReader(doc))
			assert.True(t, errors.Is(err, ErrInvalidValue), doc)
		}
		t.Setenv("MP4_SKIPBOXES", "mo")
		_, err := LoadOptions(strings.NewReader(""))
		assert.True(t, errors.Is(err, ErrInvalidValue))
	})
	t.Run("opaque boxes survive modify", func(t *testing.T) {
		f, s := createFile(t, nil)
		tr, err := f.AddAudioTrack(1000, 100, ObjectTypeAAC)
		require.NoError(t, err)
		writeSamples(t, tr, 3, 10)
		require.NoError(t, f.Close())
		smhd := reopen(t, s, nil).FindBox("moov.trak.mdia.minf.smhd")
		require.NotNil(t, smhd)
		want, err := smhd.Encode()
		require.NoError(t, err)

		opts, err := LoadOptions(strings.NewReader("skipboxes: smhd\n"))
		require.NoError(t, err)
		m, err := Modify(s, opts)
		require.NoError(t, err)
		assert.NotNil(t, m.FindBox("moov.trak.mdia.minf.smhd").Field("data"))
		mt := m.Tracks()[0]
		for i := 3; i < 5; i++ {
			require.NoError(t, mt.WriteSample(payload(i, 10), InvalidDuration, 0, true))
		}
		require.NoError(t, m.Close())

		r := reopen(t, s, nil)
		smhd = r.FindBox("moov.trak.mdia.minf.smhd")
		require.NotNil(t, smhd)
		assert.NotNil(t, smhd.Field("balance"))
		got, err := smhd.Encode()
		require.NoError(t, err)
		assert.Equal(t, want, got)
		rt := r.Tracks()[0]
		require.EqualValues(t, 5, rt.NumberOfSamples())
		for i := uint32(1); i <= 5; i++ {
			sample, err := rt.ReadSample(i, nil)
			require.NoError(t, err)
			assert.Equal(t, payload(int(i-1), 10), sample.Data)
		}
	})
}
