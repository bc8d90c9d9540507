package mp4

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"m7s.live/mp4/pkg/box"
)

func audioTrack(t *testing.T, f *File, sampleDuration uint64) *Track {
	t.Helper()
	tr, err := f.AddAudioTrack(1000, sampleDuration, ObjectTypeAAC)
	require.NoError(t, err)
	return tr
}

func cttsRows(tr *Track) (rows [][2]int64) {
	for i := 0; i < tr.ctts.len(); i++ {
		rows = append(rows, [2]int64{int64(tr.ctts.sampleCount.Value(i)), tr.ctts.sampleOffset.Int(i)})
	}
	return
}

func TestFixedSizeSamples(t *testing.T) {
	f, s := createFile(t, nil)
	tr := audioTrack(t, f, 1000)
	tr.SetSamplesPerChunk(5)
	writeSamples(t, tr, 10, 500)

	check := func(t *testing.T, tr *Track) {
		assert.EqualValues(t, 500, tr.FixedSampleSize())
		assert.EqualValues(t, 10, tr.NumberOfSamples())
		assert.EqualValues(t, 2, tr.NumberOfChunks())
		assert.Equal(t, 1, tr.stsc.len())
		assert.Equal(t, 1, tr.stts.len())
		assert.EqualValues(t, 10000, tr.Duration())
		assert.EqualValues(t, 5000, tr.TotalSampleSize())
		assert.EqualValues(t, 500, tr.MaxSampleSize())
		assert.EqualValues(t, 4000, tr.AvgBitrate())
	}
	t.Run("written", func(t *testing.T) {
		check(t, tr)
	})
	require.NoError(t, f.Close())
	r := reopen(t, s, nil)
	rt := r.Tracks()[0]
	t.Run("read", func(t *testing.T) {
		check(t, rt)
		assert.EqualValues(t, 10000, r.Duration())
		for i := uint32(1); i <= 10; i++ {
			sample, err := rt.ReadSample(i, nil)
			require.NoError(t, err)
			assert.Equal(t, payload(int(i-1), 500), sample.Data)
			assert.EqualValues(t, (i-1)*1000, sample.StartTime)
			assert.EqualValues(t, 1000, sample.Duration)
			assert.True(t, sample.IsSync)
			assert.False(t, sample.HasDependencyFlags)
		}
		avg, err := r.GetInteger("moov.trak.mdia.minf.stbl.stsd.mp4a.esds.decConfigDescr.avgBitrate")
		require.NoError(t, err)
		assert.EqualValues(t, 4000, avg)
	})
	t.Run("out of range", func(t *testing.T) {
		_, err := rt.ReadSample(0, nil)
		assert.True(t, errors.Is(err, ErrOutOfRange))
		_, err = rt.ReadSample(11, nil)
		assert.True(t, errors.Is(err, ErrOutOfRange))
		_, err = rt.SampleSize(11)
		assert.True(t, errors.Is(err, ErrOutOfRange))
	})
	t.Run("buffer", func(t *testing.T) {
		_, err := rt.ReadSample(1, make([]byte, 0, 10))
		assert.True(t, errors.Is(err, ErrBufferTooSmall))
		buf := make([]byte, 0, 600)
		sample, err := rt.ReadSample(2, buf)
		require.NoError(t, err)
		assert.Len(t, sample.Data, 500)
		assert.Same(t, &buf[:1][0], &sample.Data[0])
	})
	t.Run("fragment", func(t *testing.T) {
		dest := make([]byte, 50)
		require.NoError(t, rt.ReadSampleFragment(3, 100, dest))
		assert.Equal(t, payload(2, 500)[100:150], dest)
		require.NoError(t, rt.ReadSampleFragment(3, 450, dest))
		assert.Equal(t, payload(2, 500)[450:], dest)
		assert.True(t, errors.Is(rt.ReadSampleFragment(3, 451, dest), ErrOutOfRange))
		assert.True(t, errors.Is(rt.ReadSampleFragment(11, 0, dest), ErrOutOfRange))
	})
	t.Run("chunks", func(t *testing.T) {
		start, err := rt.ChunkTime(2)
		require.NoError(t, err)
		assert.EqualValues(t, 5000, start)
		size, err := rt.ChunkSize(2)
		require.NoError(t, err)
		assert.EqualValues(t, 2500, size)
		data, err := rt.ReadChunk(1)
		require.NoError(t, err)
		var want []byte
		for i := 0; i < 5; i++ {
			want = append(want, payload(i, 500)...)
		}
		assert.Equal(t, want, data)
		_, err = rt.ReadChunk(3)
		assert.True(t, errors.Is(err, ErrOutOfRange))
		_, err = rt.ChunkTime(0)
		assert.True(t, errors.Is(err, ErrOutOfRange))
	})
	t.Run("offsets", func(t *testing.T) {
		first, err := rt.SampleFileOffset(1)
		require.NoError(t, err)
		third, err := rt.SampleFileOffset(3)
		require.NoError(t, err)
		assert.EqualValues(t, 1000, third-first)
		sixth, err := rt.SampleFileOffset(6)
		require.NoError(t, err)
		assert.Equal(t, rt.chunks.offset.Value(1), sixth)
	})
}

func TestVariableSizes(t *testing.T) {
	t.Run(t.Name(), func(t *testing.T) {
		f, s := createFile(t, nil)
		tr := audioTrack(t, f, 100)
		sizes := []int{30, 30, 30, 7, 0, 60}
		for i, n := range sizes {
			require.NoError(t, tr.WriteSample(payload(i, n), InvalidDuration, 0, true))
		}
		assert.EqualValues(t, 0, tr.FixedSampleSize())
		assert.Equal(t, len(sizes), tr.sizes.len())
		assert.EqualValues(t, 60, tr.MaxSampleSize())
		assert.EqualValues(t, 157, tr.TotalSampleSize())
		require.NoError(t, f.Close())

		rt := reopen(t, s, nil).Tracks()[0]
		for i, n := range sizes {
			size, err := rt.SampleSize(uint32(i + 1))
			require.NoError(t, err)
			assert.EqualValues(t, n, size)
			sample, err := rt.ReadSample(uint32(i+1), nil)
			require.NoError(t, err)
			assert.Equal(t, payload(i, n), sample.Data)
		}
	})
}

func TestReadWhileWriting(t *testing.T) {
	t.Run(t.Name(), func(t *testing.T) {
		f, s := createFile(t, nil)
		tr := audioTrack(t, f, 100)
		tr.SetSamplesPerChunk(5)
		writeSamples(t, tr, 3, 20)
		assert.EqualValues(t, 0, tr.NumberOfChunks())
		sample, err := tr.ReadSample(2, nil)
		require.NoError(t, err)
		assert.Equal(t, payload(1, 20), sample.Data)
		assert.EqualValues(t, 1, tr.NumberOfChunks())
		for i := 3; i < 5; i++ {
			require.NoError(t, tr.WriteSample(payload(i, 20), InvalidDuration, 0, true))
		}
		require.NoError(t, f.Close())

		rt := reopen(t, s, nil).Tracks()[0]
		assert.EqualValues(t, 2, rt.NumberOfChunks())
		require.Equal(t, 2, rt.stsc.len())
		assert.EqualValues(t, 3, rt.stsc.samplesPerChunk.Value(0))
		assert.EqualValues(t, 2, rt.stsc.samplesPerChunk.Value(1))
		assert.EqualValues(t, 4, rt.stsc.firstSample.Value(1))
		for i := uint32(1); i <= 5; i++ {
			sample, err := rt.ReadSample(i, nil)
			require.NoError(t, err)
			assert.Equal(t, payload(int(i-1), 20), sample.Data)
		}
	})
}

func TestWriteSampleErrors(t *testing.T) {
	t.Run(t.Name(), func(t *testing.T) {
		f, _ := createFile(t, nil)
		tr, err := f.AddTrack("vide", 1000)
		require.NoError(t, err)
		assert.Equal(t, uint64(InvalidDuration), tr.FixedSampleDuration())
		assert.True(t, errors.Is(tr.WriteSample([]byte{1}, InvalidDuration, 0, true), ErrInvalidValue))
		assert.True(t, errors.Is(tr.WriteSample([]byte{1}, 1<<32, 0, true), ErrOutOfRange))
		assert.True(t, errors.Is(tr.WriteSample([]byte{1}, 10, 1<<31, true), ErrOutOfRange))
		assert.EqualValues(t, 0, tr.NumberOfSamples())
		require.NoError(t, tr.WriteSample([]byte{1}, 10, 0, true))
		assert.True(t, errors.Is(tr.SetFixedSampleDuration(20), ErrInvalidOperation))
		assert.EqualValues(t, 10, tr.FixedSampleDuration())
		require.NoError(t, tr.WriteSample([]byte{1}, 20, 0, true))
		assert.Equal(t, uint64(InvalidDuration), tr.FixedSampleDuration())
	})
}

func TestRenderingOffsets(t *testing.T) {
	t.Run("split", func(t *testing.T) {
		f, _ := createFile(t, nil)
		tr := audioTrack(t, f, 100)
		writeSamples(t, tr, 5, 10)
		require.NoError(t, tr.SetSampleRenderingOffset(3, 0))
		assert.Nil(t, tr.stbl.Child(box.TypeCTTS, 0))

		require.NoError(t, tr.SetSampleRenderingOffset(3, 200))
		assert.Equal(t, [][2]int64{{2, 0}, {1, 200}, {2, 0}}, cttsRows(tr))
		for i, want := range []int64{0, 0, 200, 0, 0} {
			off, err := tr.SampleRenderingOffset(uint32(i + 1))
			require.NoError(t, err)
			assert.Equal(t, want, off)
		}

		require.NoError(t, tr.SetSampleRenderingOffset(1, 50))
		assert.Equal(t, [][2]int64{{1, 50}, {1, 0}, {1, 200}, {2, 0}}, cttsRows(tr))
		require.NoError(t, tr.SetSampleRenderingOffset(5, -20))
		assert.Equal(t, [][2]int64{{1, 50}, {1, 0}, {1, 200}, {1, 0}, {1, -20}}, cttsRows(tr))
		assert.EqualValues(t, 1, tr.ctts.box.Integer("version").Value(0))
		require.NoError(t, tr.SetSampleRenderingOffset(3, 10))
		assert.Equal(t, [][2]int64{{1, 50}, {1, 0}, {1, 10}, {1, 0}, {1, -20}}, cttsRows(tr))

		assert.True(t, errors.Is(tr.SetSampleRenderingOffset(6, 1), ErrOutOfRange))
		assert.True(t, errors.Is(tr.SetSampleRenderingOffset(0, 1), ErrOutOfRange))
	})
	t.Run("middle", func(t *testing.T) {
		f, _ := createFile(t, nil)
		tr := audioTrack(t, f, 100)
		for i := 0; i < 5; i++ {
			require.NoError(t, tr.WriteSample(payload(i, 10), InvalidDuration, 100, true))
		}
		assert.Equal(t, [][2]int64{{5, 100}}, cttsRows(tr))
		require.NoError(t, tr.SetSampleRenderingOffset(3, 0))
		assert.Equal(t, [][2]int64{{2, 100}, {1, 0}, {2, 100}}, cttsRows(tr))
	})
	t.Run("written", func(t *testing.T) {
		f, s := createFile(t, nil)
		tr := audioTrack(t, f, 100)
		for i, off := range []int64{0, 0, 0, 200, 200, -100} {
			require.NoError(t, tr.WriteSample(payload(i, 10), InvalidDuration, off, true))
		}
		assert.Equal(t, [][2]int64{{3, 0}, {2, 200}, {1, -100}}, cttsRows(tr))
		require.NoError(t, f.Close())

		rt := reopen(t, s, nil).Tracks()[0]
		sample, err := rt.ReadSample(6, nil)
		require.NoError(t, err)
		assert.EqualValues(t, -100, sample.RenderingOffset)
		sample, err = rt.ReadSample(4, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 200, sample.RenderingOffset)
	})
}

func TestSyncSamples(t *testing.T) {
	f, s := createFile(t, nil)
	tr := audioTrack(t, f, 100)
	t.Run("all sync", func(t *testing.T) {
		writeSamples(t, tr, 2, 10)
		assert.Nil(t, tr.stbl.Child(box.TypeSTSS, 0))
		assert.True(t, tr.IsSyncSample(2))
		assert.EqualValues(t, 2, tr.NextSyncSample(2))
	})
	t.Run("table", func(t *testing.T) {
		for i, sync := range []bool{false, true, false, false} {
			require.NoError(t, tr.WriteSample(payload(i, 10), InvalidDuration, 0, sync))
		}
		require.NoError(t, f.Close())
		rt := reopen(t, s, nil).Tracks()[0]
		want := []bool{true, true, false, true, false, false}
		for i, sync := range want {
			assert.Equal(t, sync, rt.IsSyncSample(uint32(i+1)), "sample %d", i+1)
		}
		assert.EqualValues(t, 4, rt.NextSyncSample(3))
		assert.EqualValues(t, 0, rt.NextSyncSample(5))
	})
}

func TestSampleTimes(t *testing.T) {
	f, _ := createFile(t, nil)
	tr := audioTrack(t, f, 100)
	for i, d := range []uint64{100, 100, 100, 50, 50, 100} {
		require.NoError(t, tr.WriteSample(payload(i, 10), d, 0, i%3 == 0))
	}
	t.Run("times", func(t *testing.T) {
		assert.Equal(t, 3, tr.stts.len())
		var sum uint64
		for i := uint32(1); i <= 6; i++ {
			start, d, err := tr.SampleTimes(i)
			require.NoError(t, err)
			assert.Equal(t, sum, start)
			sum += d
		}
		assert.Equal(t, tr.Duration(), sum)
		// backwards after a forward lookup
		start, _, err := tr.SampleTimes(2)
		require.NoError(t, err)
		assert.EqualValues(t, 100, start)
		_, _, err = tr.SampleTimes(7)
		assert.True(t, errors.Is(err, ErrOutOfRange))
	})
	t.Run("lookup", func(t *testing.T) {
		cases := []struct {
			when uint64
			sync bool
			id   uint32
		}{
			{0, false, 1},
			{250, false, 3},
			{320, false, 4},
			{360, false, 5},
			{499, false, 6},
			{150, true, 4},
		}
		for _, c := range cases {
			id, err := tr.SampleIDFromTime(c.when, c.sync)
			require.NoError(t, err)
			assert.Equal(t, c.id, id, "time %d", c.when)
		}
		_, err := tr.SampleIDFromTime(500, false)
		assert.True(t, errors.Is(err, ErrOutOfRange))
		_, err = tr.SampleIDFromTime(450, true)
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestBitrates(t *testing.T) {
	t.Run(t.Name(), func(t *testing.T) {
		f, s := createFile(t, nil)
		tr := audioTrack(t, f, 100)
		writeSamples(t, tr, 20, 100)
		assert.EqualValues(t, 8000, tr.AvgBitrate())
		assert.EqualValues(t, 7200, tr.MaxBitrate())
		require.NoError(t, f.Close())

		r := reopen(t, s, nil)
		const esds = "moov.trak.mdia.minf.stbl.stsd.mp4a.esds.decConfigDescr."
		v, err := r.GetInteger(esds + "maxBitrate")
		require.NoError(t, err)
		assert.EqualValues(t, 7200, v)
		v, err = r.GetInteger(esds + "avgBitrate")
		require.NoError(t, err)
		assert.EqualValues(t, 8000, v)
	})
	t.Run("empty", func(t *testing.T) {
		f, _ := createFile(t, nil)
		tr := audioTrack(t, f, 100)
		assert.EqualValues(t, 0, tr.AvgBitrate())
		assert.EqualValues(t, 0, tr.MaxBitrate())
	})
}

func TestCompactSampleSizes(t *testing.T) {
	t.Run(t.Name(), func(t *testing.T) {
		f, s := createFile(t, nil)
		tr := audioTrack(t, f, 10)
		require.NoError(t, tr.SetCompactSampleSizes(4))
		assert.Nil(t, tr.stbl.Child(box.TypeSTSZ, 0))
		sizes := []int{3, 7, 15}
		for i, n := range sizes {
			require.NoError(t, tr.WriteSample(payload(i, n), InvalidDuration, 0, true))
		}
		assert.True(t, errors.Is(tr.WriteSample(payload(9, 16), InvalidDuration, 0, true), ErrOutOfRange))
		assert.EqualValues(t, 3, tr.NumberOfSamples())
		assert.True(t, errors.Is(tr.SetCompactSampleSizes(8), ErrInvalidOperation))
		require.NoError(t, f.Close())

		r := reopen(t, s, nil)
		stz2 := r.FindBox("moov.trak.mdia.minf.stbl.stz2")
		require.NotNil(t, stz2)
		// two sizes per byte, the last one padded
		assert.EqualValues(t, 8+4+4+4+2, stz2.Size)
		data, err := stz2.Encode()
		require.NoError(t, err)
		assert.Equal(t, []byte{0x37, 0xF0}, data[len(data)-2:])
		rt := r.Tracks()[0]
		for i, n := range sizes {
			sample, err := rt.ReadSample(uint32(i+1), nil)
			require.NoError(t, err)
			assert.Equal(t, payload(i, n), sample.Data)
		}
	})
	t.Run("field size", func(t *testing.T) {
		f, _ := createFile(t, nil)
		tr := audioTrack(t, f, 10)
		assert.True(t, errors.Is(tr.SetCompactSampleSizes(5), ErrInvalidValue))
		require.NoError(t, tr.SetCompactSampleSizes(16))
		require.NoError(t, tr.WriteSample(payload(0, 300), InvalidDuration, 0, true))
		size, err := tr.SampleSize(1)
		require.NoError(t, err)
		assert.EqualValues(t, 300, size)
	})
}

func TestChunkOffsets64(t *testing.T) {
	t.Run(t.Name(), func(t *testing.T) {
		f, s := createFile(t, nil)
		tr := audioTrack(t, f, 100)
		tr.SetSamplesPerChunk(2)
		writeSamples(t, tr, 4, 25)
		tr.promoteChunkOffsets()
		assert.Nil(t, tr.stbl.Child(box.TypeSTCO, 0))
		assert.NotNil(t, tr.stbl.Child(box.TypeCO64, 0))
		assert.EqualValues(t, 2, tr.NumberOfChunks())
		for i := 4; i < 6; i++ {
			require.NoError(t, tr.WriteSample(payload(i, 25), InvalidDuration, 0, true))
		}
		require.NoError(t, f.Close())

		r := reopen(t, s, nil)
		assert.NotNil(t, r.FindBox("moov.trak.mdia.minf.stbl.co64"))
		rt := r.Tracks()[0]
		assert.EqualValues(t, 3, rt.NumberOfChunks())
		for i := uint32(1); i <= 6; i++ {
			sample, err := rt.ReadSample(i, nil)
			require.NoError(t, err)
			assert.Equal(t, payload(int(i-1), 25), sample.Data)
		}
	})
}

func TestRewriteChunk(t *testing.T) {
	t.Run(t.Name(), func(t *testing.T) {
		f, s := createFile(t, nil)
		tr := audioTrack(t, f, 100)
		tr.SetSamplesPerChunk(2)
		writeSamples(t, tr, 4, 10)
		old := tr.chunks.offset.Value(0)
		replacement := bytes.Repeat([]byte{0xAB}, 20)
		assert.True(t, errors.Is(tr.RewriteChunk(1, replacement[:19]), ErrInvalidValue))
		require.NoError(t, tr.RewriteChunk(1, replacement))
		assert.Greater(t, tr.chunks.offset.Value(0), old)
		require.NoError(t, f.Close())

		rt := reopen(t, s, nil).Tracks()[0]
		sample, err := rt.ReadSample(2, nil)
		require.NoError(t, err)
		assert.Equal(t, replacement[:10], sample.Data)
		sample, err = rt.ReadSample(3, nil)
		require.NoError(t, err)
		assert.Equal(t, payload(2, 10), sample.Data)
	})
}

func TestEdits(t *testing.T) {
	f, s := createFile(t, nil)
	tr := audioTrack(t, f, 1000)
	writeSamples(t, tr, 5, 10)

	t.Run("no edits", func(t *testing.T) {
		id, start, d, err := tr.SampleIDFromEditTime(2500)
		require.NoError(t, err)
		assert.EqualValues(t, 3, id)
		assert.EqualValues(t, 2000, start)
		assert.EqualValues(t, 1000, d)
		_, err = tr.EditStart(1)
		assert.True(t, errors.Is(err, ErrOutOfRange))
		_, err = tr.AddEdit(2)
		assert.True(t, errors.Is(err, ErrOutOfRange))
	})
	t.Run("clipped", func(t *testing.T) {
		id, err := tr.AddEdit(0)
		require.NoError(t, err)
		assert.EqualValues(t, 1, id)
		assert.NotNil(t, tr.Box().FindBox("edts.elst"))
		require.NoError(t, tr.SetEditMediaStart(1, 1500))
		require.NoError(t, tr.SetEditDuration(1, 2000))

		id, start, d, err := tr.SampleIDFromEditTime(0)
		require.NoError(t, err)
		assert.EqualValues(t, 2, id)
		assert.EqualValues(t, 0, start)
		assert.EqualValues(t, 500, d)

		id, start, d, err = tr.SampleIDFromEditTime(1800)
		require.NoError(t, err)
		assert.EqualValues(t, 4, id)
		assert.EqualValues(t, 1500, start)
		assert.EqualValues(t, 500, d)

		_, _, _, err = tr.SampleIDFromEditTime(2000)
		assert.True(t, errors.Is(err, ErrOutOfRange))
	})
	t.Run("dwell", func(t *testing.T) {
		id, err := tr.AddEdit(0)
		require.NoError(t, err)
		assert.EqualValues(t, 2, id)
		require.NoError(t, tr.SetEditMediaStart(2, 2000))
		require.NoError(t, tr.SetEditDuration(2, 5000))
		require.NoError(t, tr.SetEditDwell(2, true))
		dwell, err := tr.EditDwell(2)
		require.NoError(t, err)
		assert.True(t, dwell)

		start, err := tr.EditStart(2)
		require.NoError(t, err)
		assert.EqualValues(t, 2000, start)
		total, err := tr.EditTotalDuration(0)
		require.NoError(t, err)
		assert.EqualValues(t, 7000, total)

		id, editStart, d, err := tr.SampleIDFromEditTime(2100)
		require.NoError(t, err)
		assert.EqualValues(t, 3, id)
		assert.EqualValues(t, 2000, editStart)
		assert.EqualValues(t, 5000, d)
	})
	t.Run("empty edit", func(t *testing.T) {
		id, err := tr.AddEdit(1)
		require.NoError(t, err)
		assert.EqualValues(t, 1, id)
		require.NoError(t, tr.SetEditMediaStart(1, -1))
		require.NoError(t, tr.SetEditDuration(1, 1000))
		assert.EqualValues(t, 3, tr.NumberOfEdits())
		_, _, _, err = tr.SampleIDFromEditTime(500)
		assert.True(t, errors.Is(err, ErrOutOfRange))
		id, _, _, err = tr.SampleIDFromEditTime(1000)
		require.NoError(t, err)
		assert.EqualValues(t, 2, id)
	})
	t.Run("64-bit", func(t *testing.T) {
		require.NoError(t, tr.SetEditDuration(3, 1<<33))
		assert.EqualValues(t, 1, tr.elst.box.Integer("version").Value(0))
		start, err := tr.EditMediaStart(1)
		require.NoError(t, err)
		assert.EqualValues(t, -1, start)
		require.NoError(t, tr.SetEditDuration(3, 5000))
	})
	require.NoError(t, f.Close())
	t.Run("read", func(t *testing.T) {
		rt := reopen(t, s, nil).Tracks()[0]
		assert.EqualValues(t, 3, rt.NumberOfEdits())
		start, err := rt.EditMediaStart(1)
		require.NoError(t, err)
		assert.EqualValues(t, -1, start)
		d, err := rt.EditDuration(3)
		require.NoError(t, err)
		assert.EqualValues(t, 5000, d)
		dwell, err := rt.EditDwell(3)
		require.NoError(t, err)
		assert.True(t, dwell)
	})
	t.Run("delete", func(t *testing.T) {
		f, _ := createFile(t, nil)
		tr := audioTrack(t, f, 1000)
		_, err := tr.AddEdit(0)
		require.NoError(t, err)
		_, err = tr.AddEdit(0)
		require.NoError(t, err)
		require.NoError(t, tr.DeleteEdit(1))
		assert.EqualValues(t, 1, tr.NumberOfEdits())
		assert.True(t, errors.Is(tr.DeleteEdit(2), ErrOutOfRange))
		require.NoError(t, tr.DeleteEdit(1))
		assert.Nil(t, tr.Box().Child(box.TypeEDTS, 0))
		assert.EqualValues(t, 0, tr.NumberOfEdits())
		_, err = tr.EditTotalDuration(0)
		assert.True(t, errors.Is(err, ErrOutOfRange))
	})
}

func TestEditEndClip(t *testing.T) {
	f, _ := createFile(t, nil)
	tr := audioTrack(t, f, 1000)
	writeSamples(t, tr, 5, 10)
	_, err := tr.AddEdit(0)
	require.NoError(t, err)
	require.NoError(t, tr.SetEditMediaStart(1, 0))
	require.NoError(t, tr.SetEditDuration(1, 2300))

	t.Run("inside", func(t *testing.T) {
		id, start, d, err := tr.SampleIDFromEditTime(1200)
		require.NoError(t, err)
		assert.EqualValues(t, 2, id)
		assert.EqualValues(t, 1000, start)
		assert.EqualValues(t, 1000, d)
	})
	t.Run("last sample shortened", func(t *testing.T) {
		// the edit ends 300 into sample 3, so only that part is shown
		id, start, d, err := tr.SampleIDFromEditTime(2100)
		require.NoError(t, err)
		assert.EqualValues(t, 3, id)
		assert.EqualValues(t, 2000, start)
		assert.EqualValues(t, 300, d)
		_, full, err := tr.SampleTimes(3)
		require.NoError(t, err)
		assert.EqualValues(t, 1000, full)
	})
}
