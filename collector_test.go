package mp4

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	f, s := createFile(t, nil)
	tr, err := f.AddAudioTrack(1000, 500, ObjectTypeAAC)
	require.NoError(t, err)
	writeSamples(t, tr, 4, 250)
	_, err = f.AddVP9Track(90000, 3000, 320, 240)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	r := reopen(t, s, nil)

	t.Run("count", func(t *testing.T) {
		c := NewCollector(r)
		assert.Equal(t, 12, testutil.CollectAndCount(c))
		assert.Equal(t, 2, testutil.CollectAndCount(c, "mp4_track_samples"))
	})
	t.Run("values", func(t *testing.T) {
		const expected = `
# HELP mp4_track_bytes Total sample bytes
# TYPE mp4_track_bytes gauge
mp4_track_bytes{codec="mp4a",track="1",type="soun"} 1000
mp4_track_bytes{codec="vp09",track="2",type="vide"} 0
# HELP mp4_track_duration_seconds Media duration
# TYPE mp4_track_duration_seconds gauge
mp4_track_duration_seconds{codec="mp4a",track="1",type="soun"} 2
mp4_track_duration_seconds{codec="vp09",track="2",type="vide"} 0
# HELP mp4_track_samples Number of samples
# TYPE mp4_track_samples gauge
mp4_track_samples{codec="mp4a",track="1",type="soun"} 4
mp4_track_samples{codec="vp09",track="2",type="vide"} 0
`
		err := testutil.CollectAndCompare(NewCollector(r), strings.NewReader(expected),
			"mp4_track_samples", "mp4_track_bytes", "mp4_track_duration_seconds")
		assert.NoError(t, err)
	})
	t.Run("registry", func(t *testing.T) {
		reg := prometheus.NewPedanticRegistry()
		require.NoError(t, reg.Register(NewCollector(r)))
		families, err := reg.Gather()
		require.NoError(t, err)
		assert.Len(t, families, 6)
	})
}

func TestCollectWhileWriting(t *testing.T) {
	f, _ := createFile(t, nil)
	tr, err := f.AddAudioTrack(1000, 100, ObjectTypeAAC)
	require.NoError(t, err)
	tr.SetSamplesPerChunk(4)
	c := NewCollector(f)

	done := make(chan struct{})
	scraped := make(chan int)
	go func() {
		n := 0
		for {
			testutil.CollectAndCount(c)
			n++
			select {
			case <-done:
				scraped <- n
				return
			default:
			}
		}
	}()
	for i := 0; i < 200; i++ {
		require.NoError(t, tr.WriteSample(payload(i, 50), InvalidDuration, 0, true))
	}
	close(done)
	assert.Positive(t, <-scraped)

	const expected = `
# HELP mp4_track_bytes Total sample bytes
# TYPE mp4_track_bytes gauge
mp4_track_bytes{codec="mp4a",track="1",type="soun"} 10000
# HELP mp4_track_chunks Number of chunks
# TYPE mp4_track_chunks gauge
mp4_track_chunks{codec="mp4a",track="1",type="soun"} 50
# HELP mp4_track_samples Number of samples
# TYPE mp4_track_samples gauge
mp4_track_samples{codec="mp4a",track="1",type="soun"} 200
`
	assert.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"mp4_track_samples", "mp4_track_bytes", "mp4_track_chunks"))

	require.NoError(t, f.Close())
	stats := f.Stats()
	require.Len(t, stats, 1)
	assert.EqualValues(t, 20, stats[0].Seconds())
	assert.EqualValues(t, 4000, stats[0].AvgBitrate)
	assert.Equal(t, tr.MaxBitrate(), stats[0].MaxBitrate)
	assert.NotZero(t, stats[0].MaxBitrate)
}
