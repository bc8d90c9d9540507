package mp4

import (
	"math"
	"slices"
)

// TrackStats is a copy of the counters of one track. Unlike the Track accessors it may be read
// from any goroutine while the track is being written.
type TrackStats struct {
	ID         uint32
	Type       string
	Codec      string
	TimeScale  uint32
	Samples    uint32
	Chunks     uint32
	Bytes      uint64
	Duration   uint64
	AvgBitrate uint32
	MaxBitrate uint32 // as of the last FinishWrite, or of opening the file
}

// Seconds is the media duration in seconds.
func (s TrackStats) Seconds() float64 {
	if s.TimeScale == 0 {
		return 0
	}
	return float64(s.Duration) / float64(s.TimeScale)
}

// Stats returns the counters of every track as of its last written sample.
func (f *File) Stats() []TrackStats {
	f.statsMu.Lock()
	defer f.statsMu.Unlock()
	return slices.Clone(f.stats)
}

// publishStats refreshes the shared copy of the track counters. A full refresh recounts the sample
// bytes and rescans the peak bitrate, which is linear in the number of samples.
func (t *Track) publishStats(full bool) {
	s := &t.stats
	if full {
		s.Bytes = t.TotalSampleSize()
		s.MaxBitrate = t.MaxBitrate()
	}
	s.ID = t.ID()
	s.Type = t.Type()
	s.Codec = t.MediaDataName()
	s.TimeScale = t.TimeScale()
	s.Samples = t.NumberOfSamples()
	s.Chunks = t.NumberOfChunks()
	s.Duration = t.Duration()
	s.AvgBitrate = 0
	if s.Duration != 0 {
		s.AvgBitrate = uint32(min(mulDiv(s.Bytes, uint64(s.TimeScale)*8, s.Duration, true), math.MaxUint32))
	}

	f := t.file
	f.statsMu.Lock()
	defer f.statsMu.Unlock()
	for i := range f.stats {
		if f.stats[i].ID == s.ID {
			f.stats[i] = *s
			return
		}
	}
	f.stats = append(f.stats, *s)
}

func (f *File) dropStats(id uint32) {
	f.statsMu.Lock()
	defer f.statsMu.Unlock()
	f.stats = slices.DeleteFunc(f.stats, func(s TrackStats) bool {
		return s.ID == id
	})
}
