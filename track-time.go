package mp4

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"m7s.live/mp4/pkg/box"
)

// SampleTimes returns the decoding time and duration of sample id. Lookups moving forward
// continue from the stts entry of the previous one.
func (t *Track) SampleTimes(id uint32) (start, duration uint64, err error) {
	c := &t.sttsCache
	i, sid, elapsed := 0, uint64(1), uint64(0)
	if c.valid && uint64(id) >= c.sid {
		i, sid, elapsed = c.index, c.sid, c.elapsed
	}
	for n := t.stts.len(); i < n; i++ {
		count := t.stts.sampleCount.Value(i)
		delta := t.stts.sampleDelta.Value(i)
		if uint64(id) < sid+count {
			*c = runCache{valid: true, index: i, sid: sid, elapsed: elapsed}
			return elapsed + (uint64(id)-sid)*delta, delta, nil
		}
		sid += count
		elapsed += count * delta
	}
	*c = runCache{}
	return 0, 0, errors.Wrapf(ErrOutOfRange, "track %d: sample %d has no time", t.ID(), id)
}

// SampleIDFromTime finds the sample playing at when, in the track timescale. With wantSync it
// moves on to the next sync sample.
func (t *Track) SampleIDFromTime(when uint64, wantSync bool) (uint32, error) {
	sid, elapsed := uint64(1), uint64(0)
	n := t.stts.len()
	for i := 0; i < n; i++ {
		count := t.stts.sampleCount.Value(i)
		delta := t.stts.sampleDelta.Value(i)
		if delta == 0 && i < n-1 {
			t.log.Warn("zero sample duration", "entry", i+1)
		}
		if d := when - elapsed; d <= count*delta {
			id := sid
			if delta != 0 {
				id += d / delta
			}
			if id > uint64(t.NumberOfSamples()) {
				break
			}
			if !wantSync {
				return uint32(id), nil
			}
			if sync := t.NextSyncSample(uint32(id)); sync != 0 {
				return sync, nil
			}
			return 0, errors.Wrapf(ErrNotFound, "track %d: no sync sample from %d", t.ID(), id)
		}
		sid += count
		elapsed += count * delta
	}
	return 0, errors.Wrapf(ErrOutOfRange, "track %d: time %d beyond the last sample", t.ID(), when)
}

// cttsIndex finds the ctts entry of sample id and the first sample it covers.
func (t *Track) cttsIndex(id uint32) (int, uint64, error) {
	c := &t.cttsCache
	i, sid := 0, uint64(1)
	if c.valid && uint64(id) >= c.sid {
		i, sid = c.index, c.sid
	}
	for n := t.ctts.len(); i < n; i++ {
		count := t.ctts.sampleCount.Value(i)
		if uint64(id) < sid+count {
			*c = runCache{valid: true, index: i, sid: sid}
			return i, sid, nil
		}
		sid += count
	}
	*c = runCache{}
	return 0, 0, errors.Wrapf(ErrOutOfRange, "track %d: sample %d has no rendering offset", t.ID(), id)
}

// SampleRenderingOffset is the composition offset of sample id, 0 for tracks without ctts.
func (t *Track) SampleRenderingOffset(id uint32) (int64, error) {
	if t.ctts.len() == 0 {
		return 0, nil
	}
	i, _, err := t.cttsIndex(id)
	if err != nil {
		return 0, err
	}
	return t.ctts.sampleOffset.Int(i), nil
}

// SetSampleRenderingOffset changes the composition offset of one sample, splitting its ctts run.
func (t *Track) SetSampleRenderingOffset(id uint32, offset int64) error {
	if err := t.file.writable(); err != nil {
		return err
	}
	if err := t.checkSampleID(id); err != nil {
		return err
	}
	if offset < math.MinInt32 || offset > math.MaxInt32 {
		return errors.Wrapf(ErrOutOfRange, "rendering offset %d", offset)
	}
	defer func() { t.cttsCache = runCache{} }()
	if t.ctts.len() == 0 {
		if offset == 0 {
			return nil
		}
		if t.ctts.Table == nil {
			t.bindCtts(t.addTableBox(box.TypeCTTS, box.TypeSTTS))
		}
		if offset < 0 {
			setVersion(t.ctts.box, 1)
		}
		if id > 1 {
			t.ctts.appendRow(uint64(id-1), 0)
		}
		t.ctts.appendRow(1, uint64(offset))
		if after := t.NumberOfSamples() - id; after > 0 {
			t.ctts.appendRow(uint64(after), 0)
		}
		return nil
	}
	i, first, err := t.cttsIndex(id)
	if err != nil {
		return err
	}
	if t.ctts.sampleOffset.Int(i) == offset {
		return nil
	}
	if offset < 0 {
		setVersion(t.ctts.box, 1)
	}
	count := t.ctts.sampleCount.Value(i)
	last := first + count - 1
	switch {
	case count == 1:
		t.ctts.sampleOffset.SetInt(offset, i)
	case uint64(id) == first:
		t.ctts.insertRow(i, 1, uint64(offset))
		t.ctts.sampleCount.SetValue(count-1, i+1)
	case uint64(id) == last:
		t.ctts.sampleCount.SetValue(count-1, i)
		t.ctts.insertRow(i+1, 1, uint64(offset))
	default:
		old := t.ctts.sampleOffset.Value(i)
		t.ctts.sampleCount.SetValue(uint64(id)-first, i)
		t.ctts.insertRow(i+1, 1, uint64(offset))
		t.ctts.insertRow(i+2, last-uint64(id), old)
	}
	return nil
}

// IsSyncSample reports whether id is a sync sample. Without stss every sample is one.
func (t *Track) IsSyncSample(id uint32) bool {
	if t.stss.Table == nil {
		return true
	}
	n := t.stss.len()
	i := sort.Search(n, func(i int) bool { return t.stss.sampleNumber.Value(i) >= uint64(id) })
	return i < n && t.stss.sampleNumber.Value(i) == uint64(id)
}

// NextSyncSample is the first sync sample at or after id, 0 when there is none.
func (t *Track) NextSyncSample(id uint32) uint32 {
	if t.stss.Table == nil {
		return id
	}
	n := t.stss.len()
	i := sort.Search(n, func(i int) bool { return t.stss.sampleNumber.Value(i) >= uint64(id) })
	if i == n {
		return 0
	}
	return uint32(t.stss.sampleNumber.Value(i))
}

// AvgBitrate is the mean bitrate over the media duration, in bits per second.
func (t *Track) AvgBitrate() uint32 {
	d := t.Duration()
	if d == 0 {
		return 0
	}
	return uint32(min(mulDiv(t.TotalSampleSize(), uint64(t.TimeScale())*8, d, true), math.MaxUint32))
}

// MaxBitrate is the largest number of bits within any one-second window, in bits per second.
// The window slides one sample at a time; the part of the last sample past the window is
// prorated by its duration.
func (t *Track) MaxBitrate() uint32 {
	ts := uint64(t.TimeScale())
	n := t.NumberOfSamples()
	var maxBytes, bytesThisSec, thisSecStart, lastTime, lastSize uint64
	startID := uint32(1)
	for id := uint32(1); id <= n; id++ {
		size := t.sampleSize(id)
		when, _, err := t.SampleTimes(id)
		if err != nil {
			break
		}
		if when < thisSecStart+ts {
			bytesThisSec += size
			lastSize, lastTime = size, when
			continue
		}
		var overflowDur uint64
		if end := thisSecStart + ts; end > lastTime {
			overflowDur = end - lastTime
		}
		if lastDur := when - lastTime; lastDur > 0 {
			overflow := mulDiv(lastSize, overflowDur, lastDur, true)
			if bytesThisSec > overflow && bytesThisSec-overflow > maxBytes {
				maxBytes = bytesThisSec - overflow
			}
		}
		lastSize, lastTime = size, when
		bytesThisSec += size
		bytesThisSec -= min(bytesThisSec, t.sampleSize(startID))
		startID++
		if thisSecStart, _, err = t.SampleTimes(startID); err != nil {
			break
		}
	}
	return uint32(min(maxBytes*8, math.MaxUint32))
}
