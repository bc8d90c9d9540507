package mp4

import (
	"math"
	"slices"

	"github.com/pkg/errors"

	"m7s.live/mp4/pkg/box"
)

// WriteSample appends one sample. duration may be InvalidDuration to use the fixed sample duration.
func (t *Track) WriteSample(data []byte, duration uint64, renderingOffset int64, isSync bool) error {
	return t.writeSample(data, duration, renderingOffset, isSync, false, 0)
}

// WriteSampleDependency appends one sample and records its sdtp dependency flags.
func (t *Track) WriteSampleDependency(data []byte, duration uint64, renderingOffset int64, isSync bool, flags uint8) error {
	return t.writeSample(data, duration, renderingOffset, isSync, true, flags)
}

func (t *Track) writeSample(data []byte, duration uint64, renderingOffset int64, isSync, dependency bool, flags uint8) error {
	if err := t.file.writable(); err != nil {
		return err
	}
	if t.amr && len(data) == 0 {
		return errors.Wrapf(ErrInvalidOperation, "track %d: empty AMR sample", t.ID())
	}
	if duration == InvalidDuration {
		if duration = t.FixedSampleDuration(); duration == InvalidDuration {
			return errors.Wrapf(ErrInvalidValue, "track %d has no fixed sample duration", t.ID())
		}
	}
	if duration > math.MaxUint32 {
		return errors.Wrapf(ErrOutOfRange, "sample duration %d", duration)
	}
	if renderingOffset < math.MinInt32 || renderingOffset > math.MaxInt32 {
		return errors.Wrapf(ErrOutOfRange, "rendering offset %d", renderingOffset)
	}
	if t.NumberOfSamples() == math.MaxUint32 {
		return errors.Wrapf(ErrOutOfRange, "track %d is full", t.ID())
	}
	size := uint64(len(data))
	if t.bytesPerSample > 1 {
		if size%t.bytesPerSample != 0 {
			t.log.Error("sample size not a multiple of the frame size", "sample", t.writeSampleID, "size", size, "frame", t.bytesPerSample)
		}
		size /= t.bytesPerSample
	}
	if limit := uint64(1)<<t.sizes.entrySize.Bits() - 1; size > limit {
		return errors.Wrapf(ErrOutOfRange, "sample size %d does not fit %d bits", size, t.sizes.entrySize.Bits())
	}

	var mode byte
	if t.amr {
		mode = data[0] >> 3 & 0x0F
		if t.chunkSamples > 0 && mode != t.amrMode {
			if err := t.flushChunk(); err != nil {
				return err
			}
		}
		t.amrMode = mode
	}

	t.chunk = append(t.chunk, data...)
	t.chunkSamples++
	t.chunkDuration += duration

	id := t.writeSampleID
	t.updateSampleSizes(size)
	t.updateSampleTimes(duration)
	t.updateRenderingOffsets(id, renderingOffset)
	t.updateSyncSamples(id, isSync)
	if dependency {
		for len(t.dependencies) < int(id-1) {
			t.dependencies = append(t.dependencies, 0)
		}
		t.dependencies = append(t.dependencies, flags)
	} else if len(t.dependencies) > 0 {
		t.dependencies = append(t.dependencies, 0)
	}

	if t.isChunkFull() {
		if err := t.flushChunk(); err != nil {
			return err
		}
	}

	t.updateDurations(duration)
	t.updateModificationTimes()
	t.trace("sample written", "sample", id, "size", len(data), "duration", duration)
	t.writeSampleID++
	t.stats.Bytes += size * t.bytesPerSample
	t.publishStats(false)
	return nil
}

func (t *Track) isChunkFull() bool {
	if t.samplesPerChunk > 0 {
		return t.chunkSamples >= t.samplesPerChunk
	}
	return t.chunkDuration >= t.durationPerChunk
}

// updateSampleSizes records size for the sample just appended. A track starts with one fixed size and
// switches to a size per sample, back-filled, at the first sample of another size.
func (t *Track) updateSampleSizes(size uint64) {
	if t.sizes.fixed == nil {
		t.sizes.appendRow(size)
		return
	}
	n := t.NumberOfSamples()
	fixed := t.sizes.fixed.Value(0)
	switch {
	case n == 0 && size != 0:
		t.sizes.fixed.SetValue(size, 0)
		t.sizes.sampleCount.SetValue(1, 0)
	case fixed != 0 && size == fixed:
		t.sizes.sampleCount.IncrementValue(1, 0)
	case fixed != 0:
		t.sizes.fixed.SetValue(0, 0)
		for i := uint32(0); i < n; i++ {
			t.sizes.appendRow(fixed)
		}
		t.sizes.appendRow(size)
	default:
		t.sizes.appendRow(size)
	}
}

func (t *Track) updateSampleTimes(duration uint64) {
	if n := t.stts.len(); n > 0 && t.stts.sampleDelta.Value(n-1) == duration {
		t.stts.sampleCount.IncrementValue(1, n-1)
	} else {
		t.stts.appendRow(1, duration)
	}
}

// updateRenderingOffsets creates ctts at the first non-zero offset, covering earlier samples with a zero run.
func (t *Track) updateRenderingOffsets(id uint32, offset int64) {
	if t.ctts.Table == nil {
		if offset == 0 {
			return
		}
		t.bindCtts(t.addTableBox(box.TypeCTTS, box.TypeSTTS))
		if id > 1 {
			t.ctts.appendRow(uint64(id-1), 0)
		}
	}
	if offset < 0 {
		// signed offsets
		setVersion(t.ctts.box, 1)
	}
	if n := t.ctts.len(); n > 0 && t.ctts.sampleOffset.Int(n-1) == offset {
		t.ctts.sampleCount.IncrementValue(1, n-1)
	} else {
		t.ctts.appendRow(1, uint64(offset))
	}
}

// updateSyncSamples creates stss at the first non-sync sample; every earlier sample was a sync sample.
func (t *Track) updateSyncSamples(id uint32, isSync bool) {
	if isSync {
		if t.stss.Table != nil {
			t.stss.appendRow(uint64(id))
		}
		return
	}
	if t.stss.Table == nil {
		t.bindStss(t.addTableBox(box.TypeSTSS, t.chunks.box.Type))
		for sid := uint32(1); sid < id; sid++ {
			t.stss.appendRow(uint64(sid))
		}
	}
}

func (t *Track) updateDurations(duration uint64) {
	media := t.Duration() + duration
	setTime(t.mdhd, "duration", media)
	movie := mulDiv(media, uint64(t.file.TimeScale()), uint64(t.TimeScale()), false)
	setTime(t.tkhd, "duration", movie)
	t.file.updateDuration(movie)
}

func (t *Track) updateModificationTimes() {
	now := t.file.now()
	setTime(t.mdhd, "modificationTime", now)
	setTime(t.tkhd, "modificationTime", now)
}

// flushChunk appends the buffered samples to the media data as one chunk.
func (t *Track) flushChunk() error {
	if t.chunkSamples == 0 {
		return nil
	}
	offset, err := t.file.writeBytes(t.chunk)
	if err != nil {
		return errors.WithMessagef(err, "track %d: write chunk", t.ID())
	}
	first := uint64(t.NumberOfSamples()) - uint64(t.chunkSamples) + 1
	t.updateSampleToChunk(first, uint64(t.chunks.len())+1, t.chunkSamples)
	t.updateChunkOffsets(uint64(offset))
	t.trace("chunk written", "chunk", t.chunks.len(), "offset", offset, "size", len(t.chunk), "samples", t.chunkSamples)
	t.chunk = t.chunk[:0]
	t.chunkSamples = 0
	t.chunkDuration = 0
	return nil
}

func (t *Track) updateSampleToChunk(first, chunk uint64, samples uint32) {
	if n := t.stsc.len(); n > 0 && t.stsc.samplesPerChunk.Value(n-1) == uint64(samples) {
		return
	}
	t.stsc.appendRow(chunk, uint64(samples), 1, first)
}

func (t *Track) updateChunkOffsets(offset uint64) {
	if t.chunks.offset.Width() == 4 && offset > math.MaxUint32 {
		t.promoteChunkOffsets()
	}
	t.chunks.appendRow(offset)
}

// promoteChunkOffsets replaces stco with a co64 box holding the same offsets.
func (t *Track) promoteChunkOffsets() {
	old := t.chunks.box
	co64 := box.New(box.TypeCO64, t.stbl)
	co64.Generate()
	r := bindRows(co64)
	for i := 0; i < t.chunks.len(); i++ {
		r.appendRow(t.chunks.offset.Value(i))
	}
	i := slices.Index(t.stbl.Children(), old)
	t.stbl.RemoveChild(old)
	t.stbl.InsertChild(co64, i)
	t.bindChunks(co64)
	t.log.Info("chunk offsets switched to 64 bits", "chunks", r.len())
}

// FinishWrite flushes the last chunk and fills the derived fields: sdtp, buffer size and bitrates.
// File.Close calls it for every track.
func (t *Track) FinishWrite(computeBitrate bool) error {
	if err := t.file.writable(); err != nil {
		return err
	}
	if err := t.finishSdtp(); err != nil {
		return err
	}
	if err := t.flushChunk(); err != nil {
		return err
	}
	const esds = "mdia.minf.stbl.stsd.*.esds.decConfigDescr."
	if fd := t.trak.FindInteger(esds + "bufferSizeDB"); fd != nil {
		fd.SetValue(min(uint64(t.MaxSampleSize()), 0xFFFFFF), 0)
	}
	if computeBitrate {
		if fd := t.trak.FindInteger(esds + "maxBitrate"); fd != nil {
			fd.SetValue(uint64(t.MaxBitrate()), 0)
		}
		if fd := t.trak.FindInteger(esds + "avgBitrate"); fd != nil {
			fd.SetValue(uint64(t.AvgBitrate()), 0)
		}
	}
	if udta := t.trak.Child(box.TypeUDTA, 0); udta != nil {
		if name := udta.Child(box.TypeNAME, 0); name != nil {
			if v, _ := name.GetString("value"); v == "" {
				udta.RemoveChild(name)
				if len(udta.Children()) == 0 {
					t.trak.RemoveChild(udta)
				}
			}
		}
	}
	t.publishStats(true)
	return nil
}

// finishSdtp stores the dependency log in sdtp; players expect the avc1 brand next to it.
func (t *Track) finishSdtp() error {
	if len(t.dependencies) == 0 {
		return nil
	}
	for n := int(t.NumberOfSamples()); len(t.dependencies) < n; {
		t.dependencies = append(t.dependencies, 0)
	}
	sdtp := t.stbl.Child(box.TypeSDTP, 0)
	if sdtp == nil {
		sdtp = t.stbl.NewChild(box.TypeSDTP)
	}
	if err := sdtp.SetBytes("data", t.dependencies); err != nil {
		return err
	}
	return t.file.addCompatibleBrand(t.file.root.Child(box.TypeFTYP, 0), "avc1")
}
