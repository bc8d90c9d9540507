package mp4

import (
	"io"
	"strings"

	"github.com/pkg/errors"

	"m7s.live/mp4/pkg/box"
)

// Sample is one access unit read back from a track.
type Sample struct {
	Data            []byte
	StartTime       uint64 // decoding time in the track timescale
	Duration        uint64
	RenderingOffset int64
	IsSync          bool

	HasDependencyFlags bool
	DependencyFlags    uint8
}

func (t *Track) checkSampleID(id uint32) error {
	if id == 0 || id > t.NumberOfSamples() {
		return errors.Wrapf(ErrOutOfRange, "track %d: sample %d of %d", t.ID(), id, t.NumberOfSamples())
	}
	return nil
}

// ReadSample reads sample id, 1-based. The data lands in buf when its capacity is large enough,
// a nil buf is replaced by a new slice and a short non-nil one fails with ErrBufferTooSmall.
func (t *Track) ReadSample(id uint32, buf []byte) (*Sample, error) {
	if err := t.checkSampleID(id); err != nil {
		return nil, err
	}
	// still buffered in the open chunk
	if t.chunkSamples > 0 && id >= t.writeSampleID-t.chunkSamples {
		if err := t.flushChunk(); err != nil {
			return nil, err
		}
	}
	size := t.sampleSize(id)
	if buf != nil && uint64(cap(buf)) < size {
		return nil, errors.Wrapf(ErrBufferTooSmall, "sample %d needs %d bytes, have %d", id, size, cap(buf))
	}
	src, err := t.sampleSource(id)
	if err != nil {
		return nil, err
	}
	offset, err := t.SampleFileOffset(id)
	if err != nil {
		return nil, err
	}
	s := &Sample{}
	if s.Data, err = readBytes(src, offset, size, buf); err != nil {
		return nil, errors.WithMessagef(err, "track %d: sample %d", t.ID(), id)
	}
	if s.StartTime, s.Duration, err = t.SampleTimes(id); err != nil {
		return nil, err
	}
	if s.RenderingOffset, err = t.SampleRenderingOffset(id); err != nil {
		return nil, err
	}
	s.IsSync = t.IsSyncSample(id)
	if int(id) <= len(t.dependencies) {
		s.HasDependencyFlags = true
		s.DependencyFlags = t.dependencies[id-1]
	}
	t.trace("sample read", "sample", id, "offset", offset, "size", size)
	return s, nil
}

// ReadSampleFragment copies len(dest) bytes from offset within sample id. The last sample read
// this way is kept, so walking one sample in pieces reads it from the stream only once.
func (t *Track) ReadSampleFragment(id uint32, offset int, dest []byte) error {
	if id != t.cachedID {
		t.cachedID, t.cached = 0, nil
		s, err := t.ReadSample(id, nil)
		if err != nil {
			return err
		}
		t.cachedID, t.cached = id, s.Data
	}
	if offset < 0 || offset > len(t.cached) || len(dest) > len(t.cached)-offset {
		return errors.Wrapf(ErrOutOfRange, "fragment of %d bytes at %d in a sample of %d", len(dest), offset, len(t.cached))
	}
	copy(dest, t.cached[offset:])
	return nil
}

// sampleStscIndex finds the stsc entry covering sample id.
func (t *Track) sampleStscIndex(id uint32) (int, error) {
	n := t.stsc.len()
	i := 0
	for ; i < n; i++ {
		if uint64(id) < t.stsc.firstSample.Value(i) {
			break
		}
	}
	if i == 0 {
		return 0, errors.Wrapf(ErrMalformed, "track %d: no chunk holds sample %d", t.ID(), id)
	}
	return i - 1, nil
}

// SampleFileOffset is the position of sample id in its source.
func (t *Track) SampleFileOffset(id uint32) (uint64, error) {
	if err := t.checkSampleID(id); err != nil {
		return 0, err
	}
	i, err := t.sampleStscIndex(id)
	if err != nil {
		return 0, err
	}
	firstChunk := t.stsc.firstChunk.Value(i)
	first := t.stsc.firstSample.Value(i)
	spc := t.stsc.samplesPerChunk.Value(i)
	if spc == 0 || firstChunk == 0 {
		return 0, errors.Wrapf(ErrMalformed, "track %d: stsc entry %d", t.ID(), i+1)
	}
	chunk := firstChunk + (uint64(id)-first)/spc
	if chunk > uint64(t.chunks.len()) {
		return 0, errors.Wrapf(ErrMalformed, "track %d: sample %d in chunk %d of %d", t.ID(), id, chunk, t.chunks.len())
	}
	offset := t.chunks.offset.Value(int(chunk - 1))
	firstInChunk := uint64(id) - (uint64(id)-first)%spc
	if fixed := t.fixedSize(); fixed != 0 {
		return offset + (uint64(id)-firstInChunk)*fixed*t.bytesPerSample, nil
	}
	for sid := firstInChunk; sid < uint64(id); sid++ {
		offset += t.sampleSize(uint32(sid))
	}
	return offset, nil
}

// sampleSize is the size of sample id in bytes; id must be valid.
func (t *Track) sampleSize(id uint32) uint64 {
	if fixed := t.fixedSize(); fixed != 0 {
		return fixed * t.bytesPerSample
	}
	return t.sizes.entrySize.Value(int(id-1)) * t.bytesPerSample
}

func (t *Track) SampleSize(id uint32) (uint64, error) {
	if err := t.checkSampleID(id); err != nil {
		return 0, err
	}
	return t.sampleSize(id), nil
}

func (t *Track) MaxSampleSize() uint64 {
	if fixed := t.fixedSize(); fixed != 0 {
		return fixed * t.bytesPerSample
	}
	var largest uint64
	for i := 0; i < t.sizes.len(); i++ {
		largest = max(largest, t.sizes.entrySize.Value(i))
	}
	return largest * t.bytesPerSample
}

func (t *Track) TotalSampleSize() uint64 {
	if fixed := t.fixedSize(); fixed != 0 {
		return fixed * t.bytesPerSample * uint64(t.NumberOfSamples())
	}
	var total uint64
	for i := 0; i < t.sizes.len(); i++ {
		total += t.sizes.entrySize.Value(i)
	}
	return total * t.bytesPerSample
}

// sampleSource returns the stream holding sample id: the file itself, or the file named by the
// data reference of its sample description. The last external source stays open.
func (t *Track) sampleSource(id uint32) (io.ReadSeeker, error) {
	i, err := t.sampleStscIndex(id)
	if err != nil {
		return nil, err
	}
	desc := t.stsc.descriptionIndex.Value(i)
	if !t.source.valid || t.source.desc != desc {
		t.Close()
		r, err := t.openSource(desc)
		t.source = sampleSource{valid: true, desc: desc, r: r, err: err}
	}
	switch {
	case t.source.err != nil:
		return nil, t.source.err
	case t.source.r != nil:
		return t.source.r, nil
	}
	return t.file.rs, nil
}

// openSource resolves sample description desc to its data reference. A nil reader means the
// samples are in the file itself.
func (t *Track) openSource(desc uint64) (io.ReadSeekCloser, error) {
	stsd := t.stsd()
	if stsd == nil || desc == 0 || desc > uint64(len(stsd.Children())) {
		return nil, errors.Wrapf(ErrMalformed, "track %d: sample description %d", t.ID(), desc)
	}
	entry := stsd.Children()[desc-1]
	ref := entry.Integer("dataReferenceIndex")
	if ref == nil {
		return nil, errors.Wrapf(ErrMalformed, "track %d: sample entry %s has no data reference", t.ID(), entry.TypeString())
	}
	dref := t.trak.FindBox("mdia.minf.dinf.dref")
	if dref == nil || ref.Value(0) == 0 || ref.Value(0) > uint64(len(dref.Children())) {
		return nil, errors.Wrapf(ErrMalformed, "track %d: data reference %d", t.ID(), ref.Value(0))
	}
	url := dref.Children()[ref.Value(0)-1]
	if url.Type != box.TypeURL {
		return nil, nil
	}
	if flags := url.Integer("flags"); flags == nil || flags.Value(0)&1 != 0 {
		return nil, nil
	}
	location, _ := url.GetString("location")
	name, ok := strings.CutPrefix(location, "file:")
	if !ok {
		return nil, errors.Wrapf(ErrInaccessibleSource, "data reference %q", location)
	}
	if host, ok := strings.CutPrefix(name, "//"); ok {
		i := strings.IndexByte(host, '/')
		if i < 0 {
			return nil, errors.Wrapf(ErrInaccessibleSource, "data reference %q", location)
		}
		name = host[i:]
	}
	r, err := t.file.opts.Opener(name)
	if err != nil {
		return nil, errors.Wrapf(ErrInaccessibleSource, "%s: %v", name, err)
	}
	t.log.Debug("external sample source", "location", location)
	return r, nil
}
