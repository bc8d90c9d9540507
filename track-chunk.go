package mp4

import (
	"math"

	"github.com/pkg/errors"
)

func (t *Track) checkChunkID(chunk uint32) error {
	if chunk == 0 || chunk > t.NumberOfChunks() {
		return errors.Wrapf(ErrOutOfRange, "track %d: chunk %d of %d", t.ID(), chunk, t.NumberOfChunks())
	}
	return nil
}

// chunkStscIndex finds the stsc entry covering chunk.
func (t *Track) chunkStscIndex(chunk uint32) (int, error) {
	n := t.stsc.len()
	i := 0
	for ; i < n; i++ {
		if uint64(chunk) < t.stsc.firstChunk.Value(i) {
			break
		}
	}
	if i == 0 {
		return 0, errors.Wrapf(ErrMalformed, "track %d: chunk %d before the first stsc entry", t.ID(), chunk)
	}
	return i - 1, nil
}

// chunkSamplesOf returns the first sample of chunk and how many samples it holds.
func (t *Track) chunkSamplesOf(chunk uint32) (first, count uint64, err error) {
	if err = t.checkChunkID(chunk); err != nil {
		return
	}
	i, err := t.chunkStscIndex(chunk)
	if err != nil {
		return
	}
	count = t.stsc.samplesPerChunk.Value(i)
	first = t.stsc.firstSample.Value(i) + (uint64(chunk)-t.stsc.firstChunk.Value(i))*count
	if first == 0 || first+count-1 > uint64(t.NumberOfSamples()) {
		err = errors.Wrapf(ErrMalformed, "track %d: chunk %d holds samples %d to %d of %d", t.ID(), chunk, first, first+count-1, t.NumberOfSamples())
	}
	return
}

// ChunkTime is the decoding time of the first sample of chunk.
func (t *Track) ChunkTime(chunk uint32) (uint64, error) {
	first, _, err := t.chunkSamplesOf(chunk)
	if err != nil {
		return 0, err
	}
	start, _, err := t.SampleTimes(uint32(first))
	return start, err
}

// ChunkSize is the number of bytes of chunk.
func (t *Track) ChunkSize(chunk uint32) (uint64, error) {
	first, count, err := t.chunkSamplesOf(chunk)
	if err != nil {
		return 0, err
	}
	if fixed := t.fixedSize(); fixed != 0 {
		return count * fixed * t.bytesPerSample, nil
	}
	var size uint64
	for id := first; id < first+count; id++ {
		size += t.sampleSize(uint32(id))
	}
	return size, nil
}

// ReadChunk reads chunk, 1-based, from the file.
func (t *Track) ReadChunk(chunk uint32) ([]byte, error) {
	if t.chunkSamples > 0 {
		if err := t.flushChunk(); err != nil {
			return nil, err
		}
	}
	size, err := t.ChunkSize(chunk)
	if err != nil {
		return nil, err
	}
	offset := t.chunks.offset.Value(int(chunk - 1))
	data, err := readBytes(t.file.rs, offset, size, nil)
	if err != nil {
		return nil, errors.WithMessagef(err, "track %d: chunk %d", t.ID(), chunk)
	}
	t.trace("chunk read", "chunk", chunk, "offset", offset, "size", size)
	return data, nil
}

// RewriteChunk appends a replacement for chunk to the media data and points the chunk at it.
// data must have the size of the chunk it replaces.
func (t *Track) RewriteChunk(chunk uint32, data []byte) error {
	if err := t.file.writable(); err != nil {
		return err
	}
	size, err := t.ChunkSize(chunk)
	if err != nil {
		return err
	}
	if uint64(len(data)) != size {
		return errors.Wrapf(ErrInvalidValue, "track %d: chunk %d has %d bytes, got %d", t.ID(), chunk, size, len(data))
	}
	offset, err := t.file.writeBytes(data)
	if err != nil {
		return errors.WithMessagef(err, "track %d: rewrite chunk %d", t.ID(), chunk)
	}
	if t.chunks.offset.Width() == 4 && offset > math.MaxUint32 {
		t.promoteChunkOffsets()
	}
	t.chunks.offset.SetValue(uint64(offset), int(chunk-1))
	t.cachedID, t.cached = 0, nil
	t.trace("chunk rewritten", "chunk", chunk, "offset", offset, "size", len(data))
	return nil
}
