package mp4

import (
	"math"
	"slices"

	"github.com/pkg/errors"

	"m7s.live/mp4/pkg/box"
)

// AddEdit inserts an edit at position id, 1-based; 0 appends. The new edit plays the media from
// its start at normal rate for a duration of 0. It returns the id of the new edit.
func (t *Track) AddEdit(id uint32) (uint32, error) {
	if err := t.file.writable(); err != nil {
		return 0, err
	}
	n := uint32(t.elst.len())
	if id == 0 {
		id = n + 1
	}
	if id > n+1 {
		return 0, errors.Wrapf(ErrOutOfRange, "track %d: edit %d of %d", t.ID(), id, n)
	}
	if t.elst.Table == nil {
		edts := t.trak.Child(box.TypeEDTS, 0)
		if edts == nil {
			edts = box.New(box.TypeEDTS, t.trak)
			i := slices.Index(t.trak.Children(), t.tkhd) + 1
			if tref := t.trak.Child(box.TypeTREF, 0); tref != nil {
				i = slices.Index(t.trak.Children(), tref) + 1
			}
			t.trak.InsertChild(edts, i)
		}
		t.bindElst(edts.NewChild(box.TypeELST))
	}
	t.elst.insertRow(int(id-1), 0, 0, 1, 0)
	return id, nil
}

// DeleteEdit removes edit id; the edts box goes with the last edit.
func (t *Track) DeleteEdit(id uint32) error {
	if err := t.file.writable(); err != nil {
		return err
	}
	if err := t.checkEditID(id); err != nil {
		return err
	}
	t.elst.DeleteRow(int(id - 1))
	if t.elst.len() == 0 {
		t.trak.RemoveChild(t.trak.Child(box.TypeEDTS, 0))
		t.elst = elstTable{}
	}
	return nil
}

func (t *Track) NumberOfEdits() uint32 {
	return uint32(t.elst.len())
}

func (t *Track) checkEditID(id uint32) error {
	if id == 0 || id > t.NumberOfEdits() {
		return errors.Wrapf(ErrOutOfRange, "track %d: edit %d of %d", t.ID(), id, t.NumberOfEdits())
	}
	return nil
}

// EditStart is the movie time edit id starts at: the total duration of the edits before it.
func (t *Track) EditStart(id uint32) (uint64, error) {
	if err := t.checkEditID(id); err != nil {
		return 0, err
	}
	if id == 1 {
		return 0, nil
	}
	return t.EditTotalDuration(id - 1)
}

// EditTotalDuration sums the durations of edits 1 to id, or of every edit when id is 0.
func (t *Track) EditTotalDuration(id uint32) (uint64, error) {
	if id == 0 {
		id = t.NumberOfEdits()
	}
	if err := t.checkEditID(id); err != nil {
		return InvalidDuration, err
	}
	var total uint64
	for i := 0; i < int(id); i++ {
		total += t.elst.segmentDuration.Value(i)
	}
	return total, nil
}

// EditMediaStart is the media time edit id starts playing from; -1 marks an empty edit.
func (t *Track) EditMediaStart(id uint32) (int64, error) {
	if err := t.checkEditID(id); err != nil {
		return 0, err
	}
	return t.elst.mediaTime.Int(int(id - 1)), nil
}

func (t *Track) SetEditMediaStart(id uint32, start int64) error {
	if err := t.checkEditWrite(id); err != nil {
		return err
	}
	if start < math.MinInt32 || start > math.MaxInt32 {
		t.widenEdits()
	}
	return t.elst.mediaTime.SetInt(start, int(id-1))
}

// EditDuration is the length of edit id in the movie timescale.
func (t *Track) EditDuration(id uint32) (uint64, error) {
	if err := t.checkEditID(id); err != nil {
		return 0, err
	}
	return t.elst.segmentDuration.Value(int(id - 1)), nil
}

func (t *Track) SetEditDuration(id uint32, d uint64) error {
	if err := t.checkEditWrite(id); err != nil {
		return err
	}
	if d > math.MaxUint32 {
		t.widenEdits()
	}
	return t.elst.segmentDuration.SetValue(d, int(id-1))
}

// EditDwell reports whether edit id holds a single frame for its duration (media rate 0).
func (t *Track) EditDwell(id uint32) (bool, error) {
	if err := t.checkEditID(id); err != nil {
		return false, err
	}
	return t.elst.mediaRate.Int(int(id-1)) == 0, nil
}

func (t *Track) SetEditDwell(id uint32, dwell bool) error {
	if err := t.checkEditWrite(id); err != nil {
		return err
	}
	rate := int64(1)
	if dwell {
		rate = 0
	}
	return t.elst.mediaRate.SetInt(rate, int(id-1))
}

func (t *Track) checkEditWrite(id uint32) error {
	if err := t.file.writable(); err != nil {
		return err
	}
	return t.checkEditID(id)
}

// widenEdits switches elst to version 1, keeping the sign of the media times.
func (t *Track) widenEdits() {
	times := make([]int64, t.elst.len())
	for i := range times {
		times[i] = t.elst.mediaTime.Int(i)
	}
	setVersion(t.elst.box, 1)
	for i, v := range times {
		t.elst.mediaTime.SetInt(v, i)
	}
}

// SampleIDFromEditTime maps a movie time, in the movie timescale, through the edit list to the
// sample shown at that time. start and duration place the sample on the edited timeline, clipped
// to its edit. Without edits the media timeline is used as it is.
//
// Edit durations and media times are compared directly, so they are expected to share a
// timescale.
func (t *Track) SampleIDFromEditTime(when uint64) (id uint32, start, duration uint64, err error) {
	n := t.elst.len()
	if n == 0 {
		if id, err = t.SampleIDFromTime(when, false); err != nil {
			return
		}
		start, duration, err = t.SampleTimes(id)
		return
	}
	var elapsed uint64
	for i := 0; i < n; i++ {
		editStart := elapsed
		segment := t.elst.segmentDuration.Value(i)
		elapsed += segment
		if elapsed <= when {
			continue
		}
		mediaTime := t.elst.mediaTime.Int(i)
		if mediaTime < 0 {
			return 0, 0, 0, errors.Wrapf(ErrOutOfRange, "track %d: time %d falls in empty edit %d", t.ID(), when, i+1)
		}
		offset := when - editStart
		mediaWhen := uint64(mediaTime) + offset
		if id, err = t.SampleIDFromTime(mediaWhen, false); err != nil {
			return
		}
		var sampleStart, sampleDuration uint64
		if sampleStart, sampleDuration, err = t.SampleTimes(id); err != nil {
			return
		}
		startOffset := mediaWhen - sampleStart
		start = when - min(offset, startOffset)
		if t.elst.mediaRate.Int(i) == 0 {
			duration = segment
		} else {
			duration = sampleDuration
			if startOffset > offset {
				duration -= min(duration, startOffset-offset)
			}
			if end := start + duration; end > elapsed {
				duration -= end - elapsed
			}
		}
		t.trace("edit time", "when", when, "edit", i+1, "sample", id, "start", start, "duration", duration)
		return
	}
	return 0, 0, 0, errors.Wrapf(ErrOutOfRange, "track %d: time %d beyond the edit list", t.ID(), when)
}
