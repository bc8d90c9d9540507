package mp4

import (
	"io"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/pkg/errors"

	"m7s.live/mp4/pkg/box"
)

// InvalidDuration asks WriteSample to use the fixed sample duration of the track.
const InvalidDuration = math.MaxUint64

// rows is the entries table of one sample table box. The zero value stands for a missing box.
type rows struct {
	*box.Table
	box *box.Box
}

func bindRows(b *box.Box) rows {
	if b == nil {
		return rows{}
	}
	return rows{b.Table("entries"), b}
}

func (r rows) len() int {
	if r.Table == nil {
		return 0
	}
	return r.Count()
}

func (r rows) column(name string) *box.Integer {
	if r.box == nil {
		return nil
	}
	return r.box.Column("entries", name)
}

// appendRow adds a row holding values in column order.
func (r rows) appendRow(values ...uint64) {
	r.AddRow()
	r.setRow(r.Count()-1, values...)
}

func (r rows) insertRow(i int, values ...uint64) {
	r.InsertRow(i)
	r.setRow(i, values...)
}

func (r rows) setRow(i int, values ...uint64) {
	for c, fd := range r.Columns() {
		if c < len(values) {
			fd.(*box.Integer).SetValue(values[c], i)
		}
	}
}

type sizeTable struct {
	rows
	fixed       *box.Integer // nil for stz2
	sampleCount *box.Integer
	entrySize   *box.Integer
}

type stscTable struct {
	rows
	firstChunk, samplesPerChunk, descriptionIndex, firstSample *box.Integer
}

type chunkTable struct {
	rows
	offset *box.Integer
}

type sttsTable struct {
	rows
	sampleCount, sampleDelta *box.Integer
}

type cttsTable struct {
	rows
	sampleCount, sampleOffset *box.Integer
}

type stssTable struct {
	rows
	sampleNumber *box.Integer
}

type elstTable struct {
	rows
	segmentDuration, mediaTime, mediaRate, mediaRateFraction *box.Integer
}

// runCache remembers where the last run-length lookup ended.
type runCache struct {
	valid   bool
	index   int
	sid     uint64
	elapsed uint64
}

type sampleSource struct {
	valid bool
	desc  uint64
	r     io.ReadSeekCloser
	err   error
}

// Track drives the sample tables of one trak box: samples are read back through them, and new
// samples are buffered into chunks that are appended to the media data of the file.
type Track struct {
	file *File
	trak *box.Box
	log  *slog.Logger

	tkhd, mdhd *box.Box
	stbl       *box.Box
	trackID    *box.Integer
	timeScale  *box.Integer
	handler    *box.String

	sizes  sizeTable
	stsc   stscTable
	chunks chunkTable
	stts   sttsTable
	ctts   cttsTable
	stss   stssTable
	elst   elstTable

	writeSampleID    uint32
	fixedDuration    uint64
	chunk            []byte
	chunkSamples     uint32
	chunkDuration    uint64
	samplesPerChunk  uint32
	durationPerChunk uint64
	bytesPerSample   uint64
	amr              bool
	amrMode          byte
	dependencies     []byte

	sttsCache, cttsCache runCache
	cachedID             uint32
	cached               []byte
	source               sampleSource

	stats TrackStats
}

func newTrack(f *File, trak *box.Box) (*Track, error) {
	t := &Track{
		file:           f,
		trak:           trak,
		tkhd:           trak.FindBox("tkhd"),
		mdhd:           trak.FindBox("mdia.mdhd"),
		stbl:           trak.FindBox("mdia.minf.stbl"),
		bytesPerSample: 1,
		fixedDuration:  InvalidDuration,
	}
	if t.tkhd == nil || t.mdhd == nil || t.stbl == nil {
		return nil, errors.Wrap(ErrMalformed, "trak needs tkhd, mdia.mdhd and mdia.minf.stbl")
	}
	t.trackID = t.tkhd.Integer("trackId")
	t.timeScale = t.mdhd.Integer("timeScale")
	if hdlr := trak.FindBox("mdia.hdlr"); hdlr != nil {
		t.handler, _ = hdlr.Field("handlerType").(*box.String)
	}
	if t.trackID == nil || t.timeScale == nil || t.handler == nil {
		return nil, errors.Wrap(ErrMalformed, "trak without track id, timescale or handler type")
	}
	t.log = f.log.With("track", t.trackID.Value(0))
	if err := t.bind(); err != nil {
		return nil, errors.WithMessagef(err, "track %d", t.ID())
	}
	if sdtp := t.stbl.Child(box.TypeSDTP, 0); sdtp != nil {
		if data, err := sdtp.GetBytes("data"); err == nil {
			t.dependencies = slices.Clone(data)
		}
	}
	t.loadSampleEntries()
	t.writeSampleID = t.NumberOfSamples() + 1
	t.SetDurationPerChunk(ConvertTime(uint64(f.opts.ChunkDuration.Milliseconds()), 1000, t.TimeScale()))
	t.publishStats(true)
	return t, nil
}

// loadSampleEntries picks up the sample entry properties the writer depends on: AMR framing and the
// frame size of raw PCM.
func (t *Track) loadSampleEntries() {
	t.amr, t.bytesPerSample = false, 1
	stsd := t.stbl.Child(box.TypeSTSD, 0)
	if stsd == nil {
		return
	}
	t.amr = stsd.Child(box.TypeSAMR, 0) != nil || stsd.Child(box.TypeSAWB, 0) != nil
	if entries := stsd.Children(); len(entries) == 1 && (entries[0].Type == box.TypeTWOS || entries[0].Type == box.TypeSOWT) {
		channels, _ := entries[0].GetInteger("channels")
		bits, _ := entries[0].GetInteger("sampleSize")
		if n := channels * (bits / 8); n > 0 {
			t.bytesPerSample = n
		}
	}
}

// bind resolves the sample table handles; the optional tables may be absent.
func (t *Track) bind() error {
	if stsz := t.stbl.Child(box.TypeSTSZ, 0); stsz != nil {
		t.sizes = sizeTable{rows: bindRows(stsz), fixed: stsz.Integer("sampleSize"), sampleCount: stsz.Integer("sampleCount")}
	} else if stz2 := t.stbl.Child(box.TypeSTZ2, 0); stz2 != nil {
		t.sizes = sizeTable{rows: bindRows(stz2), sampleCount: stz2.Integer("sampleCount")}
	}
	t.sizes.entrySize = t.sizes.column("entrySize")
	if t.sizes.entrySize == nil || t.sizes.sampleCount == nil {
		return errors.Wrap(ErrMalformed, "no sample size table")
	}
	stsc := bindRows(t.stbl.Child(box.TypeSTSC, 0))
	t.stsc = stscTable{stsc, stsc.column("firstChunk"), stsc.column("samplesPerChunk"), stsc.column("sampleDescriptionIndex"), stsc.column("firstSample")}
	if t.stsc.firstSample == nil || t.stsc.firstChunk == nil || t.stsc.samplesPerChunk == nil || t.stsc.descriptionIndex == nil {
		return errors.Wrap(ErrMalformed, "no sample to chunk table")
	}
	chunks := t.stbl.Child(box.TypeSTCO, 0)
	if chunks == nil {
		chunks = t.stbl.Child(box.TypeCO64, 0)
	}
	t.bindChunks(chunks)
	if t.chunks.offset == nil {
		return errors.Wrap(ErrMalformed, "no chunk offset table")
	}
	stts := bindRows(t.stbl.Child(box.TypeSTTS, 0))
	t.stts = sttsTable{stts, stts.column("sampleCount"), stts.column("sampleDelta")}
	if t.stts.sampleDelta == nil || t.stts.sampleCount == nil {
		return errors.Wrap(ErrMalformed, "no time to sample table")
	}
	t.bindCtts(t.stbl.Child(box.TypeCTTS, 0))
	t.bindStss(t.stbl.Child(box.TypeSTSS, 0))
	t.bindElst(t.trak.FindBox("edts.elst"))
	return nil
}

func (t *Track) bindChunks(b *box.Box) {
	r := bindRows(b)
	t.chunks = chunkTable{r, r.column("chunkOffset")}
}

func (t *Track) bindCtts(b *box.Box) {
	r := bindRows(b)
	t.ctts = cttsTable{r, r.column("sampleCount"), r.column("sampleOffset")}
	if t.ctts.sampleOffset == nil {
		t.ctts = cttsTable{}
	}
	t.cttsCache = runCache{}
}

func (t *Track) bindStss(b *box.Box) {
	r := bindRows(b)
	t.stss = stssTable{r, r.column("sampleNumber")}
	if t.stss.sampleNumber == nil {
		t.stss = stssTable{}
	}
}

func (t *Track) bindElst(b *box.Box) {
	r := bindRows(b)
	t.elst = elstTable{r, r.column("segmentDuration"), r.column("mediaTime"), r.column("mediaRate"), r.column("mediaRateFraction")}
	if t.elst.segmentDuration == nil {
		t.elst = elstTable{}
	}
}

// addTableBox creates a generated sample table box right after the sibling of type after.
func (t *Track) addTableBox(typ, after [4]byte) *box.Box {
	b := box.New(typ, t.stbl)
	b.Generate()
	i := len(t.stbl.Children())
	if prev := t.stbl.Child(after, 0); prev != nil {
		i = slices.Index(t.stbl.Children(), prev) + 1
	}
	t.stbl.InsertChild(b, i)
	return b
}

func (t *Track) ID() uint32 {
	return uint32(t.trackID.Value(0))
}

// Box is the trak box of the track.
func (t *Track) Box() *box.Box {
	return t.trak
}

// Type is the handler type, such as vide or soun.
func (t *Track) Type() string {
	return t.handler.Value(0)
}

func (t *Track) SetType(typ string) error {
	if err := t.file.writable(); err != nil {
		return err
	}
	if err := t.handler.SetValue(normalizeTrackType(typ), 0); err != nil {
		return err
	}
	t.publishStats(false)
	return nil
}

func normalizeTrackType(typ string) string {
	switch strings.ToLower(typ) {
	case "video":
		return "vide"
	case "audio", "sound":
		return "soun"
	case "od":
		return "odsm"
	case "scene":
		return "sdsm"
	case "hint":
		return "hint"
	}
	return typ
}

// MediaDataName is the type of the first sample description, such as avc1 or mp4a.
func (t *Track) MediaDataName() string {
	if stsd := t.stbl.Child(box.TypeSTSD, 0); stsd != nil && len(stsd.Children()) > 0 {
		return stsd.Children()[0].TypeString()
	}
	return ""
}

func (t *Track) Name() string {
	name, _ := t.trak.GetString("udta.name.value")
	return name
}

func (t *Track) SetName(name string) error {
	if err := t.file.writable(); err != nil {
		return err
	}
	b, err := t.file.AddDescendants(t.trak, "udta.name")
	if err != nil {
		return err
	}
	return b.SetString("value", name)
}

func (t *Track) TimeScale() uint32 {
	return uint32(t.timeScale.Value(0))
}

// Duration is the media duration in the track timescale.
func (t *Track) Duration() uint64 {
	return t.mdhd.Integer("duration").Value(0)
}

func (t *Track) NumberOfSamples() uint32 {
	return uint32(t.sizes.sampleCount.Value(0))
}

func (t *Track) NumberOfChunks() uint32 {
	return uint32(t.chunks.len())
}

// FixedSampleSize is the size shared by every sample, 0 when sizes vary.
func (t *Track) FixedSampleSize() uint32 {
	return uint32(t.fixedSize())
}

func (t *Track) fixedSize() uint64 {
	if t.sizes.fixed == nil {
		return 0
	}
	return t.sizes.fixed.Value(0)
}

// FixedSampleDuration is the duration WriteSample uses for InvalidDuration: the single stts delta,
// or the value set before the first sample. InvalidDuration when no value was set or durations vary.
func (t *Track) FixedSampleDuration() uint64 {
	switch t.stts.len() {
	case 0:
		return t.fixedDuration
	case 1:
		return t.stts.sampleDelta.Value(0)
	}
	return InvalidDuration
}

func (t *Track) SetFixedSampleDuration(d uint64) error {
	if t.stts.len() != 0 {
		return errors.Wrapf(ErrInvalidOperation, "track %d already has sample durations", t.ID())
	}
	t.fixedDuration = d
	return nil
}

// SetSamplesPerChunk makes every chunk hold n samples; 0 goes back to chunking by duration.
func (t *Track) SetSamplesPerChunk(n uint32) {
	t.samplesPerChunk = n
}

// SetDurationPerChunk chunks by media duration, in the track timescale.
func (t *Track) SetDurationPerChunk(d uint64) {
	t.durationPerChunk = d
	t.samplesPerChunk = 0
}

// SetCompactSampleSizes replaces the stsz box of a track without samples by a stz2 box with
// entries of bits bits: 4, 8 or 16.
func (t *Track) SetCompactSampleSizes(bits int) error {
	if err := t.file.writable(); err != nil {
		return err
	}
	if t.NumberOfSamples() != 0 {
		return errors.Wrapf(ErrInvalidOperation, "track %d already has samples", t.ID())
	}
	if bits != 4 && bits != 8 && bits != 16 {
		return errors.Wrapf(ErrInvalidValue, "stz2 field size %d", bits)
	}
	old := t.sizes.box
	stz2 := box.New(box.TypeSTZ2, t.stbl)
	stz2.Generate()
	stz2.Integer("fieldSize").SetValue(uint64(bits), 0)
	stz2.Relayout()
	i := slices.Index(t.stbl.Children(), old)
	t.stbl.RemoveChild(old)
	if err := t.stbl.InsertChild(stz2, i); err != nil {
		return err
	}
	return t.bind()
}

// Close releases the external sample source opened for reading, if any.
func (t *Track) Close() error {
	var err error
	if t.source.r != nil {
		err = t.source.r.Close()
	}
	t.source = sampleSource{}
	return err
}
