package mp4

import (
	"bytes"
	"math"

	"github.com/bluenviron/mediacommon/pkg/codecs/mpeg4audio"
	"github.com/deepch/vdk/codec/aacparser"
	"github.com/deepch/vdk/codec/h264parser"
	"github.com/pkg/errors"

	"m7s.live/mp4/pkg/box"
)

// ObjectTypeAAC is the MPEG-4 audio objectTypeIndication.
const ObjectTypeAAC = 0x40

func (f *File) nextTrackID() uint32 {
	next := uint32(f.mvhd.Integer("nextTrackId").Value(0))
	for _, t := range f.tracks {
		if t.ID() >= next {
			next = t.ID() + 1
		}
	}
	if next == 0 {
		next = 1
	}
	return next
}

// AddTrack creates an empty track with handler type typ ("vide", "soun", or an alias such as "video").
func (f *File) AddTrack(typ string, timeScale uint32) (*Track, error) {
	if err := f.writable(); err != nil {
		return nil, err
	}
	typ = normalizeTrackType(typ)
	if len(typ) != 4 {
		return nil, errors.Wrapf(ErrInvalidValue, "track type %q", typ)
	}
	if timeScale == 0 {
		return nil, errors.Wrap(ErrInvalidValue, "zero timescale")
	}
	id := f.nextTrackID()
	trak := box.New(box.TypeTRAK, f.moov)
	trak.Generate()
	tkhd, mdhd := trak.Child(box.TypeTKHD, 0), trak.FindBox("mdia.mdhd")
	now := f.now()
	for _, b := range []*box.Box{tkhd, mdhd} {
		if f.opts.Use64BitTimes {
			setVersion(b, 1)
		}
		setTime(b, "creationTime", now)
		setTime(b, "modificationTime", now)
	}
	tkhd.Integer("trackId").SetValue(uint64(id), 0)
	mdhd.Integer("timeScale").SetValue(uint64(timeScale), 0)
	if err := trak.SetString("mdia.hdlr.handlerType", typ); err != nil {
		return nil, err
	}
	minf := trak.FindBox("mdia.minf")
	header := box.New(mediaHeader(typ), minf)
	header.Generate()
	minf.InsertChild(header, 0)
	stbl := minf.Child(box.TypeSTBL, 0)
	stbl.NewChild(box.TypeSTSZ)
	if f.opts.Use64BitChunkOffsets {
		stbl.NewChild(box.TypeCO64)
	} else {
		stbl.NewChild(box.TypeSTCO)
	}
	f.moov.AddChild(trak)
	f.mvhd.Integer("nextTrackId").SetValue(uint64(id)+1, 0)
	if typ == "soun" || typ == "vide" {
		f.addTrackToIOD(id)
	}
	t, err := newTrack(f, trak)
	if err != nil {
		f.moov.RemoveChild(trak)
		return nil, err
	}
	f.tracks = append(f.tracks, t)
	f.log.Debug("track added", "track", id, "type", typ, "timescale", timeScale)
	return t, nil
}

func mediaHeader(typ string) [4]byte {
	switch typ {
	case "vide":
		return box.TypeVMHD
	case "soun":
		return box.TypeSMHD
	case "hint":
		return box.TypeHMHD
	}
	return box.TypeNMHD
}

func (f *File) esIDs() *box.DescriptorList {
	iods := f.moov.Child(box.TypeIODS, 0)
	if iods == nil {
		return nil
	}
	fd, _, err := iods.FindField("esIds")
	if err != nil {
		return nil
	}
	list, _ := fd.(*box.DescriptorList)
	return list
}

func (f *File) addTrackToIOD(id uint32) {
	if list := f.esIDs(); list != nil {
		if d, err := list.AddDescriptor(box.ESIDIncDescrTag); err == nil {
			d.Integer("trackId").SetValue(uint64(id), 0)
		}
	}
}

func (f *File) removeTrackFromIOD(id uint32) {
	list := f.esIDs()
	if list == nil {
		return
	}
	for i := 0; i < list.Count(); i++ {
		if d := list.Descriptor(i); d.Integer("trackId") != nil && d.Integer("trackId").Value(0) == uint64(id) {
			list.RemoveDescriptor(i)
			return
		}
	}
}

// discardTrack undoes a track that could not be completed and returns cause, noting a failed delete.
func (f *File) discardTrack(t *Track, cause error) error {
	if err := f.DeleteTrack(t.ID()); err != nil {
		return errors.WithMessagef(cause, "delete track %d: %v", t.ID(), err)
	}
	return cause
}

// DeleteTrack drops the track and its trak box. Media data already written stays in mdat.
func (f *File) DeleteTrack(id uint32) error {
	if err := f.writable(); err != nil {
		return err
	}
	for i, t := range f.tracks {
		if t.ID() != id {
			continue
		}
		if err := f.moov.RemoveChild(t.trak); err != nil {
			return err
		}
		f.removeTrackFromIOD(id)
		f.tracks = append(f.tracks[:i], f.tracks[i+1:]...)
		f.dropStats(id)
		return t.Close()
	}
	return errors.Wrapf(ErrNotFound, "track %d", id)
}

func (t *Track) stsd() *box.Box {
	return t.stbl.Child(box.TypeSTSD, 0)
}

// AddAudioTrack adds an MPEG-4 audio track with an mp4a sample entry.
func (f *File) AddAudioTrack(timeScale uint32, sampleDuration uint64, objectType uint8) (*Track, error) {
	t, err := f.AddTrack("soun", timeScale)
	if err != nil {
		return nil, err
	}
	mp4a := t.stsd().NewChild(box.TypeMP4A)
	if timeScale <= math.MaxUint16 {
		mp4a.Integer("timeScale").SetValue(uint64(timeScale), 0)
	}
	esds := mp4a.Child(box.TypeESDS, 0)
	esds.SetInteger("ESID", uint64(t.ID()))
	esds.SetInteger("decConfigDescr.objectTypeId", uint64(objectType))
	// audio stream
	esds.SetInteger("decConfigDescr.streamType", 5)
	t.tkhd.Field("volume").(*box.Float).SetValue(1, 0)
	t.tkhd.Integer("alternateGroup").SetValue(1, 0)
	t.SetFixedSampleDuration(sampleDuration)
	t.publishStats(false)
	return t, nil
}

// AddAACTrack adds an AAC track described by an AudioSpecificConfig.
func (f *File) AddAACTrack(asc []byte) (*Track, error) {
	codec, err := aacparser.NewCodecDataFromMPEG4AudioConfigBytes(asc)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidValue, "audio specific config: %v", err)
	}
	t, err := f.AddAudioTrack(uint32(codec.SampleRate()), 1024, ObjectTypeAAC)
	if err != nil {
		return nil, err
	}
	mp4a := t.stsd().Child(box.TypeMP4A, 0)
	mp4a.Integer("channels").SetValue(uint64(codec.ChannelLayout().Count()), 0)
	fd, _, err := mp4a.FindField("esds.decConfigDescr.decSpecificInfo")
	if err != nil {
		return nil, err
	}
	d, err := fd.(*box.DescriptorList).AddDescriptor(box.DecSpecificInfoTag)
	if err != nil {
		return nil, err
	}
	return t, d.Field("info").(*box.Bytes).SetValue(asc, 0)
}

// AddAACTrackFromConfig adds an AAC-LC track, building the AudioSpecificConfig from its parameters.
func (f *File) AddAACTrackFromConfig(sampleRate, channels int) (*Track, error) {
	conf := mpeg4audio.Config{
		Type:         mpeg4audio.ObjectTypeAACLC,
		SampleRate:   sampleRate,
		ChannelCount: channels,
	}
	asc, err := conf.Marshal()
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidValue, "audio config: %v", err)
	}
	return f.AddAACTrack(asc)
}

// AddVideoTrack adds a video track with a visual sample entry of the given type, such as avc1.
func (f *File) AddVideoTrack(timeScale uint32, sampleDuration uint64, width, height uint16, entry [4]byte) (*Track, error) {
	t, err := f.AddTrack("vide", timeScale)
	if err != nil {
		return nil, err
	}
	e := t.stsd().NewChild(entry)
	if e.Integer("width") == nil {
		return nil, f.discardTrack(t, errors.Wrapf(ErrInvalidValue, "%s is not a visual sample entry", box.TypeString(entry)))
	}
	e.Integer("width").SetValue(uint64(width), 0)
	e.Integer("height").SetValue(uint64(height), 0)
	t.tkhd.Field("width").(*box.Float).SetValue(float64(width), 0)
	t.tkhd.Field("height").(*box.Float).SetValue(float64(height), 0)
	t.SetFixedSampleDuration(sampleDuration)
	t.publishStats(false)
	return t, nil
}

// AddH264Track adds an H.264 track from an AVCDecoderConfigurationRecord; the picture size comes from its SPS.
func (f *File) AddH264Track(timeScale uint32, sampleDuration uint64, avcC []byte) (*Track, error) {
	codec, err := h264parser.NewCodecDataFromAVCDecoderConfRecord(avcC)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidValue, "avcC: %v", err)
	}
	t, err := f.AddVideoTrack(timeScale, sampleDuration, uint16(codec.Width()), uint16(codec.Height()), box.TypeAVC1)
	if err != nil {
		return nil, err
	}
	avc1 := t.stsd().Child(box.TypeAVC1, 0)
	h := box.Header{Type: box.TypeAVCC, Size: uint64(box.BasicBoxLen + len(avcC)), HeaderSize: box.BasicBoxLen}
	record, err := box.Decode(h, avcC, 0, avc1, f.opts.parseOptions())
	if err != nil {
		return nil, err
	}
	avc1.RemoveChild(avc1.Child(box.TypeAVCC, 0))
	avc1.InsertChild(record, 0)
	return t, nil
}

// AddVP9Track adds a VP9 track with a default vpcC configuration.
func (f *File) AddVP9Track(timeScale uint32, sampleDuration uint64, width, height uint16) (*Track, error) {
	return f.AddVideoTrack(timeScale, sampleDuration, width, height, box.TypeVP09)
}

// AddPCMTrack adds an uncompressed audio track; every sample is one frame of all channels.
func (f *File) AddPCMTrack(sampleRate uint32, channels, bits uint16, littleEndian bool) (*Track, error) {
	if bits == 0 || bits%8 != 0 || channels == 0 {
		return nil, errors.Wrapf(ErrInvalidValue, "pcm %d channels of %d bits", channels, bits)
	}
	t, err := f.AddTrack("soun", sampleRate)
	if err != nil {
		return nil, err
	}
	typ := box.TypeTWOS
	if littleEndian {
		typ = box.TypeSOWT
	}
	e := t.stsd().NewChild(typ)
	e.Integer("channels").SetValue(uint64(channels), 0)
	e.Integer("sampleSize").SetValue(uint64(bits), 0)
	if sampleRate <= math.MaxUint16 {
		e.Integer("timeScale").SetValue(uint64(sampleRate), 0)
	}
	t.tkhd.Field("volume").(*box.Float).SetValue(1, 0)
	t.bytesPerSample = uint64(channels) * uint64(bits/8)
	t.SetFixedSampleDuration(1)
	t.publishStats(false)
	return t, nil
}

// AddTrackLike adds an empty track with the type, timescale, presentation size and sample
// descriptions of src, which may belong to another file. The copied descriptions refer to the
// media data of f.
func (f *File) AddTrackLike(src *Track) (*Track, error) {
	entries := src.stsd()
	if entries == nil {
		return nil, errors.Wrapf(ErrMalformed, "track %d has no sample descriptions", src.ID())
	}
	t, err := f.AddTrack(src.Type(), src.TimeScale())
	if err != nil {
		return nil, err
	}
	stsd := t.stsd()
	for _, entry := range entries.Children() {
		data, err := entry.Encode()
		if err != nil {
			return nil, f.discardTrack(t, errors.WithMessagef(err, "encode %s", entry.TypeString()))
		}
		h, err := box.ReadHeader(bytes.NewReader(data))
		if err != nil {
			return nil, f.discardTrack(t, errors.Wrap(ErrMalformed, err.Error()))
		}
		clone, err := box.Decode(h, data[h.HeaderSize:], 0, stsd, f.opts.parseOptions())
		if err != nil {
			return nil, f.discardTrack(t, err)
		}
		if ref := clone.Integer("dataReferenceIndex"); ref != nil {
			ref.SetValue(1, 0)
		}
		stsd.AddChild(clone)
	}
	for _, name := range []string{"width", "height", "volume"} {
		if from, ok := src.tkhd.Field(name).(*box.Float); ok {
			t.tkhd.Field(name).(*box.Float).SetValue(from.Value(0), 0)
		}
	}
	t.tkhd.Integer("alternateGroup").SetValue(src.tkhd.Integer("alternateGroup").Value(0), 0)
	t.loadSampleEntries()
	t.fixedDuration = src.FixedSampleDuration()
	t.publishStats(false)
	return t, nil
}
