package mp4

import (
	"io"
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"m7s.live/mp4/pkg/box"
)

// Stream is the byte stream a writable File works on. Files opened for reading only need an io.ReadSeeker.
type Stream = io.ReadWriteSeeker

type openMode int

const (
	modeRead openMode = iota
	modeCreate
	modeModify
)

// File coordinates the box tree, the tracks and the stream of one ISO base media file.
// New media data is appended to an mdat box; the moov box is written behind it on Close.
type File struct {
	root   *box.Box
	moov   *box.Box
	mvhd   *box.Box
	tracks []*Track
	rs     io.ReadSeeker
	ws     io.WriteSeeker
	mode   openMode
	opts   *Options
	log    *slog.Logger

	placeholder *box.Box // free box in front of mdat, absorbed by a 64-bit mdat header
	mdat        *box.Box
	end         int64 // end of the media data written so far
	closed      bool

	statsMu sync.Mutex
	stats   []TrackStats
}

func newFile(rs io.ReadSeeker, ws io.WriteSeeker, mode openMode, opts *Options) *File {
	opts = opts.normalize()
	return &File{rs: rs, ws: ws, mode: mode, opts: opts, log: opts.Logger}
}

// Read parses a file for reading. Media data stays in the stream.
func Read(rs io.ReadSeeker, opts *Options) (*File, error) {
	f := newFile(rs, nil, modeRead, opts)
	if err := f.parse(); err != nil {
		return nil, err
	}
	return f, nil
}

// Create starts a new file on s: ftyp, a free placeholder and the header of the mdat box that
// samples are appended to.
func Create(s Stream, opts *Options) (*File, error) {
	f := newFile(s, s, modeCreate, opts)
	f.root = box.NewRoot()
	ftyp := box.New(box.TypeFTYP, f.root)
	ftyp.Generate()
	f.root.AddChild(ftyp)
	if err := f.setBrands(ftyp); err != nil {
		return nil, err
	}
	data, err := ftyp.Encode()
	if err != nil {
		return nil, err
	}
	if err = f.writeAt(0, data); err != nil {
		return nil, err
	}
	f.moov = box.New(box.TypeMOOV, f.root)
	f.moov.Generate()
	f.moov.NewChild(box.TypeIODS)
	f.mvhd = f.moov.Child(box.TypeMVHD, 0)
	if f.opts.Use64BitTimes {
		setVersion(f.mvhd, 1)
	}
	now := f.now()
	setTime(f.mvhd, "creationTime", now)
	setTime(f.mvhd, "modificationTime", now)
	f.mvhd.Integer("timeScale").SetValue(uint64(f.opts.TimeScale), 0)
	if err = f.beginMdat(int64(len(data))); err != nil {
		return nil, err
	}
	f.root.AddChild(f.moov)
	return f, nil
}

// Modify opens an existing file for appending. The old moov box is rewritten at the end on Close:
// when it is the last box it is overwritten, otherwise it is blanked out as a free box.
func Modify(s Stream, opts *Options) (*File, error) {
	f := newFile(s, s, modeModify, opts)
	if err := f.parse(); err != nil {
		return nil, err
	}
	children := f.root.Children()
	var last *box.Box
	pos := int64(-1)
	for i := len(children) - 1; i >= 0 && pos < 0; i-- {
		c := children[i]
		switch {
		case (c.Type == box.TypeFREE || c.Type == box.TypeSKIP) && last == nil:
			f.root.RemoveChild(c)
		case c.Type != box.TypeMOOV:
			if last == nil {
				last = c
			}
		case c != f.moov:
			return nil, errors.Wrapf(ErrMalformed, "second moov box at offset %d", c.Offset)
		case last == nil:
			pos = c.Offset
			f.root.RemoveChild(c)
		default:
			if err := f.blank(c); err != nil {
				return nil, err
			}
			pos = last.Offset + int64(last.Size)
		}
	}
	if err := f.beginMdat(pos); err != nil {
		return nil, err
	}
	f.root.AddChild(f.moov)
	return f, nil
}

// parse reads the top-level boxes straight from the stream.
func (f *File) parse() error {
	size, err := f.rs.Seek(0, io.SeekEnd)
	if err != nil {
		return errors.Wrap(err, "seek to end")
	}
	f.root = box.NewRoot()
	po := f.opts.parseOptions()
	for pos := int64(0); pos < size; {
		if size-pos < box.BasicBoxLen {
			f.log.Warn("trailing bytes after the last box", "offset", pos, "size", size-pos)
			break
		}
		if err = f.setPosition(pos); err != nil {
			return err
		}
		h, err := box.ReadHeader(f.rs)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return errors.Wrapf(ErrMalformed, "truncated box header at offset %d", pos)
			}
			return errors.WithMessagef(err, "offset %d", pos)
		}
		remain := uint64(size - pos)
		if h.ToEnd {
			h.Size = remain
		}
		if h.Size > remain {
			if h.Type != box.TypeMDAT {
				return errors.Wrapf(ErrMalformed, "box %s at offset %d: size %d exceeds the %d bytes left", box.TypeString(h.Type), pos, h.Size, remain)
			}
			f.log.Warn("truncated mdat", "offset", pos, "size", h.Size, "available", remain)
			h.Size = remain
		}
		var b *box.Box
		if box.Lookup([4]byte{}, h.Type).Lazy {
			b = box.NewLazy(h, pos, f.root)
		} else {
			payload := make([]byte, h.Size-uint64(h.HeaderSize))
			if _, err = io.ReadFull(f.rs, payload); err != nil {
				return errors.Wrapf(ErrMalformed, "read %s at offset %d: %v", box.TypeString(h.Type), pos, err)
			}
			if b, err = box.Decode(h, payload, pos, f.root, po); err != nil {
				return err
			}
		}
		f.root.AddChild(b)
		pos += int64(h.Size)
	}
	if f.moov = f.root.Child(box.TypeMOOV, 0); f.moov == nil {
		return errors.Wrap(ErrMalformed, "no moov box")
	}
	if f.mvhd = f.moov.Child(box.TypeMVHD, 0); f.mvhd == nil || f.mvhd.Integer("timeScale") == nil {
		return errors.Wrap(ErrMalformed, "no mvhd box")
	}
	for _, trak := range f.moov.Children() {
		if trak.Type != box.TypeTRAK {
			continue
		}
		t, err := newTrack(f, trak)
		if err != nil {
			return errors.WithMessagef(err, "trak at offset %d", trak.Offset)
		}
		f.tracks = append(f.tracks, t)
	}
	f.log.Debug("parsed", "boxes", len(f.root.Children()), "tracks", len(f.tracks), "size", size)
	return nil
}

// Close finishes every track, writes moov behind the media data and patches the mdat size.
// Files opened with Read only release their external sample sources.
func (f *File) Close() (err error) {
	if f.closed {
		return nil
	}
	if f.mode != modeRead {
		err = f.finish()
	}
	f.closed = true
	for _, t := range f.tracks {
		if cerr := t.Close(); err == nil {
			err = cerr
		}
	}
	return
}

func (f *File) finish() error {
	for _, t := range f.tracks {
		if err := t.FinishWrite(f.opts.ComputeBitrate); err != nil {
			return errors.WithMessagef(err, "finish track %d", t.ID())
		}
	}
	setTime(f.mvhd, "modificationTime", f.now())
	if err := f.finishMdat(); err != nil {
		return err
	}
	if err := f.rewriteFtyp(); err != nil {
		return err
	}
	data, err := f.moov.Encode()
	if err != nil {
		return errors.WithMessage(err, "encode moov")
	}
	f.moov.Offset = f.end
	if err = f.writeAt(f.end, data); err != nil {
		return err
	}
	end := f.end + int64(len(data))
	f.log.Debug("closed", "mdat", f.mdat.Size, "moov", len(data), "tracks", len(f.tracks))
	return f.truncate(end)
}

func (f *File) writable() error {
	if f.mode == modeRead {
		return errors.Wrap(ErrInvalidOperation, "file is open for reading")
	}
	if f.closed {
		return errors.Wrap(ErrInvalidOperation, "file is closed")
	}
	return nil
}

// setBrands replaces the ftyp brands with the configured ones.
func (f *File) setBrands(ftyp *box.Box) error {
	if err := ftyp.SetString("majorBrand", f.opts.MajorBrand); err != nil {
		return errors.WithMessage(err, "major brand")
	}
	ftyp.SetInteger("minorVersion", uint64(f.opts.MinorVersion))
	brands := ftyp.Table("compatibleBrands")
	for brands.Count() > 0 {
		brands.DeleteRow(0)
	}
	for _, brand := range f.opts.CompatibleBrands {
		if err := f.addCompatibleBrand(ftyp, brand); err != nil {
			return err
		}
	}
	return nil
}

// addCompatibleBrand appends brand to the ftyp box unless it is listed already.
func (f *File) addCompatibleBrand(ftyp *box.Box, brand string) error {
	if ftyp == nil {
		return nil
	}
	brands := ftyp.Table("compatibleBrands")
	if brands == nil {
		return errors.Wrap(ErrMalformed, "ftyp without compatible brands")
	}
	column := brands.Column("brand").(*box.String)
	for i := 0; i < brands.Count(); i++ {
		if column.Value(i) == brand {
			return nil
		}
	}
	brands.AddRow()
	return errors.WithMessagef(column.SetValue(brand, brands.Count()-1), "brand %q", brand)
}

func (f *File) Root() *box.Box {
	return f.root
}

func (f *File) Tracks() []*Track {
	return f.tracks
}

// Track looks a track up by its id.
func (f *File) Track(id uint32) *Track {
	for _, t := range f.tracks {
		if t.ID() == id {
			return t
		}
	}
	return nil
}

// TimeScale is the movie timescale.
func (f *File) TimeScale() uint32 {
	return uint32(f.mvhd.Integer("timeScale").Value(0))
}

func (f *File) SetTimeScale(ts uint32) error {
	if err := f.writable(); err != nil {
		return err
	}
	return f.mvhd.Integer("timeScale").SetValue(uint64(ts), 0)
}

// Duration is the movie duration in the movie timescale.
func (f *File) Duration() uint64 {
	return f.mvhd.Integer("duration").Value(0)
}

// updateDuration raises the movie duration to d.
func (f *File) updateDuration(d uint64) {
	if d > f.Duration() {
		setTime(f.mvhd, "duration", d)
	}
}

// FindBox resolves a dotted path of box types from the top level, such as moov.trak[1].tkhd.
func (f *File) FindBox(path string) *box.Box {
	return f.root.FindBox(path)
}

func (f *File) GetInteger(path string) (uint64, error) {
	return f.root.GetInteger(path)
}

func (f *File) SetInteger(path string, v uint64) error {
	if err := f.writable(); err != nil {
		return err
	}
	return f.root.SetInteger(path, v)
}

func (f *File) GetFloat(path string) (float64, error) {
	return f.root.GetFloat(path)
}

func (f *File) SetFloat(path string, v float64) error {
	if err := f.writable(); err != nil {
		return err
	}
	return f.root.SetFloat(path, v)
}

func (f *File) GetString(path string) (string, error) {
	return f.root.GetString(path)
}

func (f *File) SetString(path string, v string) error {
	if err := f.writable(); err != nil {
		return err
	}
	return f.root.SetString(path, v)
}

func (f *File) GetBytes(path string) ([]byte, error) {
	return f.root.GetBytes(path)
}

func (f *File) SetBytes(path string, v []byte) error {
	if err := f.writable(); err != nil {
		return err
	}
	return f.root.SetBytes(path, v)
}

// AddDescendants creates the missing boxes along path below parent.
func (f *File) AddDescendants(parent *box.Box, path string) (*box.Box, error) {
	if err := f.writable(); err != nil {
		return nil, err
	}
	return parent.AddDescendants(path)
}

func (f *File) Dump(w io.Writer) {
	f.root.Dump(w)
}
