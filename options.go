package mp4

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"m7s.live/mp4/pkg/box"
	"m7s.live/mp4/pkg/config"
)

// Options control how a File is parsed and written. Zero-valued numeric fields fall back to
// their defaults; start from DefaultOptions to also get the boolean defaults.
type Options struct {
	TimeScale            uint32            `default:"1000" desc:"movie timescale of new files"`
	MajorBrand           string            `default:"isom"`
	MinorVersion         uint32            `default:"512"`
	CompatibleBrands     []string          `default:"[isom, iso2, mp41]"`
	Use64BitTimes        bool              `desc:"write version 1 mvhd/tkhd/mdhd"`
	Use64BitChunkOffsets bool              `desc:"start new tracks with co64 instead of stco"`
	ComputeBitrate       bool              `default:"true" desc:"fill esds bitrates when a written track is finished"`
	ChunkDuration        time.Duration     `default:"1s" desc:"media time buffered per chunk"`
	MaxDepth             int               `default:"64" desc:"box nesting limit when parsing"`
	SkipBoxes            config.BoxPattern `desc:"box types kept as opaque bytes"`

	Logger *slog.Logger                                 `yaml:"-"`
	Now    func() time.Time                             `yaml:"-"`
	Opener func(name string) (io.ReadSeekCloser, error) `yaml:"-"`
}

func DefaultOptions() *Options {
	var opts Options
	var conf config.Config
	conf.Parse(&opts, "MP4")
	return &opts
}

// LoadOptions reads yaml on top of the defaults; MP4_* environment variables win over both.
// An unusable skipboxes pattern is an error rather than a silently empty one.
func LoadOptions(r io.Reader) (*Options, error) {
	var m map[string]any
	if err := yaml.NewDecoder(r).Decode(&m); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "decode options")
	}
	for k, v := range m {
		if v != nil && strings.EqualFold(k, "skipboxes") {
			if _, err := config.CompileBoxPattern(fmt.Sprint(v)); err != nil {
				return nil, errors.Wrap(ErrInvalidValue, err.Error())
			}
		}
	}
	if v := os.Getenv("MP4_SKIPBOXES"); v != "" {
		if _, err := config.CompileBoxPattern(v); err != nil {
			return nil, errors.Wrap(ErrInvalidValue, err.Error())
		}
	}
	var opts Options
	var conf config.Config
	conf.Parse(&opts, "MP4")
	conf.ParseUserFile(m)
	return &opts, nil
}

func (o *Options) normalize() *Options {
	if o == nil {
		o = DefaultOptions()
	}
	n := *o
	if n.TimeScale == 0 {
		n.TimeScale = 1000
	}
	if n.MajorBrand == "" {
		n.MajorBrand = "isom"
	}
	if n.ChunkDuration <= 0 {
		n.ChunkDuration = time.Second
	}
	if n.MaxDepth <= 0 {
		n.MaxDepth = 64
	}
	if n.Logger == nil {
		n.Logger = discard
	}
	if n.Now == nil {
		n.Now = time.Now
	}
	if n.Opener == nil {
		n.Opener = func(name string) (io.ReadSeekCloser, error) {
			return os.Open(name)
		}
	}
	return &n
}

func (o *Options) parseOptions() *box.ParseOptions {
	po := &box.ParseOptions{Logger: o.Logger, MaxDepth: o.MaxDepth}
	if o.SkipBoxes.Valid() {
		po.Skip = o.SkipBoxes.MatchType
	}
	return po
}
