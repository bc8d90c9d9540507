package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"m7s.live/mp4"
)

var dumpCommand = &cli.Command{
	Name:      "dump",
	Usage:     "Print the box tree of each file",
	ArgsUsage: "FILE...",
	Action: func(c *cli.Context) error {
		if c.NArg() == 0 {
			return errors.New("no input file")
		}
		for _, name := range c.Args().Slice() {
			err := withFile(name, options(c), func(f *mp4.File) error {
				fmt.Fprintf(c.App.Writer, "%s:\n", name)
				f.Dump(c.App.Writer)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	},
}

var infoCommand = &cli.Command{
	Name:      "info",
	Usage:     "Print a track summary of each file",
	ArgsUsage: "FILE...",
	Action: func(c *cli.Context) error {
		names := c.Args().Slice()
		if len(names) == 0 {
			return errors.New("no input file")
		}
		opts := options(c)
		reports := make([]bytes.Buffer, len(names))
		g, ctx := errgroup.WithContext(c.Context)
		g.SetLimit(runtime.NumCPU())
		for i, name := range names {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				return withFile(name, opts, func(f *mp4.File) error {
					return summarize(&reports[i], name, f)
				})
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for i := range reports {
			if _, err := reports[i].WriteTo(c.App.Writer); err != nil {
				return err
			}
		}
		return nil
	},
}

var extractCommand = &cli.Command{
	Name:      "extract",
	Usage:     "Write the samples of one track back to back",
	ArgsUsage: "FILE OUT",
	Flags: []cli.Flag{
		&cli.UintFlag{Name: "track", Aliases: []string{"t"}, Required: true, Usage: "Track id"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return errors.New("extract needs FILE and OUT")
		}
		return withFile(c.Args().Get(0), options(c), func(f *mp4.File) error {
			t := f.Track(uint32(c.Uint("track")))
			if t == nil {
				return errors.Wrapf(mp4.ErrNotFound, "track %d", c.Uint("track"))
			}
			out, err := os.Create(c.Args().Get(1))
			if err != nil {
				return errors.Wrap(err, "create output")
			}
			defer out.Close()
			n, err := extract(out, t)
			if err != nil {
				return err
			}
			options(c).Logger.Info("track extracted", "track", t.ID(), "samples", t.NumberOfSamples(), "bytes", n)
			return out.Close()
		})
	},
}

var remuxCommand = &cli.Command{
	Name:      "remux",
	Usage:     "Copy every track into a new file",
	ArgsUsage: "IN OUT",
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return errors.New("remux needs IN and OUT")
		}
		opts := options(c)
		return withFile(c.Args().Get(0), opts, func(src *mp4.File) error {
			out, err := os.Create(c.Args().Get(1))
			if err != nil {
				return errors.Wrap(err, "create output")
			}
			defer out.Close()
			dst, err := mp4.Create(out, opts)
			if err != nil {
				return err
			}
			if err = remux(dst, src); err != nil {
				dst.Close()
				return err
			}
			if err = dst.Close(); err != nil {
				return err
			}
			return out.Close()
		})
	},
}

func withFile(name string, opts *mp4.Options, fn func(*mp4.File) error) error {
	r, err := os.Open(name)
	if err != nil {
		return errors.Wrap(err, "open input")
	}
	defer r.Close()
	f, err := mp4.Read(r, opts)
	if err != nil {
		return errors.WithMessage(err, name)
	}
	defer f.Close()
	return errors.WithMessage(fn(f), name)
}

func seconds(d uint64, timeScale uint32) float64 {
	if timeScale == 0 {
		return 0
	}
	return float64(d) / float64(timeScale)
}

func summarize(w io.Writer, name string, f *mp4.File) error {
	brand, err := f.GetString("ftyp.majorBrand")
	if err != nil {
		brand = "-"
	}
	fmt.Fprintf(w, "%s: brand %s, %d tracks, %.3fs\n", name, brand, len(f.Tracks()), seconds(f.Duration(), f.TimeScale()))
	for _, t := range f.Tracks() {
		codec := t.MediaDataName()
		if codec == "" {
			codec = "-"
		}
		fmt.Fprintf(w, "  track %d %s %s: %d samples in %d chunks, %.3fs at %d Hz, %d bytes, avg %d bit/s, max %d bit/s",
			t.ID(), t.Type(), codec, t.NumberOfSamples(), t.NumberOfChunks(), seconds(t.Duration(), t.TimeScale()),
			t.TimeScale(), t.TotalSampleSize(), t.AvgBitrate(), t.MaxBitrate())
		if n := t.NumberOfEdits(); n > 0 {
			fmt.Fprintf(w, ", %d edits", n)
		}
		if name := t.Name(); name != "" {
			fmt.Fprintf(w, ", %q", name)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func extract(w io.Writer, t *mp4.Track) (total int64, err error) {
	buf := make([]byte, 0, t.MaxSampleSize())
	for id := uint32(1); id <= t.NumberOfSamples(); id++ {
		s, err := t.ReadSample(id, buf)
		if err != nil {
			return total, err
		}
		n, err := w.Write(s.Data)
		total += int64(n)
		if err != nil {
			return total, errors.Wrap(err, "write output")
		}
	}
	return total, nil
}

// remux copies the tracks of src into dst sample by sample, keeping edits and names.
func remux(dst, src *mp4.File) error {
	if err := dst.SetTimeScale(src.TimeScale()); err != nil {
		return err
	}
	for _, from := range src.Tracks() {
		to, err := dst.AddTrackLike(from)
		if err != nil {
			return err
		}
		if name := from.Name(); name != "" {
			if err = to.SetName(name); err != nil {
				return err
			}
		}
		buf := make([]byte, 0, from.MaxSampleSize())
		for id := uint32(1); id <= from.NumberOfSamples(); id++ {
			s, err := from.ReadSample(id, buf)
			if err != nil {
				return err
			}
			if s.HasDependencyFlags {
				err = to.WriteSampleDependency(s.Data, s.Duration, s.RenderingOffset, s.IsSync, s.DependencyFlags)
			} else {
				err = to.WriteSample(s.Data, s.Duration, s.RenderingOffset, s.IsSync)
			}
			if err != nil {
				return err
			}
		}
		for id := uint32(1); id <= from.NumberOfEdits(); id++ {
			if err = copyEdit(to, from, id); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyEdit(to, from *mp4.Track, id uint32) error {
	start, err := from.EditMediaStart(id)
	if err != nil {
		return err
	}
	d, err := from.EditDuration(id)
	if err != nil {
		return err
	}
	dwell, err := from.EditDwell(id)
	if err != nil {
		return err
	}
	if _, err = to.AddEdit(0); err != nil {
		return err
	}
	if err = to.SetEditMediaStart(id, start); err != nil {
		return err
	}
	if err = to.SetEditDuration(id, d); err != nil {
		return err
	}
	return to.SetEditDwell(id, dwell)
}
