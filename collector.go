package mp4

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports the per-track statistics of a File as prometheus metrics.
type Collector struct {
	file *File
	desc struct {
		Samples, Chunks, Bytes, Duration, AvgBitrate, MaxBitrate *prometheus.Desc
	}
}

func NewCollector(f *File) *Collector {
	c := &Collector{file: f}
	labels := []string{"track", "type", "codec"}
	c.desc.Samples = prometheus.NewDesc("mp4_track_samples", "Number of samples", labels, nil)
	c.desc.Chunks = prometheus.NewDesc("mp4_track_chunks", "Number of chunks", labels, nil)
	c.desc.Bytes = prometheus.NewDesc("mp4_track_bytes", "Total sample bytes", labels, nil)
	c.desc.Duration = prometheus.NewDesc("mp4_track_duration_seconds", "Media duration", labels, nil)
	c.desc.AvgBitrate = prometheus.NewDesc("mp4_track_avg_bitrate", "Average bits per second", labels, nil)
	c.desc.MaxBitrate = prometheus.NewDesc("mp4_track_max_bitrate", "Peak bits per second over one second", labels, nil)
	return c
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc.Samples
	ch <- c.desc.Chunks
	ch <- c.desc.Bytes
	ch <- c.desc.Duration
	ch <- c.desc.AvgBitrate
	ch <- c.desc.MaxBitrate
}

// Collect reads the snapshot kept by File.Stats, so scrapes may run while tracks are written.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.file.Stats() {
		labels := []string{strconv.FormatUint(uint64(s.ID), 10), s.Type, s.Codec}
		ch <- prometheus.MustNewConstMetric(c.desc.Samples, prometheus.GaugeValue, float64(s.Samples), labels...)
		ch <- prometheus.MustNewConstMetric(c.desc.Chunks, prometheus.GaugeValue, float64(s.Chunks), labels...)
		ch <- prometheus.MustNewConstMetric(c.desc.Bytes, prometheus.GaugeValue, float64(s.Bytes), labels...)
		ch <- prometheus.MustNewConstMetric(c.desc.Duration, prometheus.GaugeValue, s.Seconds(), labels...)
		ch <- prometheus.MustNewConstMetric(c.desc.AvgBitrate, prometheus.GaugeValue, float64(s.AvgBitrate), labels...)
		ch <- prometheus.MustNewConstMetric(c.desc.MaxBitrate, prometheus.GaugeValue, float64(s.MaxBitrate), labels...)
	}
}
