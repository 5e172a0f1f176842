// Package mergemetrics exports merge engine statistics as VictoriaMetrics counters and gauges.
package mergemetrics

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
	"github.com/garethgeorge/kmerge/internal/merge"
)

var (
	emitted      = metrics.NewCounter("kmerge_items_emitted_total")
	pulls        = metrics.NewCounter("kmerge_source_pulls_total")
	frontierLen  = metrics.NewGauge("kmerge_frontier_len", nil)
	frontierMax  = metrics.NewGauge("kmerge_frontier_max_len", nil)
	activeSrcs   = metrics.NewGauge("kmerge_active_sources", nil)
	mergesDone   = metrics.NewCounter(`kmerge_merges_total{state="done"}`)
	mergesFailed = metrics.NewCounter(`kmerge_merges_total{state="failed"}`)
)

// Observer returns an engine observer feeding the package metrics. Engine stats are cumulative,
// so each observer must be installed on a single engine.
func Observer() func(merge.Stats) {
	var last merge.Stats
	finished := false
	return func(s merge.Stats) {
		emitted.Add(int(s.Emitted - last.Emitted))
		pulls.Add(int(s.Pulls - last.Pulls))
		frontierLen.Set(float64(s.FrontierLen))
		activeSrcs.Set(float64(s.ActiveSources))
		if float64(s.MaxFrontierLen) > frontierMax.Get() {
			frontierMax.Set(float64(s.MaxFrontierLen))
		}
		if !finished {
			switch s.State {
			case merge.StateDone:
				mergesDone.Inc()
				finished = true
			case merge.StateFailed:
				mergesFailed.Inc()
				finished = true
			}
		}
		last = s
	}
}

// Chain calls every observer in order.
func Chain(observers ...func(merge.Stats)) func(merge.Stats) {
	return func(s merge.Stats) {
		for _, o := range observers {
			o(s)
		}
	}
}

// WritePrometheus writes every registered metric in Prometheus text format.
func WritePrometheus(w io.Writer) error {
	cw := &countingWriter{w: w}
	metrics.WritePrometheus(cw, false)
	if cw.err != nil {
		return fmt.Errorf("write metrics: %w", cw.err)
	}
	return nil
}

type countingWriter struct {
	w   io.Writer
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.err = err
	return n, err
}
