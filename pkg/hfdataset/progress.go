package hfdataset

import (
	"fmt"

	fortiopb "fortio.org/progressbar"
	schollzpb "github.com/schollz/progressbar/v3"

	"github.com/sgl-project/hfdatasets/pkg/logging"
)

// progressReporter surfaces fetch/decode progress for a Load call: "N of
// total files done," per worker. Bars mode with a single worker drives a
// schollz/progressbar/v3 bar; bars mode with more than one concurrent worker
// drives a fortio.org/progressbar MultiBar with one row per worker plus an
// overall row. Log mode logs through cfg.Logger at milestones instead of
// drawing anything.
type progressReporter struct {
	mode    ProgressDisplayMode
	logger  logging.Interface
	label   string
	total   int
	done    int
	bar     *schollzpb.ProgressBar
	multi   *fortiopb.MultiBar
	workers []*fortiopb.Bar
}

// newProgressReporter builds a reporter for a Load call fetching/decoding
// total files across workers concurrent goroutines, honoring cfg's resolved
// display mode.
func newProgressReporter(cfg *Config, label string, total, workers int) *progressReporter {
	mode := cfg.effectiveProgressMode()
	r := &progressReporter{mode: mode, logger: cfg.Logger, label: label, total: total}
	if mode != ProgressModeBars || total == 0 {
		return r
	}
	if workers <= 1 {
		r.bar = schollzpb.NewOptions(total,
			schollzpb.OptionSetDescription(label),
			schollzpb.OptionSetWidth(30),
			schollzpb.OptionShowCount(),
			schollzpb.OptionEnableColorCodes(true),
		)
		return r
	}

	fortioCfg := fortiopb.DefaultConfig()
	prefixes := make([]string, workers+1)
	prefixes[0] = "overall"
	for i := 1; i <= workers; i++ {
		prefixes[i] = fmt.Sprintf("worker %d", i-1)
	}
	r.multi = fortioCfg.NewMultiBarPrefixes(prefixes...)
	if len(r.multi.Bars) == workers+1 {
		r.workers = r.multi.Bars[1:]
	}
	return r
}

// advance records one more file completed by workerID, updating that
// worker's bar and the overall bar, or logging a milestone every 10% of
// progress in log mode.
func (r *progressReporter) advance(workerID int, filename string, err error) {
	r.done++
	switch {
	case r.bar != nil:
		_ = r.bar.Add(1)
	case r.multi != nil:
		pct := float64(r.done) / float64(r.total) * 100
		r.multi.Bars[0].Progress(pct)
		if workerID >= 0 && workerID < len(r.workers) {
			r.workers[workerID].Progress(100)
		}
	}
	if r.mode != ProgressModeLog || r.logger == nil || r.total == 0 {
		return
	}
	if err != nil {
		r.logger.WithField("filename", filename).WithError(err).Warn(r.label + " failed")
		return
	}
	if r.done == r.total || r.done%maxInt(1, r.total/10) == 0 {
		r.logger.WithField("progress", fmt.Sprintf("%d/%d", r.done, r.total)).Info(r.label)
	}
}

func (r *progressReporter) finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
	if r.multi != nil {
		r.multi.End()
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
