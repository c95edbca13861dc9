// Package monitoring collects per-run statistics from the target iterator
// and reports them at the end of a run.
package monitoring

import (
	"time"

	"go.uber.org/zap"
)

// RunStats holds a point-in-time view of one run.
type RunStats struct {
	RunID            string    `json:"run_id"`
	TargetsProcessed int       `json:"targets_processed"`
	Timeouts         int       `json:"timeouts"`
	NoResults        int       `json:"no_results"`
	DetailsSkipped   int       `json:"details_skipped"`
	RawRecords       int       `json:"raw_records"`
	KeptRecords      int       `json:"kept_records"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}

// Collector accumulates run statistics. It is owned by the single processing
// flow and is not safe for concurrent use; the pipeline is strictly
// sequential by design.
type Collector struct {
	stats RunStats
}

// NewCollector starts collecting for a run.
func NewCollector(runID string) *Collector {
	return &Collector{stats: RunStats{RunID: runID, StartedAt: time.Now().UTC()}}
}

// TargetProcessed records a completed target with its raw and kept counts.
func (c *Collector) TargetProcessed(raw, kept int) {
	c.stats.TargetsProcessed++
	c.stats.RawRecords += raw
	c.stats.KeptRecords += kept
}

// TargetTimeout records a target cut short by the watchdog.
func (c *Collector) TargetTimeout() {
	c.stats.TargetsProcessed++
	c.stats.Timeouts++
}

// TargetNoResults records a target whose queries found nothing.
func (c *Collector) TargetNoResults() {
	c.stats.TargetsProcessed++
	c.stats.NoResults++
}

// DetailSkipped records one dropped detail locator.
func (c *Collector) DetailSkipped() {
	c.stats.DetailsSkipped++
}

// Snapshot finalizes and returns the accumulated stats.
func (c *Collector) Snapshot() RunStats {
	s := c.stats
	s.FinishedAt = time.Now().UTC()
	return s
}

// LogSummary emits the run summary through the global logger.
func (c *Collector) LogSummary() {
	s := c.Snapshot()
	zap.L().Info("run summary",
		zap.String("run_id", s.RunID),
		zap.Int("targets", s.TargetsProcessed),
		zap.Int("timeouts", s.Timeouts),
		zap.Int("no_results", s.NoResults),
		zap.Int("details_skipped", s.DetailsSkipped),
		zap.Int("raw_records", s.RawRecords),
		zap.Int("kept_records", s.KeptRecords),
		zap.Duration("elapsed", s.FinishedAt.Sub(s.StartedAt)),
	)
}
