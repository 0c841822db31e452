package logger

import (
	"time"
)

// PassTracker reports progress of a matching pass over a record collection.
// Used by the auto-match pass, which can be slow on large statements.
type PassTracker struct {
	logger      Logger
	operation   string
	total       int
	current     int
	startTime   time.Time
	lastLogTime time.Time
	logInterval time.Duration
}

// NewPassTracker creates a tracker for an operation over total records.
func NewPassTracker(log Logger, operation string, total int) *PassTracker {
	if log == nil {
		log = GetGlobalLogger()
	}

	tracker := &PassTracker{
		logger:      log.WithComponent("progress"),
		operation:   operation,
		total:       total,
		startTime:   time.Now(),
		lastLogTime: time.Now(),
		logInterval: 5 * time.Second,
	}

	tracker.logger.WithFields(Fields{
		"operation": operation,
		"total":     total,
	}).Info("Starting pass")

	return tracker
}

// Update advances the counter and logs at most once per interval.
func (p *PassTracker) Update(current int) {
	p.current = current

	if time.Since(p.lastLogTime) < p.logInterval {
		return
	}
	p.lastLogTime = time.Now()

	percent := 0.0
	if p.total > 0 {
		percent = float64(p.current) / float64(p.total) * 100.0
	}

	p.logger.WithFields(Fields{
		"operation": p.operation,
		"current":   p.current,
		"total":     p.total,
		"percent":   percent,
	}).Info("Pass progress")
}

// Complete logs the final counts and elapsed time for the pass.
func (p *PassTracker) Complete(committed int) {
	p.logger.WithFields(Fields{
		"operation": p.operation,
		"processed": p.total,
		"committed": committed,
		"elapsed":   time.Since(p.startTime).String(),
	}).Info("Pass complete")
}
