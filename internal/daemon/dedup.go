package daemon

import (
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/sigwatch/internal/domain"
)

// StatFunc returns the size and modification time of path.
type StatFunc func(path string) (domain.FileMeta, error)

// Deduplicator suppresses repeated notifications for a file whose size and
// modification time did not change. It is owned by a single goroutine.
type Deduplicator struct {
	stat   StatFunc
	last   *domain.FileMeta
	logger *zap.Logger
}

// NewDeduplicator creates a Deduplicator with no baseline.
func NewDeduplicator(stat StatFunc, logger *zap.Logger) *Deduplicator {
	return &Deduplicator{stat: stat, logger: logger}
}

// Prime records path's current metadata as the baseline so the first event
// after startup is only processed if the file changed since.
func (d *Deduplicator) Prime(path string) {
	meta, err := d.stat(path)
	if err != nil {
		d.logger.Debug("no dedup baseline", zap.String("path", path), zap.Error(err))
		return
	}
	d.last = &meta
}

// ShouldProcess stats path and reports whether it changed since the last
// observation. A failed stat is never a change.
func (d *Deduplicator) ShouldProcess(path string) bool {
	meta, err := d.stat(path)
	if err != nil {
		d.logger.Warn("failed to stat signal file", zap.String("path", path), zap.Error(err))
		return false
	}
	return d.Observe(meta)
}

// Observe compares meta to the cached value and updates the cache.
func (d *Deduplicator) Observe(meta domain.FileMeta) bool {
	if d.last != nil && d.last.Equal(meta) {
		return false
	}
	d.last = &meta
	return true
}

// Last returns the cached metadata, if any.
func (d *Deduplicator) Last() (domain.FileMeta, bool) {
	if d.last == nil {
		return domain.FileMeta{}, false
	}
	return *d.last, true
}
