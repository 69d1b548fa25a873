package daemon

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/sigwatch/internal/domain"
)

// scriptedStat returns the queued results in order.
func scriptedStat(results ...domain.FileMeta) (StatFunc, *int) {
	calls := 0
	return func(string) (domain.FileMeta, error) {
		if calls >= len(results) {
			return domain.FileMeta{}, errors.New("no more stats")
		}
		r := results[calls]
		calls++
		return r, nil
	}, &calls
}

func TestDeduplicator_Sequence(t *testing.T) {
	t1 := time.Unix(1700000000, 0)
	t2 := t1.Add(time.Second)

	stat, _ := scriptedStat(
		domain.FileMeta{Size: 10, ModTime: t1},
		domain.FileMeta{Size: 10, ModTime: t1},
		domain.FileMeta{Size: 20, ModTime: t2},
	)
	d := NewDeduplicator(stat, zap.NewNop())

	var got []bool
	for i := 0; i < 3; i++ {
		got = append(got, d.ShouldProcess("db.sig"))
	}
	assert.Equal(t, []bool{true, false, true}, got)
}

func TestDeduplicator_Observe(t *testing.T) {
	t1 := time.Unix(1700000000, 0)

	tests := []struct {
		name  string
		seq   []domain.FileMeta
		wants []bool
	}{
		{
			name:  "first observation is a change",
			seq:   []domain.FileMeta{{Size: 0, ModTime: t1}},
			wants: []bool{true},
		},
		{
			name:  "size change alone",
			seq:   []domain.FileMeta{{Size: 5, ModTime: t1}, {Size: 0, ModTime: t1}},
			wants: []bool{true, true},
		},
		{
			name:  "mtime change alone",
			seq:   []domain.FileMeta{{Size: 5, ModTime: t1}, {Size: 5, ModTime: t1.Add(time.Millisecond)}},
			wants: []bool{true, true},
		},
		{
			name:  "flip back to an earlier value is a change",
			seq:   []domain.FileMeta{{Size: 5, ModTime: t1}, {Size: 0, ModTime: t1}, {Size: 5, ModTime: t1}},
			wants: []bool{true, true, true},
		},
		{
			name:  "same time in another location is equal",
			seq:   []domain.FileMeta{{Size: 1, ModTime: t1}, {Size: 1, ModTime: t1.UTC()}},
			wants: []bool{true, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDeduplicator(nil, zap.NewNop())
			for i, meta := range tt.seq {
				assert.Equal(t, tt.wants[i], d.Observe(meta), "step %d", i)
			}
		})
	}
}

func TestDeduplicator_StatFailureIsNoop(t *testing.T) {
	t1 := time.Unix(1700000000, 0)
	stat, calls := scriptedStat(domain.FileMeta{Size: 3, ModTime: t1})
	d := NewDeduplicator(stat, zap.NewNop())

	assert.True(t, d.ShouldProcess("db.sig"))
	assert.False(t, d.ShouldProcess("db.sig"))
	assert.Equal(t, 1, *calls)

	last, ok := d.Last()
	assert.True(t, ok)
	assert.Equal(t, int64(3), last.Size)
}

func TestDeduplicator_PrimeSetsBaseline(t *testing.T) {
	t1 := time.Unix(1700000000, 0)
	meta := domain.FileMeta{Size: 7, ModTime: t1}
	stat, _ := scriptedStat(meta, meta)
	d := NewDeduplicator(stat, zap.NewNop())

	d.Prime("db.sig")
	assert.False(t, d.ShouldProcess("db.sig"))
}

func TestDeduplicator_PrimeFailureLeavesNoBaseline(t *testing.T) {
	stat, _ := scriptedStat()
	d := NewDeduplicator(stat, zap.NewNop())

	d.Prime("db.sig")
	_, ok := d.Last()
	assert.False(t, ok)
}
