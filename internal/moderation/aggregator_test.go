package moderation

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	db "github.com/trialbridge/trialbridge/internal/storage"
)

type fakeRepo struct {
	reporters map[string]int
	flagged   map[string]bool
	flagCalls int
	pending   int64
}

func (f *fakeRepo) CountDistinctReporters(_ context.Context, _, targetID string) (int, error) {
	return f.reporters[targetID], nil
}

func (f *fakeRepo) FlagContent(_ context.Context, _, targetID string) (bool, error) {
	f.flagCalls++

	if f.flagged[targetID] {
		return false, nil
	}

	if f.flagged == nil {
		f.flagged = map[string]bool{}
	}

	f.flagged[targetID] = true

	return true, nil
}

func (f *fakeRepo) ListTargetsOverThreshold(_ context.Context, threshold int) ([]db.ReportTarget, error) {
	var out []db.ReportTarget

	for id, count := range f.reporters {
		if count >= threshold {
			out = append(out, db.ReportTarget{TargetType: "post", TargetID: id})
		}
	}

	return out, nil
}

func (f *fakeRepo) CountPendingReports(_ context.Context) (int64, error) {
	return f.pending, nil
}

func (f *fakeRepo) TryAcquireAdvisoryLock(_ context.Context, _ int64) (bool, error) {
	return true, nil
}

func (f *fakeRepo) ReleaseAdvisoryLock(_ context.Context, _ int64) error {
	return nil
}

func newTestAggregator(repo *fakeRepo, threshold int) *Aggregator {
	nop := zerolog.Nop()
	return New(repo, threshold, &nop)
}

func TestEvaluateTargetBelowThreshold(t *testing.T) {
	repo := &fakeRepo{reporters: map[string]int{"p1": 2}}
	agg := newTestAggregator(repo, 3)

	flipped, err := agg.EvaluateTarget(context.Background(), "post", "p1")
	require.NoError(t, err)

	assert.False(t, flipped)
	assert.Zero(t, repo.flagCalls)
}

func TestEvaluateTargetAtThreshold(t *testing.T) {
	repo := &fakeRepo{reporters: map[string]int{"p1": 3}}
	agg := newTestAggregator(repo, 3)

	flipped, err := agg.EvaluateTarget(context.Background(), "post", "p1")
	require.NoError(t, err)

	assert.True(t, flipped)
	assert.True(t, repo.flagged["p1"])
}

func TestEvaluateTargetFlipsExactlyOnce(t *testing.T) {
	repo := &fakeRepo{reporters: map[string]int{"c1": 5}}
	agg := newTestAggregator(repo, 3)

	first, err := agg.EvaluateTarget(context.Background(), "comment", "c1")
	require.NoError(t, err)
	assert.True(t, first)

	// More reports after the flip never flip it again.
	repo.reporters["c1"] = 9

	second, err := agg.EvaluateTarget(context.Background(), "comment", "c1")
	require.NoError(t, err)
	assert.False(t, second)
}

func TestSweepIsIdempotent(t *testing.T) {
	repo := &fakeRepo{reporters: map[string]int{"p1": 4, "p2": 1}}
	agg := newTestAggregator(repo, 3)

	require.NoError(t, agg.Sweep(context.Background()))
	assert.Len(t, repo.flagged, 1)
	assert.True(t, repo.flagged["p1"])

	calls := repo.flagCalls

	require.NoError(t, agg.Sweep(context.Background()))
	assert.Len(t, repo.flagged, 1)
	assert.Equal(t, calls+1, repo.flagCalls)
}
