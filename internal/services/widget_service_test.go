package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"widgetd/internal/storage"
	"widgetd/internal/structures"
	"widgetd/internal/testutil"
	"widgetd/internal/widget"
)

var base = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func testConfig() *structures.Config {
	return &structures.Config{
		Widgets: structures.WidgetsConfig{
			SweepInterval: time.Minute,
			DedupWindow:   24 * time.Hour,
			Counter: structures.CounterConfig{
				DailyRetentionDays:     90,
				WeeklyRetentionWeeks:   52,
				MonthlyRetentionMonths: 24,
			},
			Ranking: structures.RankingConfig{
				DefaultMaxEntries: 10,
				MaxEntriesCeiling: 100,
			},
			BBS: structures.BBSConfig{
				PageSize:    2,
				MaxMessages: 4,
				NewestFirst: true,
			},
		},
	}
}

func newTestService(store storage.Store) (*WidgetService, *testutil.MockMetrics) {
	metrics := testutil.NewMockMetrics()
	svc := NewWidgetService(testConfig(), store, &testutil.MockLogger{}, metrics).(*WidgetService)
	svc.now = func() time.Time { return base }
	return svc, metrics
}

func TestCreateWidgetRejectsBadType(t *testing.T) {
	svc, _ := newTestService(storage.NewMemoryStore())
	err := svc.CreateWidget(context.Background(), "gallery", "site-1", "ownertoken")
	assert.ErrorIs(t, err, widget.ErrNotFound)
}

func TestCreateWidgetRejectsBadToken(t *testing.T) {
	svc, _ := newTestService(storage.NewMemoryStore())
	assert.ErrorIs(t, svc.CreateWidget(context.Background(), widget.TypeCounter, "site-1", "short"), widget.ErrInvalidCredential)
	assert.ErrorIs(t, svc.CreateWidget(context.Background(), widget.TypeCounter, "site-1", "waytoolongtokenxx"), widget.ErrInvalidCredential)
}

func TestCreateWidgetDuplicateConflicts(t *testing.T) {
	svc, _ := newTestService(storage.NewMemoryStore())
	ctx := context.Background()

	assert.NoError(t, svc.CreateWidget(ctx, widget.TypeCounter, "site-1", "ownertoken"))
	assert.ErrorIs(t, svc.CreateWidget(ctx, widget.TypeCounter, "site-1", "ownertoken"), widget.ErrConflict)
}

func TestSameTargetDifferentTypes(t *testing.T) {
	svc, _ := newTestService(storage.NewMemoryStore())
	ctx := context.Background()

	assert.NoError(t, svc.CreateWidget(ctx, widget.TypeCounter, "site-1", "ownertoken"))
	assert.NoError(t, svc.CreateWidget(ctx, widget.TypeLike, "site-1", "ownertoken"))
}

func TestVisitFlow(t *testing.T) {
	svc, _ := newTestService(storage.NewMemoryStore())
	ctx := context.Background()
	assert.NoError(t, svc.CreateWidget(ctx, widget.TypeCounter, "site-1", "ownertoken"))

	counts, err := svc.RecordVisit(ctx, "site-1", "203.0.113.7", "Mozilla/5.0")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), counts.Total)

	// same visitor inside the dedup window is a no-op acceptance
	counts, err = svc.RecordVisit(ctx, "site-1", "203.0.113.7", "Mozilla/5.0")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), counts.Total)

	counts, err = svc.RecordVisit(ctx, "site-1", "203.0.113.8", "Mozilla/5.0")
	assert.NoError(t, err)
	assert.Equal(t, int64(2), counts.Total)

	read, err := svc.ReadCounts(ctx, "site-1")
	assert.NoError(t, err)
	assert.Equal(t, int64(2), read.Total)
	assert.Equal(t, int64(2), read.Daily["2025-06-15"])
}

func TestVisitWithoutWidget(t *testing.T) {
	svc, _ := newTestService(storage.NewMemoryStore())
	_, err := svc.RecordVisit(context.Background(), "nowhere", "203.0.113.7", "Mozilla/5.0")
	assert.ErrorIs(t, err, widget.ErrNotFound)
}

func TestResetCounterAuthorization(t *testing.T) {
	svc, _ := newTestService(storage.NewMemoryStore())
	ctx := context.Background()
	assert.NoError(t, svc.CreateWidget(ctx, widget.TypeCounter, "site-1", "ownertoken"))
	_, err := svc.RecordVisit(ctx, "site-1", "203.0.113.7", "Mozilla/5.0")
	assert.NoError(t, err)

	assert.ErrorIs(t, svc.ResetCounter(ctx, "site-1", "wrongtoken"), widget.ErrUnauthorized)

	counts, err := svc.ReadCounts(ctx, "site-1")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), counts.Total)

	assert.NoError(t, svc.ResetCounter(ctx, "site-1", "ownertoken"))
	counts, err = svc.ReadCounts(ctx, "site-1")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), counts.Total)
}

func TestToggleLikeFlow(t *testing.T) {
	svc, _ := newTestService(storage.NewMemoryStore())
	ctx := context.Background()
	assert.NoError(t, svc.CreateWidget(ctx, widget.TypeLike, "site-1", "ownertoken"))

	sum, err := svc.ToggleLike(ctx, "site-1", "203.0.113.7", "Mozilla/5.0")
	assert.NoError(t, err)
	assert.True(t, sum.UserLiked)
	assert.Equal(t, int64(1), sum.Total)

	sum, err = svc.ToggleLike(ctx, "site-1", "203.0.113.7", "Mozilla/5.0")
	assert.NoError(t, err)
	assert.False(t, sum.UserLiked)
	assert.Equal(t, int64(0), sum.Total)

	read, err := svc.ReadLikeState(ctx, "site-1", "203.0.113.7", "Mozilla/5.0")
	assert.NoError(t, err)
	assert.False(t, read.UserLiked)
}

func TestSubmitScoreFlow(t *testing.T) {
	svc, _ := newTestService(storage.NewMemoryStore())
	ctx := context.Background()
	assert.NoError(t, svc.CreateWidget(ctx, widget.TypeRanking, "game-1", "ownertoken"))

	_, err := svc.SubmitScore(ctx, "game-1", "A", 10, false)
	assert.NoError(t, err)
	entries, err := svc.SubmitScore(ctx, "game-1", "B", 20, false)
	assert.NoError(t, err)
	assert.Equal(t, "B", entries[0].Name)
	assert.Equal(t, 1, entries[0].Rank)

	top, err := svc.ReadTop(ctx, "game-1", 1)
	assert.NoError(t, err)
	assert.Len(t, top, 1)
	assert.Equal(t, "B", top[0].Name)
}

func TestSetRankingLimit(t *testing.T) {
	svc, _ := newTestService(storage.NewMemoryStore())
	ctx := context.Background()
	assert.NoError(t, svc.CreateWidget(ctx, widget.TypeRanking, "game-1", "ownertoken"))
	for i, n := range []string{"A", "B", "C"} {
		_, err := svc.SubmitScore(ctx, "game-1", n, float64(10*(i+1)), false)
		assert.NoError(t, err)
	}

	assert.ErrorIs(t, svc.SetRankingLimit(ctx, "game-1", "ownertoken", 1000), widget.ErrCapacityExceeded)
	assert.ErrorIs(t, svc.SetRankingLimit(ctx, "game-1", "wrongtoken", 2), widget.ErrUnauthorized)

	assert.NoError(t, svc.SetRankingLimit(ctx, "game-1", "ownertoken", 2))
	top, err := svc.ReadTop(ctx, "game-1", -1)
	assert.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestBBSFlow(t *testing.T) {
	svc, _ := newTestService(storage.NewMemoryStore())
	ctx := context.Background()
	assert.NoError(t, svc.CreateWidget(ctx, widget.TypeBBS, "board-1", "ownertoken"))

	msg, err := svc.PostMessage(ctx, "board-1", "alice", "hello", "cat", "postertok")
	assert.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Empty(t, msg.TokenDigest)

	assert.NoError(t, svc.EditMessage(ctx, "board-1", msg.ID, "hi there", "postertok"))
	assert.ErrorIs(t, svc.EditMessage(ctx, "board-1", msg.ID, "nope", "wrongtoken"), widget.ErrUnauthorized)

	// owner token moderates any message
	assert.NoError(t, svc.EditMessage(ctx, "board-1", msg.ID, "moderated", "ownertoken"))

	page, err := svc.ListPage(ctx, "board-1", 1)
	assert.NoError(t, err)
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, "moderated", page.Messages[0].Body)

	assert.NoError(t, svc.DeleteMessage(ctx, "board-1", msg.ID, "postertok"))
	assert.ErrorIs(t, svc.DeleteMessage(ctx, "board-1", msg.ID, "postertok"), widget.ErrNotFound)
}

func TestPostMessageBoardFull(t *testing.T) {
	svc, _ := newTestService(storage.NewMemoryStore())
	ctx := context.Background()
	assert.NoError(t, svc.CreateWidget(ctx, widget.TypeBBS, "board-1", "ownertoken"))

	for i := 0; i < 4; i++ {
		_, err := svc.PostMessage(ctx, "board-1", "anon", "msg", "", "")
		assert.NoError(t, err)
	}
	_, err := svc.PostMessage(ctx, "board-1", "anon", "one too many", "", "")
	assert.ErrorIs(t, err, widget.ErrCapacityExceeded)
}

func TestMessageBodyLengthLimit(t *testing.T) {
	svc, _ := newTestService(storage.NewMemoryStore())
	svc.conf.Widgets.BBS.MaxBodyLen = 10
	ctx := context.Background()
	assert.NoError(t, svc.CreateWidget(ctx, widget.TypeBBS, "board-1", "ownertoken"))

	_, err := svc.PostMessage(ctx, "board-1", "anon", "this body is far too long", "", "")
	assert.ErrorIs(t, err, widget.ErrCapacityExceeded)

	msg, err := svc.PostMessage(ctx, "board-1", "anon", "short", "", "")
	assert.NoError(t, err)

	assert.ErrorIs(t, svc.EditMessage(ctx, "board-1", msg.ID, "this body is far too long", "ownertoken"), widget.ErrCapacityExceeded)
}

func TestPostMessageBadPosterToken(t *testing.T) {
	svc, _ := newTestService(storage.NewMemoryStore())
	ctx := context.Background()
	assert.NoError(t, svc.CreateWidget(ctx, widget.TypeBBS, "board-1", "ownertoken"))

	_, err := svc.PostMessage(ctx, "board-1", "anon", "msg", "", "tiny")
	assert.ErrorIs(t, err, widget.ErrInvalidCredential)
}

func TestListPagePaginates(t *testing.T) {
	svc, _ := newTestService(storage.NewMemoryStore())
	ctx := context.Background()
	assert.NoError(t, svc.CreateWidget(ctx, widget.TypeBBS, "board-1", "ownertoken"))

	for _, body := range []string{"first", "second", "third"} {
		_, err := svc.PostMessage(ctx, "board-1", "anon", body, "", "")
		assert.NoError(t, err)
	}

	page, err := svc.ListPage(ctx, "board-1", 1)
	assert.NoError(t, err)
	assert.Equal(t, 2, page.PageCount)
	assert.Len(t, page.Messages, 2)
	assert.Equal(t, "third", page.Messages[0].Body)

	page, err = svc.ListPage(ctx, "board-1", 99)
	assert.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, "first", page.Messages[0].Body)
}

func TestConflictRetry(t *testing.T) {
	store := &testutil.ConflictingStore{Store: storage.NewMemoryStore()}
	svc, metrics := newTestService(store)
	ctx := context.Background()
	assert.NoError(t, svc.CreateWidget(ctx, widget.TypeCounter, "site-1", "ownertoken"))

	store.ConflictsToInject = 2
	counts, err := svc.RecordVisit(ctx, "site-1", "203.0.113.7", "Mozilla/5.0")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), counts.Total)
	assert.Equal(t, 2, metrics.ConflictRetries)
}

func TestConflictRetryExhaustion(t *testing.T) {
	store := &testutil.ConflictingStore{Store: storage.NewMemoryStore()}
	svc, _ := newTestService(store)
	ctx := context.Background()
	assert.NoError(t, svc.CreateWidget(ctx, widget.TypeCounter, "site-1", "ownertoken"))

	store.ConflictsToInject = maxPutAttempts + 1
	_, err := svc.RecordVisit(ctx, "site-1", "203.0.113.7", "Mozilla/5.0")
	assert.ErrorIs(t, err, widget.ErrConflict)
}

func TestSweepExpired(t *testing.T) {
	svc, metrics := newTestService(storage.NewMemoryStore())
	ctx := context.Background()
	assert.NoError(t, svc.CreateWidget(ctx, widget.TypeCounter, "site-1", "ownertoken"))
	assert.NoError(t, svc.CreateWidget(ctx, widget.TypeLike, "site-1", "ownertoken"))

	_, err := svc.RecordVisit(ctx, "site-1", "203.0.113.7", "Mozilla/5.0")
	assert.NoError(t, err)

	// jump past the dedup window; the sweep drops the stale record and
	// the visitor counts again
	svc.now = func() time.Time { return base.Add(25 * time.Hour) }
	assert.NoError(t, svc.SweepExpired(ctx))

	counts, err := svc.RecordVisit(ctx, "site-1", "203.0.113.7", "Mozilla/5.0")
	assert.NoError(t, err)
	assert.Equal(t, int64(2), counts.Total)

	assert.Equal(t, 1, metrics.TargetsTotals[widget.TypeCounter])
	assert.Equal(t, 1, metrics.TargetsTotals[widget.TypeLike])
}

func TestTargetCounts(t *testing.T) {
	svc, _ := newTestService(storage.NewMemoryStore())
	ctx := context.Background()
	assert.NoError(t, svc.CreateWidget(ctx, widget.TypeCounter, "site-1", "ownertoken"))
	assert.NoError(t, svc.CreateWidget(ctx, widget.TypeCounter, "site-2", "ownertoken"))
	assert.NoError(t, svc.CreateWidget(ctx, widget.TypeBBS, "board-1", "ownertoken"))

	counts := svc.TargetCounts()
	assert.Equal(t, 2, counts[widget.TypeCounter])
	assert.Equal(t, 1, counts[widget.TypeBBS])
	assert.Equal(t, 0, counts[widget.TypeLike])
}
