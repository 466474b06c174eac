package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"widgetd/internal/providers"
	"widgetd/internal/storage"
	"widgetd/internal/structures"
	"widgetd/internal/widget"
	"widgetd/internal/widget/bbs"
	"widgetd/internal/widget/counter"
	"widgetd/internal/widget/identity"
	"widgetd/internal/widget/like"
	"widgetd/internal/widget/ranking"
	"widgetd/internal/widget/visitor"
)

// maxPutAttempts bounds the optimistic-concurrency retry loop. Every
// mutation re-reads the state on conflict; exhausting the attempts
// surfaces widget.ErrConflict to the caller.
const maxPutAttempts = 8

type WidgetServiceInterface interface {
	CreateWidget(ctx context.Context, widgetType, target, ownerToken string) error

	RecordVisit(ctx context.Context, target, origin, clientSignature string) (counter.Counts, error)
	ReadCounts(ctx context.Context, target string) (counter.Counts, error)
	ResetCounter(ctx context.Context, target, ownerToken string) error

	ToggleLike(ctx context.Context, target, origin, clientSignature string) (like.Summary, error)
	ReadLikeState(ctx context.Context, target, origin, clientSignature string) (like.Summary, error)

	SubmitScore(ctx context.Context, target, name string, score float64, bestPerName bool) ([]ranking.Entry, error)
	ReadTop(ctx context.Context, target string, limit int) ([]ranking.Entry, error)
	SetRankingLimit(ctx context.Context, target, ownerToken string, maxEntries int) error

	PostMessage(ctx context.Context, target, author, body, icon, posterToken string) (bbs.Message, error)
	EditMessage(ctx context.Context, target, messageID, newBody, providedToken string) error
	DeleteMessage(ctx context.Context, target, messageID, providedToken string) error
	ListPage(ctx context.Context, target string, pageNumber int) (bbs.PageResult, error)

	SweepExpired(ctx context.Context) error
	TargetCounts() map[string]int
}

// widgetRecord is the stored envelope for one (type, target) pair:
// ownership metadata plus exactly one engine state.
type widgetRecord struct {
	Type        string         `json:"type"`
	OwnerDigest string         `json:"ownerDigest"`
	Created     time.Time      `json:"created"`
	Counter     *counter.State `json:"counter,omitempty"`
	Like        *like.State    `json:"like,omitempty"`
	Ranking     *ranking.State `json:"ranking,omitempty"`
	BBS         *bbs.State     `json:"bbs,omitempty"`
}

type WidgetService struct {
	conf    *structures.Config
	store   storage.Store
	logger  providers.Logger
	metrics providers.MetricsProviderInterface
	now     func() time.Time
}

func NewWidgetService(conf *structures.Config, store storage.Store, logger providers.Logger, metrics providers.MetricsProviderInterface) WidgetServiceInterface {
	return &WidgetService{
		conf:    conf,
		store:   store,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

func stateKey(widgetType, target string) string {
	return widgetType + ":" + target
}

// errUnchanged signals from a mutation closure that the state does not
// need to be written back (a no-op acceptance, e.g. a deduped visit).
var errUnchanged = errors.New("state unchanged")

func (ws *WidgetService) CreateWidget(ctx context.Context, widgetType, target, ownerToken string) error {
	if !widget.ValidType(widgetType) {
		return fmt.Errorf("widget type %q: %w", widgetType, widget.ErrNotFound)
	}
	if err := identity.ValidateTokenShape(ownerToken); err != nil {
		return err
	}

	rec := widgetRecord{
		Type:        widgetType,
		OwnerDigest: identity.Hash(ownerToken),
		Created:     ws.now().UTC(),
	}
	switch widgetType {
	case widget.TypeCounter:
		rec.Counter = &counter.State{}
	case widget.TypeLike:
		rec.Like = &like.State{}
	case widget.TypeRanking:
		rec.Ranking = &ranking.State{MaxEntries: ws.conf.Widgets.Ranking.DefaultMaxEntries}
	case widget.TypeBBS:
		rec.BBS = &bbs.State{}
	}

	raw, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("marshal widget record: %w", err)
	}
	return ws.store.Put(ctx, stateKey(widgetType, target), raw, 0)
}

func (ws *WidgetService) RecordVisit(ctx context.Context, target, origin, clientSignature string) (counter.Counts, error) {
	fp := visitor.Fingerprint(origin, clientSignature)
	rec, err := ws.update(ctx, widget.TypeCounter, target, func(rec *widgetRecord) error {
		if rec.Counter == nil {
			return widget.ErrNotFound
		}
		next, accepted := counter.RecordVisit(*rec.Counter, fp, ws.now(), ws.conf.Widgets.DedupWindow)
		if !accepted {
			return errUnchanged
		}
		rec.Counter = &next
		return nil
	})
	if err != nil {
		return counter.Counts{}, err
	}
	return counter.Read(*rec.Counter), nil
}

func (ws *WidgetService) ReadCounts(ctx context.Context, target string) (counter.Counts, error) {
	rec, _, err := ws.load(ctx, stateKey(widget.TypeCounter, target))
	if err != nil {
		return counter.Counts{}, err
	}
	if rec.Counter == nil {
		return counter.Counts{}, widget.ErrNotFound
	}
	return counter.Read(*rec.Counter), nil
}

func (ws *WidgetService) ResetCounter(ctx context.Context, target, ownerToken string) error {
	_, err := ws.update(ctx, widget.TypeCounter, target, func(rec *widgetRecord) error {
		if rec.Counter == nil {
			return widget.ErrNotFound
		}
		if !identity.Authorize(ownerToken, rec.OwnerDigest) {
			return widget.ErrUnauthorized
		}
		next := counter.Reset(*rec.Counter)
		rec.Counter = &next
		return nil
	})
	return err
}

func (ws *WidgetService) ToggleLike(ctx context.Context, target, origin, clientSignature string) (like.Summary, error) {
	fp := visitor.Fingerprint(origin, clientSignature)
	rec, err := ws.update(ctx, widget.TypeLike, target, func(rec *widgetRecord) error {
		if rec.Like == nil {
			return widget.ErrNotFound
		}
		next, _ := like.Toggle(*rec.Like, fp, ws.now())
		rec.Like = &next
		return nil
	})
	if err != nil {
		return like.Summary{}, err
	}
	return like.Read(*rec.Like, fp), nil
}

func (ws *WidgetService) ReadLikeState(ctx context.Context, target, origin, clientSignature string) (like.Summary, error) {
	rec, _, err := ws.load(ctx, stateKey(widget.TypeLike, target))
	if err != nil {
		return like.Summary{}, err
	}
	if rec.Like == nil {
		return like.Summary{}, widget.ErrNotFound
	}
	return like.Read(*rec.Like, visitor.Fingerprint(origin, clientSignature)), nil
}

func (ws *WidgetService) SubmitScore(ctx context.Context, target, name string, score float64, bestPerName bool) ([]ranking.Entry, error) {
	rec, err := ws.update(ctx, widget.TypeRanking, target, func(rec *widgetRecord) error {
		if rec.Ranking == nil {
			return widget.ErrNotFound
		}
		next := ranking.Submit(*rec.Ranking, name, score, ws.now(), ranking.SubmitOptions{BestPerName: bestPerName})
		rec.Ranking = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ranking.Top(*rec.Ranking, -1), nil
}

func (ws *WidgetService) ReadTop(ctx context.Context, target string, limit int) ([]ranking.Entry, error) {
	rec, _, err := ws.load(ctx, stateKey(widget.TypeRanking, target))
	if err != nil {
		return nil, err
	}
	if rec.Ranking == nil {
		return nil, widget.ErrNotFound
	}
	return ranking.Top(*rec.Ranking, limit), nil
}

func (ws *WidgetService) SetRankingLimit(ctx context.Context, target, ownerToken string, maxEntries int) error {
	if ceiling := ws.conf.Widgets.Ranking.MaxEntriesCeiling; ceiling > 0 && maxEntries > ceiling {
		return fmt.Errorf("maxEntries %d over ceiling %d: %w", maxEntries, ceiling, widget.ErrCapacityExceeded)
	}
	_, err := ws.update(ctx, widget.TypeRanking, target, func(rec *widgetRecord) error {
		if rec.Ranking == nil {
			return widget.ErrNotFound
		}
		if !identity.Authorize(ownerToken, rec.OwnerDigest) {
			return widget.ErrUnauthorized
		}
		next := ranking.WithMaxEntries(*rec.Ranking, maxEntries)
		rec.Ranking = &next
		return nil
	})
	return err
}

func (ws *WidgetService) checkBodyLen(body string) error {
	if maxLen := ws.conf.Widgets.BBS.MaxBodyLen; maxLen > 0 && len(body) > maxLen {
		return fmt.Errorf("body length %d over limit %d: %w", len(body), maxLen, widget.ErrCapacityExceeded)
	}
	return nil
}

func (ws *WidgetService) PostMessage(ctx context.Context, target, author, body, icon, posterToken string) (bbs.Message, error) {
	if err := ws.checkBodyLen(body); err != nil {
		return bbs.Message{}, err
	}
	var posterDigest string
	if posterToken != "" {
		if err := identity.ValidateTokenShape(posterToken); err != nil {
			return bbs.Message{}, err
		}
		posterDigest = identity.Hash(posterToken)
	}

	msg := bbs.Message{
		ID:          uuid.NewString(),
		Author:      author,
		Body:        body,
		Icon:        icon,
		Created:     ws.now().UTC(),
		TokenDigest: posterDigest,
	}

	_, err := ws.update(ctx, widget.TypeBBS, target, func(rec *widgetRecord) error {
		if rec.BBS == nil {
			return widget.ErrNotFound
		}
		if maxMsgs := ws.conf.Widgets.BBS.MaxMessages; maxMsgs > 0 && len(rec.BBS.Messages) >= maxMsgs {
			return fmt.Errorf("board full at %d messages: %w", maxMsgs, widget.ErrCapacityExceeded)
		}
		next := bbs.Post(*rec.BBS, msg)
		rec.BBS = &next
		return nil
	})
	if err != nil {
		return bbs.Message{}, err
	}
	msg.TokenDigest = ""
	return msg, nil
}

func (ws *WidgetService) EditMessage(ctx context.Context, target, messageID, newBody, providedToken string) error {
	if err := ws.checkBodyLen(newBody); err != nil {
		return err
	}
	digest := identity.Hash(providedToken)
	_, err := ws.update(ctx, widget.TypeBBS, target, func(rec *widgetRecord) error {
		if rec.BBS == nil {
			return widget.ErrNotFound
		}
		next, err := bbs.Edit(*rec.BBS, messageID, newBody, digest, rec.OwnerDigest, ws.now())
		if err != nil {
			return err
		}
		rec.BBS = &next
		return nil
	})
	return err
}

func (ws *WidgetService) DeleteMessage(ctx context.Context, target, messageID, providedToken string) error {
	digest := identity.Hash(providedToken)
	_, err := ws.update(ctx, widget.TypeBBS, target, func(rec *widgetRecord) error {
		if rec.BBS == nil {
			return widget.ErrNotFound
		}
		next, err := bbs.Delete(*rec.BBS, messageID, digest, rec.OwnerDigest)
		if err != nil {
			return err
		}
		rec.BBS = &next
		return nil
	})
	return err
}

func (ws *WidgetService) ListPage(ctx context.Context, target string, pageNumber int) (bbs.PageResult, error) {
	rec, _, err := ws.load(ctx, stateKey(widget.TypeBBS, target))
	if err != nil {
		return bbs.PageResult{}, err
	}
	if rec.BBS == nil {
		return bbs.PageResult{}, widget.ErrNotFound
	}
	return bbs.Page(*rec.BBS, pageNumber, ws.conf.Widgets.BBS.PageSize, ws.conf.Widgets.BBS.NewestFirst), nil
}

// SweepExpired prunes expired dedup records and out-of-retention buckets
// on every counter target, and refreshes the per-type target gauges.
func (ws *WidgetService) SweepExpired(ctx context.Context) error {
	keys, err := ws.store.Keys(ctx, widget.TypeCounter+":")
	if err != nil {
		return err
	}

	retention := counter.Retention{
		DailyDays:     ws.conf.Widgets.Counter.DailyRetentionDays,
		WeeklyWeeks:   ws.conf.Widgets.Counter.WeeklyRetentionWeeks,
		MonthlyMonths: ws.conf.Widgets.Counter.MonthlyRetentionMonths,
	}

	for _, key := range keys {
		_, err := ws.updateKey(ctx, widget.TypeCounter, key, func(rec *widgetRecord) error {
			if rec.Counter == nil {
				return errUnchanged
			}
			next := counter.Prune(*rec.Counter, ws.now(), ws.conf.Widgets.DedupWindow, retention)
			rec.Counter = &next
			return nil
		})
		if err != nil && !errors.Is(err, widget.ErrNotFound) {
			ws.logger.Warnf(providers.TypeApp, "Sweep of %s failed: %s", key, err)
		}
	}

	for widgetType, count := range ws.TargetCounts() {
		ws.metrics.SetTargetsTotal(widgetType, count)
	}
	return nil
}

// TargetCounts returns the number of targets per widget type.
func (ws *WidgetService) TargetCounts() map[string]int {
	counts := make(map[string]int, len(widget.Types))
	for _, widgetType := range widget.Types {
		keys, err := ws.store.Keys(context.Background(), widgetType+":")
		if err != nil {
			continue
		}
		counts[widgetType] = len(keys)
	}
	return counts
}

func (ws *WidgetService) load(ctx context.Context, key string) (widgetRecord, uint64, error) {
	raw, revision, err := ws.store.Get(ctx, key)
	if err != nil {
		return widgetRecord{}, 0, err
	}
	var rec widgetRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return widgetRecord{}, 0, fmt.Errorf("unmarshal %q: %w", key, err)
	}
	return rec, revision, nil
}

// update runs one optimistic read-modify-write cycle for the target,
// retrying on revision conflicts. fn mutates the record in place; it may
// return errUnchanged to skip the write.
func (ws *WidgetService) update(ctx context.Context, widgetType, target string, fn func(*widgetRecord) error) (widgetRecord, error) {
	return ws.updateKey(ctx, widgetType, stateKey(widgetType, target), fn)
}

func (ws *WidgetService) updateKey(ctx context.Context, widgetType, key string, fn func(*widgetRecord) error) (widgetRecord, error) {
	var lastErr error
	for attempt := 0; attempt < maxPutAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return widgetRecord{}, err
		}

		rec, revision, err := ws.load(ctx, key)
		if err != nil {
			return widgetRecord{}, err
		}

		err = fn(&rec)
		if errors.Is(err, errUnchanged) {
			return rec, nil
		}
		if err != nil {
			return widgetRecord{}, err
		}

		raw, err := json.Marshal(&rec)
		if err != nil {
			return widgetRecord{}, fmt.Errorf("marshal %q: %w", key, err)
		}

		err = ws.store.Put(ctx, key, raw, revision)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, widget.ErrConflict) {
			return widgetRecord{}, err
		}

		lastErr = err
		ws.metrics.IncConflictRetries(widgetType)
		ws.logger.Debugf(providers.TypeApp, "Revision conflict on %s, retrying (%d)", key, attempt+1)
	}
	return widgetRecord{}, fmt.Errorf("gave up after %d attempts: %w", maxPutAttempts, lastErr)
}
