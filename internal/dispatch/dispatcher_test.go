package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"signal-systemv1/internal/model"
	"signal-systemv1/internal/notification"
)

type fakeBoard struct {
	published []model.Signal
}

func (b *fakeBoard) Publish(sig model.Signal) { b.published = append(b.published, sig) }

type fakeNotifier struct {
	name string
	err  error
	sent []model.Signal
}

func (n *fakeNotifier) Name() string { return n.name }

func (n *fakeNotifier) Send(_ context.Context, sig model.Signal) error {
	n.sent = append(n.sent, sig)
	return n.err
}

type fakeCache struct {
	cached []model.Signal
	ttl    time.Duration
	err    error
}

func (c *fakeCache) CacheSignal(_ context.Context, sig model.Signal, ttl time.Duration) error {
	c.cached = append(c.cached, sig)
	c.ttl = ttl
	return c.err
}

type fakeArchive struct {
	saved []model.Signal
	err   error
}

func (a *fakeArchive) SaveSignal(sig model.Signal) error {
	a.saved = append(a.saved, sig)
	return a.err
}

type fakeFeed struct {
	published []model.Signal
	err       error
}

func (f *fakeFeed) Publish(_ context.Context, sig model.Signal) error {
	f.published = append(f.published, sig)
	return f.err
}

func buySignal() model.Signal {
	return model.Signal{
		Asset:       "EURUSD_otc",
		TF:          model.TF1m,
		Direction:   model.DirectionBuy,
		Confidence:  100,
		Reason:      "test",
		GeneratedAt: time.Unix(1700000000, 0).UTC(),
	}
}

func TestDispatch_HoldGoesToBoardOnly(t *testing.T) {
	board := &fakeBoard{}
	notif := &fakeNotifier{name: "log"}
	cache := &fakeCache{}
	archive := &fakeArchive{}
	feed := &fakeFeed{}

	d := New(board, []notification.Notifier{notif}).
		WithCache(cache).WithArchive(archive).WithFeed(feed)

	hold := buySignal()
	hold.Direction = model.DirectionHold
	hold.Confidence = 0
	d.Dispatch(context.Background(), hold)

	if len(board.published) != 1 {
		t.Fatalf("board got %d signals, want 1", len(board.published))
	}
	if len(notif.sent) != 0 || len(cache.cached) != 0 || len(archive.saved) != 0 || len(feed.published) != 0 {
		t.Error("HOLD reached an actionable-only sink")
	}
}

func TestDispatch_ActionableReachesAllSinks(t *testing.T) {
	board := &fakeBoard{}
	n1 := &fakeNotifier{name: "telegram"}
	n2 := &fakeNotifier{name: "webhook"}
	cache := &fakeCache{}
	archive := &fakeArchive{}
	feed := &fakeFeed{}

	d := New(board, []notification.Notifier{n1, n2}).
		WithCache(cache).WithArchive(archive).WithFeed(feed)

	sig := buySignal()
	d.Dispatch(context.Background(), sig)

	if len(board.published) != 1 {
		t.Errorf("board got %d signals, want 1", len(board.published))
	}
	for _, n := range []*fakeNotifier{n1, n2} {
		if len(n.sent) != 1 {
			t.Errorf("notifier %s got %d signals, want 1", n.name, len(n.sent))
		}
	}
	if len(cache.cached) != 1 || cache.ttl != signalCacheTTL {
		t.Errorf("cache got %d signals with ttl %v", len(cache.cached), cache.ttl)
	}
	if len(archive.saved) != 1 {
		t.Errorf("archive got %d signals, want 1", len(archive.saved))
	}
	if len(feed.published) != 1 {
		t.Errorf("feed got %d signals, want 1", len(feed.published))
	}
}

func TestDispatch_FailuresNeverAbortDelivery(t *testing.T) {
	board := &fakeBoard{}
	bad := &fakeNotifier{name: "telegram", err: errors.New("api down")}
	good := &fakeNotifier{name: "webhook"}
	cache := &fakeCache{err: errors.New("redis down")}
	archive := &fakeArchive{err: errors.New("disk full")}
	feed := &fakeFeed{}

	var failed []string
	d := New(board, []notification.Notifier{bad, good}).
		WithCache(cache).WithArchive(archive).WithFeed(feed)
	d.OnNotifyError = func(name string) { failed = append(failed, name) }

	d.Dispatch(context.Background(), buySignal())

	if len(failed) != 1 || failed[0] != "telegram" {
		t.Errorf("OnNotifyError calls = %v, want [telegram]", failed)
	}
	if len(good.sent) != 1 {
		t.Error("later notifier skipped after an earlier failure")
	}
	if len(feed.published) != 1 {
		t.Error("feed skipped after cache and archive failures")
	}
}

func TestDispatch_OptionalSinksMayBeAbsent(t *testing.T) {
	board := &fakeBoard{}
	d := New(board, nil)

	d.Dispatch(context.Background(), buySignal())
	if len(board.published) != 1 {
		t.Fatalf("board got %d signals, want 1", len(board.published))
	}
}
