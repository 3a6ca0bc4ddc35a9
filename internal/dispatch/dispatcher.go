package dispatch

import (
	"context"
	"log"
	"time"

	"signal-systemv1/internal/model"
	"signal-systemv1/internal/notification"
)

const (
	notifyTimeout   = 10 * time.Second
	signalCacheTTL  = 15 * time.Minute
	deliveryTimeout = 5 * time.Second
)

// Board receives every evaluated signal, HOLD placeholders included.
type Board interface {
	Publish(sig model.Signal)
}

// SignalCache stores the latest signal per key.
type SignalCache interface {
	CacheSignal(ctx context.Context, sig model.Signal, ttl time.Duration) error
}

// SignalArchive persists actionable signals.
type SignalArchive interface {
	SaveSignal(sig model.Signal) error
}

// FeedProducer forwards actionable signals to an external feed.
type FeedProducer interface {
	Publish(ctx context.Context, sig model.Signal) error
}

// Dispatcher fans evaluated signals out to the dashboard and, for
// actionable ones, to notification sinks and stores. Delivery failures
// are logged and never stop the pipeline; every collaborator except
// the board is optional.
type Dispatcher struct {
	board     Board
	notifiers []notification.Notifier
	cache     SignalCache
	archive   SignalArchive
	feed      FeedProducer

	// OnNotifyError is invoked with the notifier name on each failed
	// delivery, for metrics.
	OnNotifyError func(notifier string)
}

// New creates a Dispatcher publishing to board.
func New(board Board, notifiers []notification.Notifier) *Dispatcher {
	return &Dispatcher{board: board, notifiers: notifiers}
}

// WithCache attaches a latest-signal cache.
func (d *Dispatcher) WithCache(c SignalCache) *Dispatcher {
	d.cache = c
	return d
}

// WithArchive attaches a signal archive.
func (d *Dispatcher) WithArchive(a SignalArchive) *Dispatcher {
	d.archive = a
	return d
}

// WithFeed attaches an external signal feed.
func (d *Dispatcher) WithFeed(f FeedProducer) *Dispatcher {
	d.feed = f
	return d
}

// Dispatch delivers one evaluated signal. The dashboard always gets
// it; notification sinks, the cache, the archive and the feed only see
// actionable directions.
func (d *Dispatcher) Dispatch(ctx context.Context, sig model.Signal) {
	d.board.Publish(sig)

	if !sig.Actionable() {
		return
	}

	log.Printf("[dispatch] %s", notification.FormatSignal(sig))

	for _, n := range d.notifiers {
		nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		if err := n.Send(nctx, sig); err != nil {
			log.Printf("[dispatch] notifier %s failed: %v", n.Name(), err)
			if d.OnNotifyError != nil {
				d.OnNotifyError(n.Name())
			}
		}
		cancel()
	}

	if d.cache != nil {
		cctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
		if err := d.cache.CacheSignal(cctx, sig, signalCacheTTL); err != nil {
			log.Printf("[dispatch] signal cache write failed: %v", err)
		}
		cancel()
	}

	if d.archive != nil {
		if err := d.archive.SaveSignal(sig); err != nil {
			log.Printf("[dispatch] signal archive write failed: %v", err)
		}
	}

	if d.feed != nil {
		fctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
		if err := d.feed.Publish(fctx, sig); err != nil {
			log.Printf("[dispatch] feed publish failed: %v", err)
		}
		cancel()
	}
}
