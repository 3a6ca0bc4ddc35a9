// Package notification delivers actionable trade signals to external
// channels (Telegram, webhooks). Delivery failures are the caller's to
// log; they never abort an evaluation cycle.
package notification

import (
	"context"
	"fmt"
	"log"

	"signal-systemv1/internal/model"
)

// Notifier is the interface for all signal delivery backends.
type Notifier interface {
	// Name identifies the backend in logs.
	Name() string

	// Send delivers one actionable signal.
	Send(ctx context.Context, sig model.Signal) error
}

// FormatSignal renders the canonical alert text, e.g.
// "EURUSD_otc 1m signal: BUY (100%)".
func FormatSignal(sig model.Signal) string {
	return fmt.Sprintf("%s %s signal: %s (%d%%)", sig.Asset, sig.TF, sig.Direction, sig.Confidence)
}

// LogNotifier writes signals to the process log (useful for
// development and as a delivery audit trail).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Send(ctx context.Context, sig model.Signal) error {
	log.Printf("[notify] %s", FormatSignal(sig))
	return nil
}
