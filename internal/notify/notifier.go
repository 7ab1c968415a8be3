package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/bmorris3/transitephem/internal/catalog"
	"github.com/bmorris3/transitephem/internal/ephem"
	"github.com/bmorris3/transitephem/internal/metrics"
	"github.com/bmorris3/transitephem/internal/storage"
	"github.com/bmorris3/transitephem/internal/transform"
)

// ErrNoSender is returned by Dispatch when no delivery channel is set.
var ErrNoSender = errors.New("no sender configured")

// Store persists composed messages.
type Store interface {
	AddMessage(ctx context.Context, m *storage.Message) (bool, error)
	PendingMessages(ctx context.Context, since, until time.Time) ([]storage.Message, error)
	ExpireMessages(ctx context.Context, before time.Time) (int, error)
	MarkSent(ctx context.Context, id string) error
}

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Slot is the set of messages due in one UT minute.
type Slot struct {
	Minute   time.Time
	Messages []storage.Message
}

// Notifier plans, stores and delivers "transiting now" summaries.
type Notifier struct {
	store     Store
	sender    Sender
	lookahead time.Duration
	grace     time.Duration
	maxLen    int
	rng       *rand.Rand
	logger    *slog.Logger
}

// New creates a Notifier. sender may be nil when messages are only stored.
// A message stays deliverable until grace after its transit's egress.
func New(store Store, sender Sender, lookahead, grace time.Duration, maxLen int, rng *rand.Rand, logger *slog.Logger) *Notifier {
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	return &Notifier{
		store:     store,
		sender:    sender,
		lookahead: lookahead,
		grace:     grace,
		maxLen:    maxLen,
		rng:       rng,
		logger:    logger.With("component", "notify"),
	}
}

// Plan composes a message for every transit with mid-time in
// (now, now+lookahead), ordered by minute then body.
func (n *Notifier) Plan(records map[string]catalog.Record, now time.Time) []storage.Message {
	start := transform.JulianDate(now)
	w := ephem.Window{Start: start, End: start + n.lookahead.Hours()/24}

	names := make([]string, 0, len(records))
	for name, r := range records {
		if r.Transiting && r.Epoch != 0 && r.Period > 0 {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	var msgs []storage.Message
	for _, name := range names {
		r := records[name]
		for mid := range ephem.Epochs(ephem.Transit, r.Epoch, r.Period, w) {
			text, ok := Compose(r, n.maxLen, n.rng)
			if !ok {
				n.logger.Debug("no summary fits", "body", name, "max_length", n.maxLen)
				continue
			}
			msgs = append(msgs, storage.Message{
				Minute: transform.TimeFromJulian(mid).UTC().Truncate(time.Minute),
				Egress: transform.TimeFromJulian(mid + r.Duration/2).UTC(),
				Body:   name,
				MidJD:  mid,
				Text:   text,
			})
		}
	}
	slices.SortStableFunc(msgs, func(a, b storage.Message) int {
		if c := a.Minute.Compare(b.Minute); c != 0 {
			return c
		}
		return strings.Compare(a.Body, b.Body)
	})
	return msgs
}

// Schedule stores the planned messages, ignoring transits already stored.
// It returns the newly stored messages grouped by minute.
func (n *Notifier) Schedule(ctx context.Context, records map[string]catalog.Record, now time.Time) ([]Slot, error) {
	var added []storage.Message
	for _, m := range n.Plan(records, now) {
		inserted, err := n.store.AddMessage(ctx, &m)
		if err != nil {
			return nil, fmt.Errorf("schedule %s: %w", m.Body, err)
		}
		if !inserted {
			continue
		}
		metrics.MessageComposed()
		added = append(added, m)
	}
	n.logger.Info("messages scheduled", "count", len(added), "lookahead", n.lookahead)
	return Group(added), nil
}

// Dispatch sends every unsent message due at or before now whose transit is
// still under way, allowing the grace period after egress. Messages for
// transits that are already over are expired without being sent. A failed
// send leaves the message pending and the remaining messages are still tried.
func (n *Notifier) Dispatch(ctx context.Context, now time.Time) (int, error) {
	if n.sender == nil {
		return 0, ErrNoSender
	}
	since := now.Add(-n.grace)
	expired, err := n.store.ExpireMessages(ctx, since)
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		metrics.MessagesExpired(expired)
		n.logger.Info("expired stale messages", "count", expired, "before", since)
	}
	pending, err := n.store.PendingMessages(ctx, since, now)
	if err != nil {
		return 0, err
	}

	sent := 0
	var errs []error
	for _, m := range pending {
		if err := n.sender.Send(ctx, m.Text); err != nil {
			metrics.MessageFailed()
			n.logger.Warn("send failed", "body", m.Body, "minute", m.Minute, "error", err)
			errs = append(errs, fmt.Errorf("send %s: %w", m.Body, err))
			continue
		}
		if err := n.store.MarkSent(ctx, m.ID); err != nil {
			return sent, err
		}
		metrics.MessageSent()
		sent++
	}
	return sent, errors.Join(errs...)
}

// Group buckets messages already sorted by minute.
func Group(msgs []storage.Message) []Slot {
	var slots []Slot
	for _, m := range msgs {
		if k := len(slots); k > 0 && slots[k-1].Minute.Equal(m.Minute) {
			slots[k-1].Messages = append(slots[k-1].Messages, m)
			continue
		}
		slots = append(slots, Slot{Minute: m.Minute, Messages: []storage.Message{m}})
	}
	return slots
}
