package bot

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/susu3304/sessionbook/internal/booking"
)

const (
	announceBatch = 50
	// maxEventFailures is how many ticks one event may fail before it is skipped.
	maxEventFailures = 5
)

// announcer posts booking events to a channel, one message per event.
type announcer struct {
	feed       eventFeed
	session    channelSender
	channelID  string
	cursor     int64
	failedSeq  int64
	failures   int
	stopChan   chan struct{}
	ticker     *time.Ticker
	interval   time.Duration
	retryDelay func() time.Duration
}

// Minimal session interface for sending channel messages.
type channelSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type eventFeed interface {
	EventsSince(ctx context.Context, afterSeq int64, limit int) ([]booking.Event, error)
}

func newAnnouncer(session channelSender, feed eventFeed, channelID string) *announcer {
	return &announcer{
		feed:      feed,
		session:   session,
		channelID: channelID,
		stopChan:  make(chan struct{}),
		interval:  5 * time.Second,
		retryDelay: func() time.Duration {
			return time.Duration(300+rand.Intn(500)) * time.Millisecond
		},
	}
}

func (w *announcer) start(ctx context.Context) error {
	if w == nil {
		return nil
	}
	if err := w.skipBacklog(ctx); err != nil {
		return err
	}
	w.ticker = time.NewTicker(w.interval)
	go w.loop(ctx)
	return nil
}

func (w *announcer) stop() {
	if w == nil {
		return
	}
	close(w.stopChan)
	if w.ticker != nil {
		w.ticker.Stop()
	}
}

func (w *announcer) loop(ctx context.Context) {
	for {
		select {
		case <-w.ticker.C:
			w.tick(ctx)
		case <-w.stopChan:
			return
		}
	}
}

// skipBacklog moves the cursor past events recorded before startup.
func (w *announcer) skipBacklog(ctx context.Context) error {
	for {
		events, err := w.feed.EventsSince(ctx, w.cursor, announceBatch)
		if err != nil {
			return fmt.Errorf("announcer: failed to read event backlog: %w", err)
		}
		if len(events) == 0 {
			return nil
		}
		w.cursor = events[len(events)-1].Seq
	}
}

func (w *announcer) tick(ctx context.Context) {
	events, err := w.feed.EventsSince(ctx, w.cursor, announceBatch)
	if err != nil {
		log.Printf("announcer: failed to load events after %d: %v", w.cursor, err)
		return
	}

	for _, ev := range events {
		if err := w.sendWithRetry(ctx, w.channelID, formatEvent(ev)); err != nil {
			if w.recordFailure(ev.Seq) < maxEventFailures {
				// Leave the cursor here so the next tick retries this event.
				log.Printf("announcer: failed to send event %d to channel %s: %v", ev.Seq, w.channelID, err)
				return
			}
			log.Printf("announcer: skipping event %d after %d failed sends to channel %s: %v", ev.Seq, w.failures, w.channelID, err)
		}
		w.cursor = ev.Seq
		w.failures = 0
	}
}

// recordFailure counts consecutive failed ticks for the event at seq.
func (w *announcer) recordFailure(seq int64) int {
	if w.failedSeq != seq {
		w.failedSeq = seq
		w.failures = 0
	}
	w.failures++
	return w.failures
}

func (w *announcer) sendWithRetry(ctx context.Context, channelID, content string) error {
	const attemptTimeout = 12 * time.Second
	const maxAttempts = 2

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		_, err := w.session.ChannelMessageSend(channelID, content, discordgo.WithContext(sendCtx))
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTemporaryOrTimeout(err) {
			return err
		}
		time.Sleep(w.retryDelay())
	}
	return lastErr
}

func isTemporaryOrTimeout(err error) bool {
	if err == nil {
		return false
	}
	if ne, ok := err.(net.Error); ok {
		return ne.Timeout() || ne.Temporary()
	}
	return false
}

func formatEvent(ev booking.Event) string {
	switch ev.Kind {
	case booking.EventOffered:
		return fmt.Sprintf("📅 セッション #%d が募集されました（<@%s>）", ev.SessionID, ev.Actor)
	case booking.EventBooked:
		return fmt.Sprintf("✅ セッション #%d が予約されました（預かり金 %d）", ev.SessionID, ev.Escrowed)
	case booking.EventCancelled:
		return fmt.Sprintf("❌ セッション #%d がキャンセルされました（返金 %d / 支払 %d）", ev.SessionID, ev.Refunded, ev.Paid)
	case booking.EventCompleted:
		return fmt.Sprintf("🎉 セッション #%d が完了しました（支払 %d）", ev.SessionID, ev.Paid)
	case booking.EventNoShow:
		return fmt.Sprintf("⚠️ セッション #%d は欠席で終了しました（返金 %d / 支払 %d）", ev.SessionID, ev.Refunded, ev.Paid)
	default:
		return fmt.Sprintf("セッション #%d: %s", ev.SessionID, ev.Kind)
	}
}
