package inbound

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/smartledger/internal/engine"
)

// Record kinds accepted in a feed.
const (
	KindSMS          = "sms"
	KindNotification = "notification"
	KindRaw          = "raw"
)

// maxLineBytes bounds a single feed line.
const maxLineBytes = 1 << 20

// ErrUnknownKind is returned for a record whose kind is not recognized.
var ErrUnknownKind = errors.New("unknown record kind")

// Record is one line of a JSON-lines message feed.
//
//	{"kind":"sms","parts":["【银行】您尾号1234的卡","消费128.50元"]}
//	{"kind":"notification","package":"com.eg.android.AlipayGphone","title":"支付宝","text":"支付成功 25.00"}
//	{"kind":"raw","channel":"bank","text":"消费10元","card_id":3}
type Record struct {
	ReceivedAt time.Time `json:"received_at,omitempty"`
	MethodID   *int64    `json:"method_id,omitempty"`
	CardID     *int64    `json:"card_id,omitempty"`
	Kind       string    `json:"kind"`
	Channel    string    `json:"channel,omitempty"`
	Package    string    `json:"package,omitempty"`
	Title      string    `json:"title,omitempty"`
	Text       string    `json:"text,omitempty"`
	Parts      []string  `json:"parts,omitempty"`
}

// Message converts the record. ok is false for records that carry nothing to
// process.
func (r Record) Message() (engine.Message, bool, error) {
	var (
		msg engine.Message
		ok  bool
	)
	switch strings.ToLower(strings.TrimSpace(r.Kind)) {
	case KindSMS:
		parts := r.Parts
		if len(parts) == 0 && r.Text != "" {
			parts = []string{r.Text}
		}
		msg, ok = SMS{Parts: parts, ReceivedAt: r.ReceivedAt}.Message()
	case KindNotification:
		msg, ok = Notification{Package: r.Package, Title: r.Title, Text: r.Text, PostedAt: r.ReceivedAt}.Message()
	case KindRaw, "":
		if strings.TrimSpace(r.Text) != "" {
			msg = engine.Message{Text: r.Text, Channel: r.Channel, ReceivedAt: r.ReceivedAt}
			ok = true
		}
	default:
		return engine.Message{}, false, fmt.Errorf("%w: %q", ErrUnknownKind, r.Kind)
	}
	if !ok {
		return engine.Message{}, false, nil
	}
	msg.MethodID = r.MethodID
	msg.CardID = r.CardID
	return msg, true, nil
}

// FeedStats counts what a feed produced.
type FeedStats struct {
	Lines   int
	Sent    int
	Skipped int
}

// Feed reads JSON-lines records from r and sends every usable message to out.
// Malformed lines are logged and skipped. Feed does not close out.
func Feed(ctx context.Context, r io.Reader, out chan<- engine.Message) (FeedStats, error) {
	var stats FeedStats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		stats.Lines++

		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			slog.Warn("skipping malformed feed line", "line", stats.Lines, "error", err)
			stats.Skipped++
			continue
		}
		msg, ok, err := rec.Message()
		if err != nil {
			slog.Warn("skipping feed record", "line", stats.Lines, "error", err)
			stats.Skipped++
			continue
		}
		if !ok {
			stats.Skipped++
			continue
		}

		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case out <- msg:
			stats.Sent++
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read feed: %w", err)
	}
	return stats, nil
}

// ReadAll decodes every usable message in r.
func ReadAll(r io.Reader) ([]engine.Message, FeedStats, error) {
	out := make(chan engine.Message)
	var (
		messages []engine.Message
		done     = make(chan struct{})
	)
	go func() {
		defer close(done)
		for msg := range out {
			messages = append(messages, msg)
		}
	}()

	stats, err := Feed(context.Background(), r, out)
	close(out)
	<-done
	return messages, stats, err
}
