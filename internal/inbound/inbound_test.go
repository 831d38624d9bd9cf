package inbound

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/smartledger/internal/engine"
)

func TestSMS_Message(t *testing.T) {
	at := time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		parts  []string
		want   string
		wantOK bool
	}{
		{name: "single part", parts: []string{"消费10元"}, want: "消费10元", wantOK: true},
		{name: "multi part joins without separator", parts: []string{"【银行】您尾号1234的卡", "消费128.50元"}, want: "【银行】您尾号1234的卡消费128.50元", wantOK: true},
		{name: "no parts", parts: nil},
		{name: "blank parts", parts: []string{" ", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := SMS{Parts: tt.parts, ReceivedAt: at}.Message()
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.want, msg.Text)
			assert.Equal(t, "SMS", msg.Channel)
			assert.Equal(t, at, msg.ReceivedAt)
			assert.Nil(t, msg.MethodID)
			assert.Nil(t, msg.CardID)
		})
	}
}

func TestNotification_Message(t *testing.T) {
	tests := []struct {
		name   string
		in     Notification
		want   string
		wantOK bool
	}{
		{name: "title and text", in: Notification{Package: "com.tencent.mm", Title: "微信支付", Text: "支付成功 ¥12.00"}, want: "微信支付 支付成功 ¥12.00", wantOK: true},
		{name: "text only", in: Notification{Package: "p", Text: "到账 5 元"}, want: "到账 5 元", wantOK: true},
		{name: "title only", in: Notification{Package: "p", Title: "支付宝"}, want: "支付宝", wantOK: true},
		{name: "blank", in: Notification{Package: "p", Title: "  ", Text: "\t"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := tt.in.Message()
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.want, msg.Text)
				assert.Equal(t, tt.in.Package, msg.Channel)
			}
		})
	}
}

func TestFeed(t *testing.T) {
	input := strings.Join([]string{
		`# captured on the phone`,
		`{"kind":"sms","parts":["【银行】您尾号1234的卡","消费128.50元"]}`,
		``,
		`{"kind":"notification","package":"com.eg.android.AlipayGphone","title":"支付宝","text":"支付成功 25.00","method_id":2}`,
		`{"kind":"raw","channel":"bank","text":"消费10元","card_id":3}`,
		`{"kind":"notification","package":"x","title":"","text":""}`,
		`{"kind":"fax","text":"hello"}`,
		`not json`,
		`{"kind":"sms","text":"单条短信 8元","received_at":"2024-03-14T08:00:00Z"}`,
	}, "\n")

	messages, stats, err := ReadAll(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, FeedStats{Lines: 7, Sent: 4, Skipped: 3}, stats)
	require.Len(t, messages, 4)

	assert.Equal(t, "【银行】您尾号1234的卡消费128.50元", messages[0].Text)
	assert.Equal(t, "SMS", messages[0].Channel)

	assert.Equal(t, "支付宝 支付成功 25.00", messages[1].Text)
	assert.Equal(t, "com.eg.android.AlipayGphone", messages[1].Channel)
	require.NotNil(t, messages[1].MethodID)
	assert.Equal(t, int64(2), *messages[1].MethodID)

	assert.Equal(t, "bank", messages[2].Channel)
	require.NotNil(t, messages[2].CardID)
	assert.Equal(t, int64(3), *messages[2].CardID)

	assert.Equal(t, "单条短信 8元", messages[3].Text)
	assert.Equal(t, time.Date(2024, 3, 14, 8, 0, 0, 0, time.UTC), messages[3].ReceivedAt.UTC())
}

func TestRecord_UnknownKind(t *testing.T) {
	_, ok, err := Record{Kind: "fax", Text: "x"}.Message()
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestFeed_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan engine.Message)
	stats, err := Feed(ctx, strings.NewReader(`{"kind":"raw","text":"a"}`), out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stats.Sent)
}
