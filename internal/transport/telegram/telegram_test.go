package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"

	"ytc/internal/transport"
	"ytc/pkg/logx"
)

type recordingBot struct {
	sent []string
	opts []*tele.SendOptions
	fail error
}

func (r *recordingBot) Send(to tele.Recipient, what any, opts ...any) (*tele.Message, error) {
	if r.fail != nil {
		return nil, r.fail
	}
	r.sent = append(r.sent, what.(string))
	if len(opts) > 0 {
		r.opts = append(r.opts, opts[0].(*tele.SendOptions))
	}
	return &tele.Message{ID: len(r.sent)}, nil
}

func TestSplitText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		in    string
		limit int
		mode  string
		want  []string
	}{
		{name: "short", in: "hello", limit: 10, want: []string{"hello"}},
		{name: "newline", in: "aaaa\nbbbb\ncc", limit: 10, want: []string{"aaaa\nbbbb", "cc"}},
		{name: "hard cut", in: "abcdefghij", limit: 4, want: []string{"abcd", "efgh", "ij"}},
		{name: "html tag", in: "abcde<b>x</b>", limit: 7, mode: tele.ModeHTML, want: []string{"abcde", "<b>x", "</b>"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := splitText(tt.in, tt.limit, tt.mode)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Fatalf("splitText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSendTextSplitsAndReturnsFirst(t *testing.T) {
	t.Parallel()
	bot := &recordingBot{}
	s := &Sender{bot: bot, log: logx.Nop()}
	long := strings.Repeat("x", textLimit+10)

	ref, err := s.SendText(context.Background(), transport.ChatTarget{ChatID: 42, ThreadID: 7}, long, &transport.SendOptions{DisablePreview: true})
	if err != nil {
		t.Fatalf("SendText error: %v", err)
	}
	if len(bot.sent) != 2 {
		t.Fatalf("sent %d chunks, want 2", len(bot.sent))
	}
	if ref.MessageID != 1 || ref.ChatID != 42 || ref.ThreadID != 7 {
		t.Fatalf("unexpected ref %+v", ref)
	}
	if bot.opts[0].ThreadID != 7 || !bot.opts[0].DisableWebPagePreview {
		t.Fatalf("options not forwarded: %+v", bot.opts[0])
	}
}

func TestSendTextError(t *testing.T) {
	t.Parallel()
	boom := errors.New("forbidden")
	s := &Sender{bot: &recordingBot{fail: boom}, log: logx.Nop()}
	if _, err := s.SendText(context.Background(), transport.ChatTarget{ChatID: 1}, "hi", nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{Token: " "}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty token")
	}
}
