package main

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus/hooks/test"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestRetryDelayFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want time.Duration
	}{
		{"nil", nil, 0},
		{"retry after", errors.New("Too Many Requests: retry after 7"), 7 * time.Second},
		{"429 without hint", errors.New("too many requests"), 3 * time.Second},
		{"timeout", timeoutErr{}, 2 * time.Second},
		{"other", errors.New("boom"), time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryDelayFromError(tt.err); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShortHash(t *testing.T) {
	a, b := shortHash("123:abc"), shortHash("123:abd")
	if len(a) != 16 || a == b || a != shortHash("123:abc") {
		t.Fatalf("hashes %q %q", a, b)
	}
}

type scriptedUpdates struct {
	calls  int
	cancel context.CancelFunc
}

func (s *scriptedUpdates) GetUpdates(u tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	s.calls++
	switch s.calls {
	case 1:
		return []tgbotapi.Update{{UpdateID: 5}, {UpdateID: 6}}, nil
	case 2:
		if u.Offset != 7 {
			return nil, errors.New("offset not advanced")
		}
		s.cancel()
		return nil, nil
	}
	return nil, errors.New("unexpected call")
}

func TestRunPollingAdvancesOffset(t *testing.T) {
	log, _ := test.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	src := &scriptedUpdates{cancel: cancel}

	var got []int
	runPolling(ctx, src, func(u tgbotapi.Update) { got = append(got, u.UpdateID) }, log)

	if len(got) != 2 || got[1] != 6 || src.calls != 2 {
		t.Fatalf("handled %v in %d calls", got, src.calls)
	}
}
