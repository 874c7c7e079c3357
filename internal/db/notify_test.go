package db

import (
	"io"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
)

type countingWaker struct{ n int }

func (w *countingWaker) Wake() { w.n++ }

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestHandleNotification(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
	}{
		{name: "insert", payload: `{"count": 3}`, want: 1},
		{name: "empty statement", payload: `{"count": 0}`, want: 0},
		{name: "malformed", payload: `not json`, want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := &countingWaker{}
			b := NewNotifyBridge(quietLogger(), nil, w)

			b.handleNotification(&pgconn.Notification{Channel: listenChannel, Payload: tc.payload})

			if w.n != tc.want {
				t.Errorf("wakes = %d, want %d", w.n, tc.want)
			}
		})
	}
}

func TestNextBackoff(t *testing.T) {
	got := nextBackoff(initialBackoff)
	if got < 1500*time.Millisecond || got > 2500*time.Millisecond {
		t.Errorf("nextBackoff(1s) = %s, want within 2s ±25%%", got)
	}

	capped := nextBackoff(maxBackoff)
	if capped > maxBackoff*5/4 {
		t.Errorf("nextBackoff(max) = %s, exceeds cap with jitter", capped)
	}
}

func TestValidChannel(t *testing.T) {
	if !validChannel.MatchString(listenChannel) {
		t.Errorf("listen channel %q should be valid", listenChannel)
	}
}
