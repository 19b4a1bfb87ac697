package notify

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

func TestNoticeExpires(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	ch := New(WithTTL(3*time.Second), WithClock(clock.Now))

	ch.Post(Success, "¡Gracias por tu sugerencia!")
	n, ok := ch.Current()
	if !ok || n.Text != "¡Gracias por tu sugerencia!" || n.Level != Success {
		t.Fatalf("unexpected notice: %+v ok=%v", n, ok)
	}

	clock.t = clock.t.Add(2 * time.Second)
	if _, ok := ch.Current(); !ok {
		t.Fatalf("notice expired too early")
	}

	clock.t = clock.t.Add(time.Second)
	if _, ok := ch.Current(); ok {
		t.Fatalf("notice should have expired")
	}
}

func TestNewerNoticeReplacesOlder(t *testing.T) {
	ch := New()
	ch.Post(Info, "uno")
	ch.Post(Error, "dos")
	n, ok := ch.Current()
	if !ok || n.Text != "dos" {
		t.Fatalf("expected latest notice, got %+v", n)
	}
	ch.Dismiss()
	if _, ok := ch.Current(); ok {
		t.Fatalf("dismissed notice still visible")
	}
}

func TestSinksReceiveNotices(t *testing.T) {
	ch := New()
	var got []string
	ch.Subscribe(func(n Notice) { got = append(got, n.Level.String()+":"+n.Text) })
	ch.Subscribe(nil)

	ch.Post(Warning, "a")
	ch.Post(Info, "b")

	if len(got) != 2 || got[0] != "warning:a" || got[1] != "info:b" {
		t.Fatalf("unexpected deliveries: %v", got)
	}
}

func TestLevelString(t *testing.T) {
	cases := map[Level]string{
		Info:    "info",
		Success: "success",
		Warning: "warning",
		Error:   "error",
	}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Fatalf("Level(%d).String() = %q, want %q", int(level), got, want)
		}
	}
}
