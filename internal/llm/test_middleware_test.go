package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingHook struct {
	mu     sync.Mutex
	events []string
}

func (h *recordingHook) Before(_ context.Context, phase, _ string, _ any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, "before:"+phase)
}

func (h *recordingHook) After(_ context.Context, phase string, _ json.RawMessage, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ev := "after:" + phase
	if err != nil {
		ev += ":err"
	}
	h.events = append(h.events, ev)
}

func TestRetryRecoversFromTransientErrors(t *testing.T) {
	fake := NewFakeClient().Script("candidates",
		FakeReply{Err: errors.New("503")},
		FakeReply{Text: `{"ok": true}`},
	)
	c := Wrap(fake, Retry(3, time.Millisecond))
	raw, err := c.GenerateJSON(WithPhase(context.Background(), "candidates"), "p", nil)
	if err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	if string(raw) != `{"ok": true}` {
		t.Fatalf("unexpected body %s", raw)
	}
	if n := fake.Calls("candidates"); n != 2 {
		t.Fatalf("calls=%d want 2", n)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	fake := NewFakeClient().Script("replacement", FakeReply{Err: NewPermanentError(errors.New("bad api key"))})
	c := Wrap(fake, Retry(5, time.Millisecond))
	_, err := c.GenerateJSON(WithPhase(context.Background(), "replacement"), "p", nil)
	if !IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if n := fake.Calls("replacement"); n != 1 {
		t.Fatalf("calls=%d want 1", n)
	}
}

func TestTimeoutCancelsSlowCalls(t *testing.T) {
	c := Wrap(slowClient{}, Timeout(10*time.Millisecond))
	_, err := c.GenerateJSON(context.Background(), "p", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestHookAndLoggingSeePhase(t *testing.T) {
	var buf bytes.Buffer
	hook := &recordingHook{}
	fake := NewFakeClient().Script("candidates", FakeReply{Text: `{}`})
	c := Wrap(fake, WithLogging(log.New(&buf, "", 0)), WithHook(hook))

	if _, err := c.GenerateJSON(WithPhase(context.Background(), "candidates"), "p", map[string]int{"n": 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GenerateJSON(WithPhase(context.Background(), "other"), "p", nil); err == nil {
		t.Fatal("expected ErrNoScript for an unscripted phase")
	}

	want := []string{"before:candidates", "after:candidates", "before:other", "after:other:err"}
	if strings.Join(hook.events, ",") != strings.Join(want, ",") {
		t.Fatalf("events=%v want %v", hook.events, want)
	}
	if !strings.Contains(buf.String(), "llm request (candidates)") {
		t.Fatalf("log missing request line: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "llm error (other)") {
		t.Fatalf("log missing error line: %q", buf.String())
	}
}

func TestRateLimitHonoursContext(t *testing.T) {
	fake := NewFakeClient().Script("x", FakeReply{Text: `{}`})
	c := Wrap(fake, RateLimit(0.001, 1))
	defer c.Close()

	ctx := WithPhase(context.Background(), "x")
	if _, err := c.GenerateJSON(ctx, "p", nil); err != nil {
		t.Fatalf("first call should use the burst token: %v", err)
	}
	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if _, err := c.GenerateJSON(short, "p", nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestPhaseFromDefaults(t *testing.T) {
	if got := PhaseFrom(context.Background()); got != "unknown" {
		t.Fatalf("PhaseFrom=%q", got)
	}
}

type slowClient struct{}

func (slowClient) Name() string { return "slow" }
func (slowClient) Close() error { return nil }
func (slowClient) GenerateJSON(ctx context.Context, _ string, _ any) (json.RawMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Second):
		return json.RawMessage(`{}`), nil
	}
}
