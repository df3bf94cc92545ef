package client

import (
	"errors"
	"sync"
	"testing"

	"puzzlearena/core/internal/logging"
)

type fakeConn struct {
	mu      sync.Mutex
	batches [][]Message
	fail    bool
}

func (c *fakeConn) SendBatch(batch []Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("wire down")
	}
	c.batches = append(c.batches, append([]Message(nil), batch...))
	return nil
}

func (c *fakeConn) sent() [][]Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]Message, len(c.batches))
	copy(out, c.batches)
	return out
}

func TestEnqueueBuffersWithoutConnection(t *testing.T) {
	sess := NewSession("c1", logging.NewTestLogger())
	sess.Enqueue(Message{Kind: "event"})
	sess.Enqueue(Message{Kind: "event"})
	if sess.Pending() != 2 {
		t.Fatalf("expected 2 buffered messages, got %d", sess.Pending())
	}
}

func TestAttachFlushesBacklogAsSingleBatchHelloFirst(t *testing.T) {
	sess := NewSession("c1", logging.NewTestLogger())
	sess.Enqueue(Message{Kind: "a"})
	sess.Enqueue(Message{Kind: "b"})

	conn := &fakeConn{}
	sess.Attach(conn, SingleShot)

	batches := conn.sent()
	if len(batches) != 1 {
		t.Fatalf("expected exactly one batch, got %d", len(batches))
	}
	kinds := []string{KindHello, "a", "b"}
	if len(batches[0]) != len(kinds) {
		t.Fatalf("unexpected batch size: %+v", batches[0])
	}
	for i, kind := range kinds {
		if batches[0][i].Kind != kind {
			t.Fatalf("batch position %d: expected %q, got %q", i, kind, batches[0][i].Kind)
		}
	}
	if sess.Pending() != 0 {
		t.Fatalf("buffer must be empty after flush, got %d", sess.Pending())
	}
}

func TestSingleShotHoldsMessagesUntilReattach(t *testing.T) {
	sess := NewSession("c1", logging.NewTestLogger())
	conn := &fakeConn{}
	sess.Attach(conn, SingleShot)
	if got := len(conn.sent()); got != 1 {
		t.Fatalf("expected hello batch, got %d batches", got)
	}

	//1.- The single shot is spent; new messages must wait for a fresh connection.
	sess.Enqueue(Message{Kind: "m1"})
	sess.Enqueue(Message{Kind: "m2"})
	if got := len(conn.sent()); got != 1 {
		t.Fatalf("no further sends permitted on a spent connection, got %d", got)
	}
	if sess.Pending() != 2 {
		t.Fatalf("expected 2 held messages, got %d", sess.Pending())
	}

	next := &fakeConn{}
	sess.Attach(next, SingleShot)
	batches := next.sent()
	if len(batches) != 1 {
		t.Fatalf("expected one batch on reattach, got %d", len(batches))
	}
	if batches[0][0].Kind != KindHello || batches[0][1].Kind != "m1" || batches[0][2].Kind != "m2" {
		t.Fatalf("messages out of order on reattach: %+v", batches[0])
	}
}

func TestStreamingStaysSendableAcrossSends(t *testing.T) {
	sess := NewSession("c1", logging.NewTestLogger())
	conn := &fakeConn{}
	sess.Attach(conn, Streaming)

	sess.Enqueue(Message{Kind: "m1"})
	sess.Enqueue(Message{Kind: "m2"})

	batches := conn.sent()
	if len(batches) != 3 {
		t.Fatalf("expected hello plus two immediate sends, got %d", len(batches))
	}
	if batches[1][0].Kind != "m1" || batches[2][0].Kind != "m2" {
		t.Fatalf("unexpected streaming batches: %+v", batches)
	}
}

func TestFailedSendKeepsMessagesForNextConnection(t *testing.T) {
	sess := NewSession("c1", logging.NewTestLogger())
	broken := &fakeConn{fail: true}
	sess.Enqueue(Message{Kind: "m1"})
	sess.Attach(broken, Streaming)
	if sess.Pending() != 2 {
		t.Fatalf("expected hello+m1 requeued after failure, got %d", sess.Pending())
	}

	healthy := &fakeConn{}
	sess.Attach(healthy, Streaming)
	batches := healthy.sent()
	if len(batches) != 1 {
		t.Fatalf("expected one recovery batch, got %d", len(batches))
	}
	//2.- Nothing is dropped: the failed hello and m1 ride behind the new hello.
	if len(batches[0]) != 3 {
		t.Fatalf("expected 3 messages in recovery batch, got %+v", batches[0])
	}
}

func TestDetachIgnoresStaleConnection(t *testing.T) {
	sess := NewSession("c1", logging.NewTestLogger())
	old := &fakeConn{}
	sess.Attach(old, Streaming)
	replacement := &fakeConn{}
	sess.Attach(replacement, Streaming)

	sess.Detach(old)
	sess.Enqueue(Message{Kind: "m"})
	if got := len(replacement.sent()); got != 2 {
		t.Fatalf("replacement connection must stay attached, got %d batches", got)
	}
}

func TestRequeuePutsUndeliveredMessagesFirst(t *testing.T) {
	sess := NewSession("c1", logging.NewTestLogger())
	sess.Enqueue(Message{Kind: "event", Data: "late"})

	//1.- A recovered batch outranks whatever arrived since it was handed out,
	// and its synthetic hello is discarded rather than replayed.
	sess.Requeue([]Message{
		{Kind: KindHello},
		{Kind: "event", Data: "first"},
		{Kind: "event", Data: "second"},
	})
	if sess.Pending() != 3 {
		t.Fatalf("expected 3 pending messages, got %d", sess.Pending())
	}

	conn := &fakeConn{}
	sess.Attach(conn, Streaming)
	batches := conn.sent()
	if len(batches) != 1 {
		t.Fatalf("expected one flush, got %d", len(batches))
	}
	got := batches[0]
	want := []string{KindHello, "first", "second", "late"}
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %+v", len(want), got)
	}
	if got[0].Kind != KindHello {
		t.Fatalf("batch must open with the handshake, got %+v", got[0])
	}
	for i := 1; i < len(got); i++ {
		if got[i].Data != want[i] {
			t.Fatalf("position %d: expected %q, got %+v", i, want[i], got[i])
		}
	}
}

func TestRequeueOfHelloOnlyBatchIsANoOp(t *testing.T) {
	sess := NewSession("c1", logging.NewTestLogger())
	sess.Requeue([]Message{{Kind: KindHello}})
	if sess.Pending() != 0 {
		t.Fatalf("expected empty buffer, got %d pending", sess.Pending())
	}
}

func TestBindPlayerAndGameTracking(t *testing.T) {
	sess := NewSession("c1", logging.NewTestLogger())
	sess.BindPlayer("p1")
	sess.SetGameID("g1")
	if sess.PlayerID() != "p1" || sess.GameID() != "g1" {
		t.Fatalf("unexpected bindings: player=%q game=%q", sess.PlayerID(), sess.GameID())
	}
	if sess.ID() != "c1" {
		t.Fatalf("unexpected session id %q", sess.ID())
	}
}
