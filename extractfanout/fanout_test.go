package extractfanout

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/primkey7607/vdms/intervaldecoder"
)

func TestBasicPublishSubscribe(t *testing.T) {
	b := New()
	defer b.Close()

	ch := make(chan ExtractResult, 10)
	if err := b.Subscribe("test", ch); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	jobID := uuid.New()
	result := ExtractResult{
		JobID:  jobID,
		Frames: []intervaldecoder.DecodedFrame{{Idx: 5}},
	}
	b.Publish(result)

	select {
	case received := <-ch:
		if received.JobID != jobID {
			t.Errorf("JobID = %v, want %v", received.JobID, jobID)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for result")
	}
}

func TestNonBlockingPublish(t *testing.T) {
	b := New()
	defer b.Close()

	ch := make(chan ExtractResult, 1)
	if err := b.Subscribe("slow", ch); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		b.Publish(ExtractResult{JobID: uuid.New()})
		b.Publish(ExtractResult{JobID: uuid.New()}) // should drop, buffer full
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Publish blocked, want non-blocking")
	}

	<-ch // drain the one delivered result

	stats := b.Stats()
	sub := stats.Subscribers["slow"]
	if sub.Sent != 1 {
		t.Errorf("Sent = %d, want 1", sub.Sent)
	}
	if sub.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", sub.Dropped)
	}
}

func TestSubscribe_Errors(t *testing.T) {
	b := New()
	defer b.Close()

	ch := make(chan ExtractResult, 1)
	if err := b.Subscribe("a", ch); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := b.Subscribe("a", ch); err != ErrSubscriberExists {
		t.Errorf("duplicate Subscribe error = %v, want ErrSubscriberExists", err)
	}
	if err := b.Subscribe("b", nil); err != ErrNilChannel {
		t.Errorf("nil channel error = %v, want ErrNilChannel", err)
	}
}

func TestUnsubscribe_NotFound(t *testing.T) {
	b := New()
	defer b.Close()

	if err := b.Unsubscribe("missing"); err != ErrSubscriberNotFound {
		t.Errorf("Unsubscribe(missing) error = %v, want ErrSubscriberNotFound", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	b := New()

	if err := b.Close(); err != nil {
		t.Errorf("Close() = %v, want nil", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}

	ch := make(chan ExtractResult, 1)
	if err := b.Subscribe("x", ch); err != ErrBusClosed {
		t.Errorf("Subscribe after Close error = %v, want ErrBusClosed", err)
	}
}

func TestPublish_PanicsAfterClose(t *testing.T) {
	b := New()
	b.Close()

	defer func() {
		if recover() == nil {
			t.Fatal("Publish after Close did not panic")
		}
	}()
	b.Publish(ExtractResult{JobID: uuid.New()})
}
