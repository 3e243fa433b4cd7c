package stream

import (
	"testing"
)

func TestBroadcasterSubscribe(t *testing.T) {

	b := NewBroadcaster(2)

	id, ch := b.Subscribe()

	if id == "" {
		t.Fatal("expected non empty client id")
	}
	if b.Clients() != 1 {
		t.Fatalf("expected 1 client, got %d", b.Clients())
	}

	b.Publish([]byte("frame1"))

	select {
	case frame := <-ch:
		if string(frame) != "frame1" {
			t.Errorf("unexpected frame %q", frame)
		}
	default:
		t.Fatal("expected buffered frame")
	}
}

func TestBroadcasterDropsWhenFull(t *testing.T) {

	b := NewBroadcaster(1)

	_, ch := b.Subscribe()

	b.Publish([]byte("frame1"))
	b.Publish([]byte("frame2"))

	if got := string(<-ch); got != "frame1" {
		t.Errorf("unexpected frame %q", got)
	}

	select {
	case frame := <-ch:
		t.Fatalf("expected second frame dropped, got %q", frame)
	default:
	}
}

func TestBroadcasterUnsubscribe(t *testing.T) {

	b := NewBroadcaster(1)

	id, ch := b.Subscribe()
	b.Unsubscribe(id)

	if b.Clients() != 0 {
		t.Fatalf("expected 0 clients, got %d", b.Clients())
	}

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after unsubscribe")
	}

	// publishing with no clients must not panic
	b.Publish([]byte("frame"))
}
