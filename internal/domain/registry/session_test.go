package registry

import (
	"testing"

	"github.com/guildview/panel-service/internal/domain/event"
	"github.com/guildview/panel-service/internal/domain/model"
)

func newActiveSession(queueSize int) *Session {
	s := NewSession(model.Identity{UserID: "u1"}, SessionMetadata{Transport: "ws"}, queueSize)
	s.Activate()
	return s
}

func TestSessionStateTransitions(t *testing.T) {
	s := NewSession(model.Identity{UserID: "u1"}, SessionMetadata{}, 4)

	if got := s.State(); got != StateConnecting {
		t.Fatalf("initial State = %v, want %v", got, StateConnecting)
	}
	if !s.Activate() {
		t.Fatalf("Activate = false, want true")
	}
	if s.Activate() {
		t.Errorf("second Activate = true, want false")
	}
	s.Close("client_gone")
	if got := s.State(); got != StateClosing {
		t.Errorf("State after Close = %v, want %v", got, StateClosing)
	}
	s.Finish()
	if got := s.State(); got != StateClosed {
		t.Errorf("State after Finish = %v, want %v", got, StateClosed)
	}
}

func TestSendBeforeActivateIsRejected(t *testing.T) {
	s := NewSession(model.Identity{UserID: "u1"}, SessionMetadata{}, 4)

	if s.Send(event.New(event.KindMessageCreate, nil)) {
		t.Errorf("Send before Activate = true, want false")
	}
	if s.Queued() != 0 {
		t.Errorf("Queued = %d, want 0", s.Queued())
	}
}

func TestSendAfterCloseIsSilentNoop(t *testing.T) {
	s := newActiveSession(4)
	s.Close("bye")

	if s.Send(event.New(event.KindMessageCreate, nil)) {
		t.Errorf("Send after Close = true, want false")
	}
	if s.Queued() != 0 {
		t.Errorf("Queued after rejected Send = %d, want 0", s.Queued())
	}
}

func TestSendEvictsOldestWhenFull(t *testing.T) {
	s := newActiveSession(2)

	first := event.New(event.KindMessageCreate, map[string]any{"n": 1})
	second := event.New(event.KindMessageCreate, map[string]any{"n": 2})
	third := event.New(event.KindMessageCreate, map[string]any{"n": 3})

	for _, ev := range []*event.Event{first, second, third} {
		if !s.Send(ev) {
			t.Fatalf("Send(%s) = false, want true", ev.GetID())
		}
	}

	if got := s.EvictedCount(); got != 1 {
		t.Errorf("EvictedCount = %d, want 1", got)
	}

	// The head must now be the second event: oldest was shed, order kept.
	got := <-s.Recv()
	if got != second {
		t.Errorf("first received = %v, want the second sent event", got.GetData())
	}
	got = <-s.Recv()
	if got != third {
		t.Errorf("second received = %v, want the third sent event", got.GetData())
	}
}

func TestSendPreservesFIFO(t *testing.T) {
	s := newActiveSession(8)

	sent := make([]*event.Event, 0, 5)
	for i := 0; i < 5; i++ {
		ev := event.New(event.KindMessageCreate, map[string]any{"n": i})
		sent = append(sent, ev)
		s.Send(ev)
	}

	for i, want := range sent {
		if got := <-s.Recv(); got != want {
			t.Fatalf("Recv()[%d] out of order", i)
		}
	}
}

func TestCloseFirstReasonWins(t *testing.T) {
	s := newActiveSession(4)

	s.Close("first")
	s.Close("second")

	if got := s.CloseReason(); got != "first" {
		t.Errorf("CloseReason = %q, want %q", got, "first")
	}
}

func TestDoneSignalledOnClose(t *testing.T) {
	s := newActiveSession(4)

	select {
	case <-s.Done():
		t.Fatalf("Done closed before Close")
	default:
	}

	s.Close("bye")

	select {
	case <-s.Done():
	default:
		t.Errorf("Done not closed after Close")
	}
}

func TestQueueDrainableAfterClose(t *testing.T) {
	s := newActiveSession(4)
	ev := event.New(event.KindMessageCreate, nil)
	s.Send(ev)
	s.Close("bye")

	// Frames accepted before Close stay readable for the drain phase.
	select {
	case got := <-s.Recv():
		if got != ev {
			t.Errorf("drained unexpected event")
		}
	default:
		t.Errorf("queued frame lost on Close")
	}
}
