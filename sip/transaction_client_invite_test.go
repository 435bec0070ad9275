package sip_test

import (
	"testing"
	"time"

	"github.com/sipclient/txlayer/message"
	"github.com/sipclient/txlayer/sip"
)

func fastInviteTimings() sip.TimingConfig {
	return sip.NewTimings(10*time.Millisecond, 15*time.Millisecond, 50*time.Millisecond, 30*time.Millisecond, 0)
}

func TestInviteClientTransaction_Accepted(t *testing.T) {
	t.Parallel()

	tp := newFakeTransport(false)
	core := newFakeCore()
	req := newTestRequest(t, message.MethodInvite, "z9hG4bK-accepted")

	tx, err := sip.NewInviteClientTransaction(t.Context(), req, tp, core, &sip.ClientTransactionOptions{Timings: fastInviteTimings()})
	if err != nil {
		t.Fatalf("NewInviteClientTransaction() error = %v", err)
	}

	tp.waitSend(t, 100*time.Millisecond)
	if tx.State() != sip.TransactionStateCalling {
		t.Fatalf("state after send = %q, want %q", tx.State(), sip.TransactionStateCalling)
	}

	ringing := newTestResponse(t, req, message.StatusRinging)
	if err := tx.RecvResponse(t.Context(), ringing); err != nil {
		t.Fatalf("RecvResponse(ringing) error = %v", err)
	}
	waitForState(t, tx, sip.TransactionStateProceeding, 100*time.Millisecond)
	if core.provisionalCount() != 1 {
		t.Fatalf("provisional count = %d, want 1", core.provisionalCount())
	}

	ok := newTestResponse(t, req, message.StatusOK)
	if err := tx.RecvResponse(t.Context(), ok); err != nil {
		t.Fatalf("RecvResponse(ok) error = %v", err)
	}
	waitForState(t, tx, sip.TransactionStateAccepted, 100*time.Millisecond)
	if core.finalCount() != 1 {
		t.Fatalf("final count = %d, want 1", core.finalCount())
	}

	// A retransmitted 2xx must still be passed to the core while accepted,
	// absorbing it without building an ACK (that is the core's job).
	ok2 := newTestResponse(t, req, message.StatusOK)
	if err := tx.RecvResponse(t.Context(), ok2); err != nil {
		t.Fatalf("RecvResponse(ok retransmit) error = %v", err)
	}
	if core.finalCount() != 2 {
		t.Fatalf("final count after retransmit = %d, want 2", core.finalCount())
	}

	normal := core.waitTerminated(t, time.Second)
	if !normal {
		t.Fatal("OnTerminated(normal) = false, want true")
	}
	if tx.State() != sip.TransactionStateTerminated {
		t.Fatalf("final state = %q, want %q", tx.State(), sip.TransactionStateTerminated)
	}
}

func TestInviteClientTransaction_CompletedSendsAckAndRetransmitsIt(t *testing.T) {
	t.Parallel()

	tp := newFakeTransport(false)
	core := newFakeCore()
	req := newTestRequest(t, message.MethodInvite, "z9hG4bK-completed")

	tx, err := sip.NewInviteClientTransaction(t.Context(), req, tp, core, &sip.ClientTransactionOptions{Timings: fastInviteTimings()})
	if err != nil {
		t.Fatalf("NewInviteClientTransaction() error = %v", err)
	}
	tp.waitSend(t, 100*time.Millisecond)

	declined := newTestResponse(t, req, message.ResponseStatus(486))
	if err := tx.RecvResponse(t.Context(), declined); err != nil {
		t.Fatalf("RecvResponse(486) error = %v", err)
	}
	waitForState(t, tx, sip.TransactionStateCompleted, 100*time.Millisecond)

	ack := tp.waitSend(t, 100*time.Millisecond)
	if !ack.Method().Equal(message.MethodAck) {
		t.Fatalf("second send method = %q, want ACK", ack.Method())
	}
	if ack.CSeq().Sequence != req.CSeq().Sequence {
		t.Fatalf("ACK CSeq.Sequence = %d, want %d", ack.CSeq().Sequence, req.CSeq().Sequence)
	}

	// retransmitted final response must provoke a retransmitted ACK, not a
	// second delivery to the core.
	if err := tx.RecvResponse(t.Context(), declined); err != nil {
		t.Fatalf("RecvResponse(486 retransmit) error = %v", err)
	}
	tp.waitSend(t, 100*time.Millisecond)
	if core.finalCount() != 1 {
		t.Fatalf("final count = %d, want 1 (retransmit must not reach the core twice)", core.finalCount())
	}

	normal := core.waitTerminated(t, time.Second)
	if !normal {
		t.Fatal("OnTerminated(normal) = false, want true")
	}
}

func TestInviteClientTransaction_TimerBFiresTimeout(t *testing.T) {
	t.Parallel()

	tp := newFakeTransport(false)
	core := newFakeCore()
	req := newTestRequest(t, message.MethodInvite, "z9hG4bK-timeout")

	_, err := sip.NewInviteClientTransaction(t.Context(), req, tp, core, &sip.ClientTransactionOptions{Timings: fastInviteTimings()})
	if err != nil {
		t.Fatalf("NewInviteClientTransaction() error = %v", err)
	}

	normal := core.waitTerminated(t, 2*time.Second)
	if normal {
		t.Fatal("OnTerminated(normal) = true, want false after Timer B timeout")
	}
	if core.timeoutCount() != 1 {
		t.Fatalf("timeout count = %d, want 1", core.timeoutCount())
	}
	if got := tp.sentCount(); got < 2 {
		t.Fatalf("sent count = %d, want >= 2 retransmits before Timer B fires", got)
	}
}

func TestInviteClientTransaction_ReliableTransportTerminatesImmediately(t *testing.T) {
	t.Parallel()

	t.Run("completed", func(t *testing.T) {
		t.Parallel()

		tp := newFakeTransport(true)
		core := newFakeCore()
		req := newTestRequest(t, message.MethodInvite, "z9hG4bK-reliable-completed")

		tx, err := sip.NewInviteClientTransaction(t.Context(), req, tp, core, &sip.ClientTransactionOptions{Timings: fastInviteTimings()})
		if err != nil {
			t.Fatalf("NewInviteClientTransaction() error = %v", err)
		}
		tp.waitSend(t, 100*time.Millisecond)

		declined := newTestResponse(t, req, message.ResponseStatus(486))
		if err := tx.RecvResponse(t.Context(), declined); err != nil {
			t.Fatalf("RecvResponse(486) error = %v", err)
		}

		// ACK is still sent on a reliable transport; only the completed dwell
		// (Timer D) is elided.
		ack := tp.waitSend(t, 100*time.Millisecond)
		if !ack.Method().Equal(message.MethodAck) {
			t.Fatalf("second send method = %q, want ACK", ack.Method())
		}

		if !core.waitTerminated(t, 50*time.Millisecond) {
			t.Fatal("OnTerminated(normal) = false, want true immediately (no Timer D on a reliable transport)")
		}
		if tx.State() != sip.TransactionStateTerminated {
			t.Fatalf("state = %q, want %q", tx.State(), sip.TransactionStateTerminated)
		}
	})

	t.Run("accepted", func(t *testing.T) {
		t.Parallel()

		tp := newFakeTransport(true)
		core := newFakeCore()
		req := newTestRequest(t, message.MethodInvite, "z9hG4bK-reliable-accepted")

		tx, err := sip.NewInviteClientTransaction(t.Context(), req, tp, core, &sip.ClientTransactionOptions{Timings: fastInviteTimings()})
		if err != nil {
			t.Fatalf("NewInviteClientTransaction() error = %v", err)
		}
		tp.waitSend(t, 100*time.Millisecond)

		ok := newTestResponse(t, req, message.StatusOK)
		if err := tx.RecvResponse(t.Context(), ok); err != nil {
			t.Fatalf("RecvResponse(ok) error = %v", err)
		}

		if !core.waitTerminated(t, 50*time.Millisecond) {
			t.Fatal("OnTerminated(normal) = false, want true immediately (no Timer M on a reliable transport)")
		}
		if tx.State() != sip.TransactionStateTerminated {
			t.Fatalf("state = %q, want %q", tx.State(), sip.TransactionStateTerminated)
		}
	})
}

func TestInviteClientTransaction_TimerADoublesWithoutT2Cap(t *testing.T) {
	t.Parallel()

	tp := newFakeTransport(false)
	core := newFakeCore()
	req := newTestRequest(t, message.MethodInvite, "z9hG4bK-timer-a-uncapped")

	// inviteT1=5ms doubling unboundedly reaches Timer B (320ms) in about 7
	// sends (5, 10, 20, 40, 80, 160 ms apart). If Timer A were wrongly
	// capped at t2=10ms it would instead retransmit roughly every 10ms and
	// rack up 30+ sends over the same window.
	timings := sip.NewTimings(0, 5*time.Millisecond, 10*time.Millisecond, 0, 0)
	_, err := sip.NewInviteClientTransaction(t.Context(), req, tp, core, &sip.ClientTransactionOptions{Timings: timings})
	if err != nil {
		t.Fatalf("NewInviteClientTransaction() error = %v", err)
	}

	core.waitTerminated(t, 2*time.Second)
	if got := tp.sentCount(); got > 10 {
		t.Fatalf("sent count = %d, want <= 10 (Timer A must double unboundedly, not cap at T2)", got)
	}
}

func TestInviteClientTransaction_RejectsNonInviteMethod(t *testing.T) {
	t.Parallel()

	tp := newFakeTransport(true)
	core := newFakeCore()
	req := newTestRequest(t, message.MethodBye, "z9hG4bK-wrong-method")

	if _, err := sip.NewInviteClientTransaction(t.Context(), req, tp, core, nil); err == nil {
		t.Fatal("NewInviteClientTransaction() error = nil, want non-nil for a BYE request")
	}
}
