package sip_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sipclient/txlayer/message"
	"github.com/sipclient/txlayer/sip"
)

func newTestRequest(tb testing.TB, method message.RequestMethod, branch string) *message.Request {
	tb.Helper()
	via := message.Via{{
		Protocol: "SIP/2.0/UDP",
		Host:     "10.0.0.1",
		Port:     5060,
		Params:   map[string]string{"branch": branch},
	}}
	from := message.Address{DisplayName: "alice", URI: "sip:alice@example.com", Params: map[string]string{"tag": "fromtag"}}
	to := message.Address{DisplayName: "bob", URI: "sip:bob@example.com"}
	return message.NewRequest(method, "sip:bob@example.com", via, from, to, "call-1", message.CSeq{Sequence: 1, Method: method})
}

func newTestResponse(tb testing.TB, req *message.Request, status message.ResponseStatus) *message.Response {
	tb.Helper()
	to := req.To().WithTag("totag")
	return message.NewResponse(status, "", req.Via(), req.From(), to, req.CallID(), req.CSeq())
}

// fakeTransport is a [sip.ClientTransport] double that records every send
// and lets tests control whether it reports itself as reliable.
type fakeTransport struct {
	mu       sync.Mutex
	reliable bool
	sent     []*message.Request
	sendErr  error

	sentCh chan *message.Request
}

func newFakeTransport(reliable bool) *fakeTransport {
	return &fakeTransport{reliable: reliable, sentCh: make(chan *message.Request, 64)}
}

func (tp *fakeTransport) SendRequest(_ context.Context, req *message.Request, _ *sip.SendRequestOptions) error {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	if tp.sendErr != nil {
		return tp.sendErr
	}
	tp.sent = append(tp.sent, req)
	tp.sentCh <- req
	return nil
}

func (tp *fakeTransport) Reliable() bool { return tp.reliable }

func (tp *fakeTransport) waitSend(tb testing.TB, timeout time.Duration) *message.Request {
	tb.Helper()
	select {
	case req := <-tp.sentCh:
		return req
	case <-time.After(timeout):
		tb.Fatal("timed out waiting for transport.SendRequest")
		return nil
	}
}

func (tp *fakeTransport) sentCount() int {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return len(tp.sent)
}

// fakeCore is a [sip.ClientTransactionCore] double that records every
// callback invocation.
type fakeCore struct {
	mu sync.Mutex

	provisional []*message.Response
	final       []*message.Response
	transpErrs  []error
	timeouts    int

	terminated bool
	termNormal bool
	termCh     chan struct{}
}

func newFakeCore() *fakeCore {
	return &fakeCore{termCh: make(chan struct{})}
}

func (c *fakeCore) OnProvisionalResponse(_ context.Context, res *message.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.provisional = append(c.provisional, res)
}

func (c *fakeCore) OnResponse(_ context.Context, res *message.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.final = append(c.final, res)
}

func (c *fakeCore) OnTransportError(_ context.Context, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transpErrs = append(c.transpErrs, err)
}

func (c *fakeCore) OnTimeout(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeouts++
}

func (c *fakeCore) OnTerminated(_ context.Context, normal bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminated {
		return
	}
	c.terminated = true
	c.termNormal = normal
	close(c.termCh)
}

func (c *fakeCore) waitTerminated(tb testing.TB, timeout time.Duration) bool {
	tb.Helper()
	select {
	case <-c.termCh:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.termNormal
	case <-time.After(timeout):
		tb.Fatal("timed out waiting for core.OnTerminated")
		return false
	}
}

func (c *fakeCore) finalCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.final)
}

func (c *fakeCore) provisionalCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.provisional)
}

func (c *fakeCore) timeoutCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeouts
}

func waitForState(tb testing.TB, tx sip.ClientTransaction, want sip.TransactionState, timeout time.Duration) {
	tb.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if tx.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	tb.Fatalf("transaction state = %q, want %q", tx.State(), want)
}
