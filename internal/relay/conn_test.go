package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/modbridge/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ping(t *testing.T) protocol.Message {
	t.Helper()
	msg, err := protocol.NewMessage(protocol.ActionPing, nil)
	require.NoError(t, err)
	return msg
}

var nopHandler = HandlerFunc(func(ctx context.Context, msg protocol.Message) *protocol.Response { return nil })

// servePair connects two Conns over a pipe and serves both.
func servePair(t *testing.T, server Handler) (*Conn, *Conn) {
	t.Helper()
	a, b := NewPipe()
	client := NewConn(a, nil, nil)
	srv := NewConn(b, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); srv.Serve(ctx, server) }()
	go func() { defer wg.Done(); client.Serve(ctx, nopHandler) }()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	return client, srv
}

func TestConnRequestResponse(t *testing.T) {
	client, _ := servePair(t, HandlerFunc(func(ctx context.Context, msg protocol.Message) *protocol.Response {
		var req protocol.GetScriptRequest
		if err := msg.Decode(&req); err != nil {
			return protocol.Fail(err)
		}
		return protocol.OK(protocol.GetScriptResult{ScriptContent: "src:" + req.Hash})
	}))

	msg, err := protocol.NewMessage(protocol.ActionGetScript, protocol.GetScriptRequest{Hash: "abc"})
	require.NoError(t, err)

	resp, err := client.Request(context.Background(), msg)
	require.NoError(t, err)
	require.True(t, resp.Success)

	var res protocol.GetScriptResult
	require.NoError(t, resp.Decode(&res))
	assert.Equal(t, "src:abc", res.ScriptContent)
}

func TestConnNilResponseIsSuccess(t *testing.T) {
	client, _ := servePair(t, nopHandler)

	resp, err := client.Request(context.Background(), ping(t))
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestConnPushesArriveInOrder(t *testing.T) {
	const n = 50
	got := make(chan int, n)
	client, _ := servePair(t, HandlerFunc(func(ctx context.Context, msg protocol.Message) *protocol.Response {
		var req protocol.RegistryInstalled
		if err := msg.Decode(&req); err == nil {
			got <- int(req.Epoch)
		}
		return nil
	}))

	for i := 1; i <= n; i++ {
		msg, err := protocol.NewMessage(protocol.ActionRegistryInstalled, protocol.RegistryInstalled{Epoch: uint64(i)})
		require.NoError(t, err)
		require.NoError(t, client.Push(context.Background(), msg))
	}

	for i := 1; i <= n; i++ {
		select {
		case epoch := <-got:
			assert.Equal(t, i, epoch)
		case <-time.After(2 * time.Second):
			t.Fatalf("push %d not delivered", i)
		}
	}
}

func TestConnRequestsAreConcurrent(t *testing.T) {
	release := make(chan struct{})
	client, _ := servePair(t, HandlerFunc(func(ctx context.Context, msg protocol.Message) *protocol.Response {
		if msg.Action == protocol.ActionGetLocale {
			<-release
		}
		return protocol.OK(nil)
	}))

	slowDone := make(chan error, 1)
	go func() {
		_, err := client.Request(context.Background(), protocol.Message{Action: protocol.ActionGetLocale})
		slowDone <- err
	}()

	resp, err := client.Request(context.Background(), ping(t))
	require.NoError(t, err)
	assert.True(t, resp.Success)

	close(release)
	require.NoError(t, <-slowDone)
}

func TestConnPanickingHandlerFails(t *testing.T) {
	client, _ := servePair(t, HandlerFunc(func(ctx context.Context, msg protocol.Message) *protocol.Response {
		panic("boom")
	}))

	resp, err := client.Request(context.Background(), ping(t))
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "ping")
}

func TestConnDropsMalformedAndNeverAnswersPushes(t *testing.T) {
	raw, end := NewPipe()
	srv := NewConn(end, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx, nopHandler)

	require.NoError(t, raw.Send(ctx, []byte("not json")))
	require.NoError(t, raw.Send(ctx, []byte(`{"seq":1,"kind":"push","message":{"action":"loadScripts"}}`)))
	require.NoError(t, raw.Send(ctx, []byte(`{"seq":2,"kind":"request","message":{"action":"ping"}}`)))

	recvCtx, recvCancel := context.WithTimeout(ctx, 2*time.Second)
	defer recvCancel()
	reply, err := raw.Receive(recvCtx)
	require.NoError(t, err)

	frame, err := protocol.DecodeFrame(reply)
	require.NoError(t, err)
	assert.Equal(t, protocol.KindResponse, frame.Kind)
	assert.Equal(t, uint64(2), frame.ReplyTo, "the push is never answered")
	assert.True(t, frame.Response.Success)
}

func TestConnRequestFailsWhenClosed(t *testing.T) {
	a, _ := NewPipe()
	conn := NewConn(a, nil, nil)
	require.NoError(t, conn.Close())

	_, err := conn.Request(context.Background(), ping(t))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, conn.Push(context.Background(), ping(t)), ErrClosed)
}

func TestConnRequestUnblocksOnPeerClose(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	client, srv := servePair(t, HandlerFunc(func(ctx context.Context, msg protocol.Message) *protocol.Response {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	}))

	done := make(chan error, 1)
	go func() {
		_, err := client.Request(context.Background(), ping(t))
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	srv.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("request still waiting after close")
	}
}
