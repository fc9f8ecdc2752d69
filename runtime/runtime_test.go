package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coatyio/choreo/ast"
	"github.com/coatyio/choreo/effect"
	"github.com/coatyio/choreo/errs"
	"github.com/coatyio/choreo/transport"
)

func pairedEndpoints(t *testing.T) (alice, bob *Endpoint) {
	t.Helper()
	aliceRole := ast.NewRole("Alice", 0)
	bobRole := ast.NewRole("Bob", 1)
	a, b := transport.NewMemoryPair()
	alice = NewEndpoint(aliceRole)
	bob = NewEndpoint(bobRole)
	alice.Bind(bobRole, a)
	bob.Bind(aliceRole, b)
	return alice, bob
}

func TestEndpointBoundPeerMetadataStartsIdle(t *testing.T) {
	alice, _ := pairedEndpoints(t)
	bob := ast.NewRole("Bob", 1)

	md := alice.Metadata(bob)
	if md.Snapshot().StateDescription != "idle" {
		t.Fatalf("expected freshly bound peer metadata to start idle, got %+v", md.Snapshot())
	}
}

func TestEndpointCloseAllChannelsIsIdempotent(t *testing.T) {
	alice, _ := pairedEndpoints(t)
	alice.CloseAllChannels()
	alice.CloseAllChannels() // must not panic or block
}

func TestBaseHandlerSendRecvRoundTrip(t *testing.T) {
	alice, bob := pairedEndpoints(t)
	h := NewBaseHandler()
	ctx := context.Background()
	ping := ast.MessageType{Name: "Ping"}

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.Send(ctx, alice, ast.NewRole("Bob", 1), ping, "hello")
	}()

	payload, err := h.Recv(ctx, bob, ast.NewRole("Alice", 0), ping)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if payload != "hello" {
		t.Fatalf("expected payload %q, got %v", "hello", payload)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Send: %v", err)
	}

	md := alice.Metadata(ast.NewRole("Bob", 1)).Snapshot()
	if md.OperationCount != 1 {
		t.Fatalf("expected Alice's operation_count to be 1 after one successful Send, got %d", md.OperationCount)
	}
}

func TestBaseHandlerRecvWrongMessageIsProtocolViolation(t *testing.T) {
	alice, bob := pairedEndpoints(t)
	h := NewBaseHandler()
	ctx := context.Background()

	go func() {
		h.Send(ctx, alice, ast.NewRole("Bob", 1), ast.MessageType{Name: "Ping"}, nil)
	}()

	_, err := h.Recv(ctx, bob, ast.NewRole("Alice", 0), ast.MessageType{Name: "Pong"})
	var re *errs.RuntimeError
	if !errors.As(err, &re) || re.Kind != errs.ProtocolViolation {
		t.Fatalf("expected a ProtocolViolation RuntimeError, got %v", err)
	}
}

func TestBaseHandlerSendNoChannel(t *testing.T) {
	alice := NewEndpoint(ast.NewRole("Alice", 0))
	h := NewBaseHandler()
	err := h.Send(context.Background(), alice, ast.NewRole("Carol", 2), ast.MessageType{Name: "Ping"}, nil)

	var re *errs.RuntimeError
	if !errors.As(err, &re) || re.Kind != errs.NoChannel {
		t.Fatalf("expected a NoChannel RuntimeError, got %v", err)
	}
}

func TestBaseHandlerWithTimeoutFires(t *testing.T) {
	alice, _ := pairedEndpoints(t)
	h := NewBaseHandler()

	err := h.WithTimeout(context.Background(), alice, ast.NewRole("Bob", 1), 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	var re *errs.RuntimeError
	if !errors.As(err, &re) || re.Kind != errs.Timeout {
		t.Fatalf("expected a Timeout RuntimeError, got %v", err)
	}

	// The channel to Bob must be poisoned (closed) after the timeout fires.
	ch, _ := alice.Channel(ast.NewRole("Bob", 1))
	if sendErr := ch.Send(transport.FrameData, []byte("x")); !errors.Is(sendErr, transport.ErrClosed) {
		t.Fatalf("expected the timed-out channel to be closed, got %v", sendErr)
	}
}

func TestBaseHandlerChooseOffer(t *testing.T) {
	alice, bob := pairedEndpoints(t)
	h := NewBaseHandler()
	ctx := context.Background()

	go func() {
		h.Choose(ctx, alice, ast.NewRole("Bob", 1), ast.Label("Add"))
	}()

	label, err := h.Offer(ctx, bob, ast.NewRole("Alice", 0))
	if err != nil {
		t.Fatalf("Offer: %v", err)
	}
	if label != "Add" {
		t.Fatalf("expected label Add, got %q", label)
	}
}

func TestInterpretPingPong(t *testing.T) {
	alice, bob := pairedEndpoints(t)
	h := NewBaseHandler()
	ping := ast.MessageType{Name: "Ping"}
	pong := ast.MessageType{Name: "Pong"}

	aliceProg := effect.NewBuilder().Send(ast.NewRole("Bob", 1), ping, "hi").Recv(ast.NewRole("Bob", 1), pong).End().Build()
	bobProg := effect.NewBuilder().Recv(ast.NewRole("Alice", 0), ping).Send(ast.NewRole("Alice", 0), pong, "yo").End().Build()

	errCh := make(chan error, 2)
	go func() { errCh <- Interpret(context.Background(), h, alice, aliceProg) }()
	go func() { errCh <- Interpret(context.Background(), h, bob, bobProg) }()

	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil {
			t.Fatalf("Interpret: %v", err)
		}
	}

	md := alice.Metadata(ast.NewRole("Bob", 1)).Snapshot()
	if !md.IsComplete {
		t.Fatalf("expected Alice's session with Bob to be complete after reaching End")
	}
}

func TestInterpretConsumedProgramFails(t *testing.T) {
	alice, _ := pairedEndpoints(t)
	h := NewBaseHandler()
	prog := effect.NewBuilder().End().Build()

	if err := Interpret(context.Background(), h, alice, prog); err != nil {
		t.Fatalf("first Interpret: %v", err)
	}
	err := Interpret(context.Background(), h, alice, prog)
	var re *errs.RuntimeError
	if !errors.As(err, &re) || re.Kind != errs.ProtocolViolation {
		t.Fatalf("expected re-interpreting a consumed Program to fail ProtocolViolation, got %v", err)
	}
}

func TestRunAllCancelsSiblingsOnError(t *testing.T) {
	boom := errors.New("boom")
	err := RunAll(context.Background(),
		func(ctx context.Context) error { return boom },
		func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	)
	if !errors.Is(err, boom) {
		t.Fatalf("expected RunAll to surface the first error, got %v", err)
	}
}
