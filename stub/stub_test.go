package stub

import (
	"context"
	"errors"
	"testing"

	"github.com/coatyio/choreo/ast"
	"github.com/coatyio/choreo/errs"
	"github.com/coatyio/choreo/runtime"
	"github.com/coatyio/choreo/transport"
)

func TestNewSessionRejectsNilLocalType(t *testing.T) {
	ep := runtime.NewEndpoint(ast.NewRole("Alice", 0))
	_, err := NewSession(ast.NewRole("Alice", 0), ep, nil)
	if err == nil {
		t.Fatalf("expected NewSession to reject a nil local type")
	}
}

func TestSessionRunIsSingleShot(t *testing.T) {
	ep := runtime.NewEndpoint(ast.NewRole("Alice", 0))
	sess, err := NewSession(ast.NewRole("Alice", 0), ep, ast.LEndNode)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	h := runtime.NewBaseHandler()

	ran := 0
	fn := func(hd *Handle) error { ran++; return nil }

	if err := sess.Run(context.Background(), h, fn); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	err = sess.Run(context.Background(), h, fn)
	var re *errs.RuntimeError
	if !errors.As(err, &re) || re.Kind != errs.ProtocolViolation {
		t.Fatalf("expected a second Run to fail ProtocolViolation, got %v", err)
	}
	if ran != 1 {
		t.Fatalf("expected fn to run exactly once, got %d", ran)
	}
}

func TestHandleSendRecvDrivesPingPong(t *testing.T) {
	aliceRole := ast.NewRole("Alice", 0)
	bobRole := ast.NewRole("Bob", 1)
	ping := ast.MessageType{Name: "Ping"}
	pong := ast.MessageType{Name: "Pong"}

	a, b := transport.NewMemoryPair()
	aliceEp := runtime.NewEndpoint(aliceRole)
	bobEp := runtime.NewEndpoint(bobRole)
	aliceEp.Bind(bobRole, a)
	bobEp.Bind(aliceRole, b)

	aliceLT := ast.LSendNode(bobRole, ping, ast.LReceiveNode(bobRole, pong, ast.LEndNode))
	bobLT := ast.LReceiveNode(aliceRole, ping, ast.LSendNode(aliceRole, pong, ast.LEndNode))

	aliceSess, err := NewSession(aliceRole, aliceEp, aliceLT)
	if err != nil {
		t.Fatalf("NewSession Alice: %v", err)
	}
	bobSess, err := NewSession(bobRole, bobEp, bobLT)
	if err != nil {
		t.Fatalf("NewSession Bob: %v", err)
	}
	h := runtime.NewBaseHandler()

	errCh := make(chan error, 2)
	go func() {
		errCh <- aliceSess.Run(context.Background(), h, func(hd *Handle) error {
			next, err := hd.Send("hi")
			if err != nil {
				return err
			}
			_, next, err = next.Recv()
			if err != nil {
				return err
			}
			if !next.Done() {
				return errors.New("expected Alice to be Done after the round trip")
			}
			return nil
		})
	}()
	go func() {
		errCh <- bobSess.Run(context.Background(), h, func(hd *Handle) error {
			_, next, err := hd.Recv()
			if err != nil {
				return err
			}
			next, err = next.Send("yo")
			if err != nil {
				return err
			}
			if !next.Done() {
				return errors.New("expected Bob to be Done after the round trip")
			}
			return nil
		})
	}()

	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil {
			t.Fatalf("Run: %v", err)
		}
	}
}

func TestHandleSendWrongHeadIsProtocolViolation(t *testing.T) {
	aliceRole := ast.NewRole("Alice", 0)
	ep := runtime.NewEndpoint(aliceRole)
	sess, err := NewSession(aliceRole, ep, ast.LEndNode)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	h := runtime.NewBaseHandler()

	err = sess.Run(context.Background(), h, func(hd *Handle) error {
		_, err := hd.Send("oops")
		return err
	})
	var re *errs.RuntimeError
	if !errors.As(err, &re) || re.Kind != errs.ProtocolViolation {
		t.Fatalf("expected Send on an End-headed local type to fail ProtocolViolation, got %v", err)
	}
}

func TestHandleLocalChoice(t *testing.T) {
	aliceRole := ast.NewRole("Alice", 0)
	ep := runtime.NewEndpoint(aliceRole)

	lt := ast.LLocalChoiceNode(
		ast.LBranchCase{Label: "X", Type: ast.LEndNode},
		ast.LBranchCase{Label: "Y", Type: ast.LEndNode},
	)
	sess, err := NewSession(aliceRole, ep, lt)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	h := runtime.NewBaseHandler()

	err = sess.Run(context.Background(), h, func(hd *Handle) error {
		next, err := hd.LocalChoice("Y")
		if err != nil {
			return err
		}
		if !next.Done() {
			return errors.New("expected Done after choosing a branch whose continuation is End")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestLoopHandleCondCount(t *testing.T) {
	aliceRole := ast.NewRole("Alice", 0)
	ep := runtime.NewEndpoint(aliceRole)
	lt := ast.LLoopNode(ast.Condition{Kind: ast.CondCount, Count: 3}, ast.LEndNode)
	sess, err := NewSession(aliceRole, ep, lt)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	h := runtime.NewBaseHandler()

	iterations := 0
	err = sess.Run(context.Background(), h, func(hd *Handle) error {
		lh, ok := hd.EnterLoop()
		if !ok {
			return errors.New("expected EnterLoop to succeed on a Loop-headed local type")
		}
		for lh.ShouldContinue() {
			iterations++
			lh.Advance()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if iterations != 3 {
		t.Fatalf("expected 3 iterations for CondCount{Count:3}, got %d", iterations)
	}
}
