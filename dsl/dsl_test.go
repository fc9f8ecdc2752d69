package dsl

import (
	"errors"
	"testing"

	"github.com/coatyio/choreo/ast"
	"github.com/coatyio/choreo/errs"
)

func TestParseStringPingPong(t *testing.T) {
	res := ParseString(`protocol PingPong {
  roles: Alice, Bob;
  Alice -> Bob: Ping();
  Bob -> Alice: Pong();
}
`)
	if res.Err != nil {
		t.Fatalf("unexpected parse error: %v", res.Err)
	}
	c := res.Choreography
	if c.Name != "PingPong" || len(c.Roles) != 2 {
		t.Fatalf("unexpected choreography: %+v", c)
	}
	want := ast.Send(c.Roles[0], c.Roles[1], ast.MessageType{Name: "Ping"},
		ast.Send(c.Roles[1], c.Roles[0], ast.MessageType{Name: "Pong"}, ast.EndNode))
	if c.Protocol.String() != want.String() {
		t.Fatalf("got %s, want %s", c.Protocol, want)
	}
}

func TestParseStringImplicitEnd(t *testing.T) {
	// No trailing "end;" statement: parseStmtList must synthesize EndNode
	// when it hits the closing '}'.
	res := ParseString(`protocol Solo {
  roles: A, B;
  A -> B: Hello();
}
`)
	if res.Err != nil {
		t.Fatalf("unexpected parse error: %v", res.Err)
	}
	if res.Choreography.Protocol.Cont.Kind != ast.KindEnd {
		t.Fatalf("expected an implicit End after the last Send, got %v", res.Choreography.Protocol.Cont.Kind)
	}
}

func TestParseStringExplicitEnd(t *testing.T) {
	res := ParseString(`protocol Solo {
  roles: A, B;
  A -> B: Hello();
  end;
}
`)
	if res.Err != nil {
		t.Fatalf("unexpected parse error: %v", res.Err)
	}
	if res.Choreography.Protocol.Cont.Kind != ast.KindEnd {
		t.Fatalf("expected an explicit End after the last Send, got %v", res.Choreography.Protocol.Cont.Kind)
	}
}

func TestParseStringAdderChoiceRecVar(t *testing.T) {
	res := ParseString(`protocol AdderChoice {
  roles: Client, Server;
  rec Loop {
    choice Client {
      Add => {
        Client -> Server: Num();
        Client -> Server: Num();
        Server -> Client: Sum();
        Loop;
      }
      Bye => {
        Client -> Server: Bye();
        Server -> Client: Ack();
      }
    }
  }
}
`)
	if res.Err != nil {
		t.Fatalf("unexpected parse error: %v", res.Err)
	}
	g := res.Choreography.Protocol
	if g.Kind != ast.KindRec || g.Var != "Loop" {
		t.Fatalf("expected a Rec node named Loop at the root, got %v", g.Kind)
	}
	if g.Body.Kind != ast.KindChoice || len(g.Body.Branches) != 2 {
		t.Fatalf("expected a 2-branch Choice inside the Rec, got %+v", g.Body)
	}
}

func TestParseStringParallel(t *testing.T) {
	res := ParseString(`protocol ParallelDistinct {
  roles: A, B, C;
  par {
    A -> B: M1();
  } and {
    A -> C: M2();
  }
}
`)
	if res.Err != nil {
		t.Fatalf("unexpected parse error: %v", res.Err)
	}
	g := res.Choreography.Protocol
	if g.Kind != ast.KindParallel || len(g.Children) != 2 {
		t.Fatalf("expected a 2-child Parallel node, got %+v", g)
	}
}

func TestParseStringDuplicateRole(t *testing.T) {
	res := ParseString(`protocol X {
  roles: A, A;
  A -> A: M();
}
`)
	assertCompileKind(t, res.Err, errs.DuplicateRole)
}

func TestParseStringUnknownRole(t *testing.T) {
	res := ParseString(`protocol X {
  roles: A, B;
  A -> C: M();
}
`)
	assertCompileKind(t, res.Err, errs.UnknownRole)
}

func TestParseStringUnboundVar(t *testing.T) {
	res := ParseString(`protocol X {
  roles: A, B;
  A -> B: M();
  Loop;
}
`)
	assertCompileKind(t, res.Err, errs.UnboundVar)
}

func TestParseStringSelfSendRejected(t *testing.T) {
	res := ParseString(`protocol X {
  roles: A, B;
  A -> A: M();
}
`)
	assertCompileKind(t, res.Err, errs.SyntaxError)
}

func TestParseStringCustomLoopRequiresDecider(t *testing.T) {
	res := ParseString(`protocol X {
  roles: A, B;
  loop(custom("done")) {
    A -> B: M();
  }
}
`)
	assertCompileKind(t, res.Err, errs.SyntaxError)
}

func TestParseStringCustomLoopWithDecider(t *testing.T) {
	res := ParseString(`protocol X {
  roles: A, B;
  loop(custom("done") by A) {
    A -> B: M();
  }
}
`)
	if res.Err != nil {
		t.Fatalf("unexpected parse error: %v", res.Err)
	}
	g := res.Choreography.Protocol
	if g.Kind != ast.KindLoop || g.Condition.Kind != ast.CondCustom {
		t.Fatalf("expected a custom-condition Loop, got %+v", g)
	}
	if g.Condition.Decider.Name != "A" {
		t.Fatalf("expected A as the custom condition's decider, got %q", g.Condition.Decider.Name)
	}
}

func assertCompileKind(t *testing.T, err error, kind errs.CompileKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected a CompileError of kind %v, got nil", kind)
	}
	var ce *errs.CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected a *errs.CompileError, got %T: %v", err, err)
	}
	if ce.Kind != kind {
		t.Fatalf("expected CompileError kind %v, got %v (%v)", kind, ce.Kind, ce)
	}
}
