package project

import (
	"errors"
	"testing"

	"github.com/coatyio/choreo/ast"
	"github.com/coatyio/choreo/errs"
)

func TestProjectSendProjectsSenderAndReceiver(t *testing.T) {
	alice := ast.NewRole("Alice", 0)
	bob := ast.NewRole("Bob", 1)
	ping := ast.MessageType{Name: "Ping"}
	pong := ast.MessageType{Name: "Pong"}
	g := ast.Send(alice, bob, ping, ast.Send(bob, alice, pong, ast.EndNode))

	aliceLT, err := Project(g, alice)
	if err != nil {
		t.Fatalf("project Alice: %v", err)
	}
	want := ast.LSendNode(bob, ping, ast.LReceiveNode(bob, pong, ast.LEndNode))
	if !aliceLT.Equal(want) {
		t.Fatalf("Alice projection: got %s, want %s", aliceLT, want)
	}

	bobLT, err := Project(g, bob)
	if err != nil {
		t.Fatalf("project Bob: %v", err)
	}
	wantBob := ast.LReceiveNode(alice, ping, ast.LSendNode(alice, pong, ast.LEndNode))
	if !bobLT.Equal(wantBob) {
		t.Fatalf("Bob projection: got %s, want %s", bobLT, wantBob)
	}
}

func TestProjectSendSkipsUninvolvedRole(t *testing.T) {
	alice := ast.NewRole("Alice", 0)
	bob := ast.NewRole("Bob", 1)
	carol := ast.NewRole("Carol", 2)
	ping := ast.MessageType{Name: "Ping"}
	g := ast.Send(alice, bob, ping, ast.EndNode)

	carolLT, err := Project(g, carol)
	if err != nil {
		t.Fatalf("project Carol: %v", err)
	}
	if carolLT.Kind != ast.LEnd {
		t.Fatalf("expected an uninvolved role to project to End, got %s", carolLT)
	}
}

// adderChoiceProtocol builds spec.md §8 scenario 2's global protocol.
func adderChoiceProtocol() (client, server ast.Role, g *ast.Protocol) {
	client = ast.NewRole("Client", 0)
	server = ast.NewRole("Server", 1)
	num := ast.MessageType{Name: "Num"}
	sum := ast.MessageType{Name: "Sum"}
	bye := ast.MessageType{Name: "Bye"}
	ack := ast.MessageType{Name: "Ack"}

	addBranch := ast.Send(client, server, num,
		ast.Send(client, server, num,
			ast.Send(server, client, sum, ast.VarNode("Loop"))))
	byeBranch := ast.Send(client, server, bye,
		ast.Send(server, client, ack, ast.EndNode))

	choice := ast.Choice(client, ast.Branch{Label: "Add", Protocol: addBranch}, ast.Branch{Label: "Bye", Protocol: byeBranch})
	g = ast.RecNode("Loop", choice)
	return client, server, g
}

func TestProjectChoiceDeciderGetsSelect(t *testing.T) {
	client, _, g := adderChoiceProtocol()
	lt, err := Project(g, client)
	if err != nil {
		t.Fatalf("project Client: %v", err)
	}
	if lt.Kind != ast.LRec {
		t.Fatalf("expected Client's projection to be a Rec node, got %s", lt.Kind)
	}
	if lt.Body.Kind != ast.LSelect {
		t.Fatalf("expected the decider's projection to be Select, got %s", lt.Body.Kind)
	}
}

func TestProjectChoiceNonDeciderGetsBranch(t *testing.T) {
	_, server, g := adderChoiceProtocol()
	lt, err := Project(g, server)
	if err != nil {
		t.Fatalf("project Server: %v", err)
	}
	if lt.Kind != ast.LRec {
		t.Fatalf("expected Server's projection to be a Rec node, got %s", lt.Kind)
	}
	if lt.Body.Kind != ast.LBranch {
		t.Fatalf("expected the non-decider's projection to be Branch (all branches start with a Receive from the decider), got %s", lt.Body.Kind)
	}
	if len(lt.Body.Branches) != 2 {
		t.Fatalf("expected 2 branches, got %d", len(lt.Body.Branches))
	}
}

func TestProjectParallelDistinctSequentializesWithoutConflict(t *testing.T) {
	a := ast.NewRole("A", 0)
	b := ast.NewRole("B", 1)
	c := ast.NewRole("C", 2)
	m1 := ast.MessageType{Name: "M1"}
	m2 := ast.MessageType{Name: "M2"}
	g := ast.Parallel(ast.Send(a, b, m1, ast.EndNode), ast.Send(a, c, m2, ast.EndNode))

	aLT, err := Project(g, a)
	if err != nil {
		t.Fatalf("project A: %v", err)
	}
	// A's own projection contains both Sends regardless of order (A issues
	// both), sequentialized by declaration order.
	want := ast.LSendNode(b, m1, ast.LSendNode(c, m2, ast.LEndNode))
	if !aLT.Equal(want) {
		t.Fatalf("A projection: got %s, want %s", aLT, want)
	}

	bLT, err := Project(g, b)
	if err != nil {
		t.Fatalf("project B: %v", err)
	}
	if !bLT.Equal(ast.LReceiveNode(a, m1, ast.LEndNode)) {
		t.Fatalf("B projection: got %s", bLT)
	}
}

func TestProjectParallelConflictIsRejected(t *testing.T) {
	a := ast.NewRole("A", 0)
	b := ast.NewRole("B", 1)
	m1 := ast.MessageType{Name: "M1"}
	m2 := ast.MessageType{Name: "M2"}
	// Both branches send to B: A's projection observably collides on B.
	g := ast.Parallel(ast.Send(a, b, m1, ast.EndNode), ast.Send(a, b, m2, ast.EndNode))

	_, err := Project(g, a)
	if err == nil {
		t.Fatalf("expected an InconsistentParallel error, got nil")
	}
	var ce *errs.CompileError
	if !errors.As(err, &ce) || ce.Kind != errs.InconsistentParallel {
		t.Fatalf("expected a CompileError of kind InconsistentParallel, got %v", err)
	}
}

func TestProjectAllIsConsistentAcrossRoles(t *testing.T) {
	client, server, g := adderChoiceProtocol()
	c := &ast.Choreography{Name: "AdderChoice", Roles: []ast.Role{client, server}, Protocol: g}

	locals, err := ProjectAll(c)
	if err != nil {
		t.Fatalf("ProjectAll: %v", err)
	}
	if len(locals) != 2 {
		t.Fatalf("expected 2 local types, got %d", len(locals))
	}

	again, err := Project(g, client)
	if err != nil {
		t.Fatalf("project Client again: %v", err)
	}
	if !locals["Client"].Equal(again) {
		t.Fatalf("projection is not deterministic: %s != %s", locals["Client"], again)
	}
}
