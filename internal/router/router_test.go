package router

import (
	"context"
	"testing"

	xerrors "NetBank-Chain/internal/errors"
)

func echoHandler(domain Domain) Handler {
	return HandlerFunc(func(_ context.Context, req Request) (Result, error) {
		return Result{Domain: domain, Summary: "handled " + req.Query}, nil
	})
}

func TestDispatchRegisteredDomain(t *testing.T) {
	r := New()
	if err := r.Register(DomainBanking, echoHandler(DomainBanking)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	result, err := r.Dispatch(context.Background(), Request{
		UserID: "alice01",
		Domain: DomainBanking,
		Query:  "list balances",
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if result.OutOfScope || result.Summary != "handled list balances" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestDispatchUnregisteredDomainIsOutOfScope(t *testing.T) {
	r := New()
	result, err := r.Dispatch(context.Background(), Request{Domain: DomainCards, Query: "q"})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !result.OutOfScope || result.Domain != DomainOutOfScope {
		t.Fatalf("unregistered domain must dispatch out-of-scope, got %+v", result)
	}
}

func TestDispatchOutOfScopeNeverHitsHandler(t *testing.T) {
	r := New()
	called := false
	_ = r.Register(DomainOutOfScope, HandlerFunc(func(_ context.Context, _ Request) (Result, error) {
		called = true
		return Result{}, nil
	}))
	result, err := r.Dispatch(context.Background(), Request{Domain: DomainOutOfScope})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if called || !result.OutOfScope {
		t.Fatalf("out-of-scope domain must short-circuit, called=%v result=%+v", called, result)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := New()
	if err := r.Register(DomainBanking, echoHandler(DomainBanking)); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	err := r.Register(DomainBanking, echoHandler(DomainBanking))
	if xerrors.CodeOf(err) != CodeDuplicateHandler {
		t.Fatalf("duplicate Register() code = %v, want %v", xerrors.CodeOf(err), CodeDuplicateHandler)
	}
	if err := r.Register(DomainCards, nil); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("nil handler must be rejected")
	}
}
