// Package orchestrator glues the turn pipeline together: session load,
// identity gate, planning, execution through the router, transfer saga
// advancement, and session persistence. It owns no domain logic of its own;
// every capability is an injected dependency.
package orchestrator
