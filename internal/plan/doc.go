// Package plan implements the two-phase planner/executor handoff. A planner
// produces an ordered, immutable Plan per user request and stores it in the
// session; the executor consumes it exactly once, running steps in order and
// threading earlier outputs into later steps. An empty plan is an explicit
// refusal signal, distinct from the absence of a plan.
package plan
