// Package session holds the per-conversation mutable state: the claimed
// identity, the active plan handed from planner to executor, and the funds
// transfer scratch fields that survive across turns. State lives behind a
// Store interface with in-memory and Redis backends; transfer scratch decays
// after an idle period while the session itself stays alive.
package session
