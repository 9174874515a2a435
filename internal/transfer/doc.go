// Package transfer implements the multi-turn funds-transfer state machine.
// Every capture and confirmation stage suspends awaiting caller input, with
// all intermediate state held in the session's transfer scratch; nothing is
// persisted before the single ledger commit, so an abort at any stage needs
// no rollback. Committed transfers are announced through the event publisher.
package transfer
