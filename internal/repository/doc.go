// Package repository defines the per-user banking data model (accounts,
// payees, transactions, cards, holdings) and the storage interfaces consumed
// by the orchestration core. It ships a JSON-file backend mirroring the
// production data layout and a MySQL backend; both implement the Ledger
// commit contract that keeps transaction and balance writes atomic.
package repository
