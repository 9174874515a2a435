// Package event publishes committed-transfer notifications. Publishing is
// fire-and-forget relative to the ledger commit: a failed publish is logged,
// never rolled back into the transfer result. The RabbitMQ publisher serves
// deployments with downstream consumers; the memory publisher serves tests
// and single-node runs.
package event
