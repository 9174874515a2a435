// Package handler hosts the per-domain request handlers registered with the
// router. Each vertical gets a narrowed read-only view of the repository; the
// cross-domain money handler composes only the other handlers' public results
// so no vertical's data boundary is bypassed.
package handler
