// Package router maps plan steps onto registered domain handlers. Dispatch is
// strict: a step targeting an unregistered domain produces an explicit
// out-of-scope result rather than falling through to a best-effort handler.
package router
