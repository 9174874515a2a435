// Package identity implements the gate that every request must clear before
// any domain action runs. A claimed user identifier is checked for shape and
// then against the data layer; until the gate confirms, the only permitted
// response is a request for identity. Confirmation is recorded once per
// session and never re-asked.
package identity
