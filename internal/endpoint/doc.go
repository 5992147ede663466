// Package endpoint stores named call handlers and dispatches envelopes to
// them. Dispatch never panics: missing endpoints and handler failures are
// reported as results and logged at the Dispatcher boundary.
package endpoint
