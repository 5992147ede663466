// Package channel owns the structured message-passing transport.
//
// Ownership boundary:
// - Port contract (post with target-origin restriction)
// - in-process paired ports with serialized delivery
// - websocket ports for contexts in different processes
//
// Inbound messages are emitted as events.MessageEvent on an events sink
// with a MessageEvent value carrying the sender origin and a reply port.
package channel
