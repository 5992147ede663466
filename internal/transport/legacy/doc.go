// Package legacy delivers calls without a message channel by navigating one
// hidden frame per candidate host origin to a receiver address whose
// fragment carries the encoded envelope. Delivery is fire-and-forget.
package legacy
