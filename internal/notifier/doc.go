// Package notifier announces newly scheduled broadcasts to a chat.
//
// It subscribes to provisioning events on the event bus and delivers one
// message per event through a transport.Sender, paced by a token bucket.
// Delivery is best effort: failures are retried a few times and then logged.
package notifier
