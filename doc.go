// Package hubclient is an asynchronous client for a hosted
// publish/subscribe messaging service. It exposes two operations:
// Publish, a fire-and-forget send to a named channel, and Subscribe,
// which hands back a Subscription that yields every message routed to
// a channel for as long as the caller keeps reading it.
//
// Under the hood a Client keeps at most one subscribe loop alive at a
// time, long-polling the service and multiplexing delivery across
// every channel any caller has subscribed to. The loop starts lazily
// on the first Subscribe call and winds down once the last handle is
// dropped.
package hubclient
