// Package webhooks accepts asynchronous gateway notifications: SimplePay IPN
// calls, Stripe events and ePayco confirmations. Each notification is
// verified, deduped by delivery id and turned into a recorded transaction.
//
// Delivery processing is driven by a claim lifecycle:
// pending/retry_ready -> processing -> processed|dead.
// A failed handler leaves the delivery retry_ready so the gateway's own
// redelivery is processed again instead of being deduped.
package webhooks
