// Package inbound routes gateway notifications to the processor registered
// for their provider and serves them over HTTP.
package inbound
