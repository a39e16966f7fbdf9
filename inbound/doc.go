// Package inbound exposes the payment notification endpoint over HTTP.
//
// Every processed notification is acknowledged with 200 and an empty body,
// including ones rejected as invalid. Only fatal failures reply 500 so the
// provider redelivers.
package inbound
