// Package api defines the transport-neutral records exchanged between the HTTP
// adapter and the gateway operations. Every operation takes a Request and
// returns a Response; nothing here knows about cookies or routing.
package api
