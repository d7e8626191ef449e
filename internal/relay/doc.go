// Package relay moves protocol messages between isolated contexts.
//
// Conn is Channel A: a framed request/response/push connection over any
// Transport (an in-memory pipe or a websocket). Correlation is internal to
// Conn, so handlers see plain messages and return plain responses.
//
// Window is Channel B: an asynchronous broadcast bus with postMessage
// semantics. Posted envelopes are serialised, queued and delivered to every
// listener in post order on one dispatch goroutine. Caller layers
// correlation ids and a Pending deadline table on top of a Window.
//
// Neither side ever stops on a malformed message: it is logged, counted and
// dropped.
package relay
