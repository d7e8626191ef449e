/*
Package protocol defines the messages exchanged between the coordinator, the
bridge and the page realm.

Every message carries an action discriminator and an optional payload under
data. Channel A (coordinator <-> bridge) wraps messages in sequenced Frames;
the sequence numbers are owned by the relay and never reach handlers.
Channel B (bridge <-> page) wraps them in Envelopes tagged with the sender
origin and, for request/response pairs, a correlation id.

Each frame or envelope is one of three kinds:

	request   expects exactly one response
	push      fire-and-forget, never answered
	response  settles an earlier request
*/
package protocol
