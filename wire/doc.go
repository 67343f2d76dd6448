// Package wire implements the gym TCP protocol codec: pure encoders for every
// client intent and a decoder that extracts typed values from server replies.
//
// Messages are JSON objects, one per exchange, paired with replies by order.
// Encoders return the message body only; framing and compression belong to
// the transport.
//
//	{"env":{"name":"CartPole-v0"}}          -> {"instance":"1a2b3c4d"}
//	{"env":{"action":"observationspace"}}   -> {"info":{"name":"Box","shape":[4],...}}
//	{"env":{"action":"reset"}}              -> {"observation":[...]}
//	{"step":{"action":1,"render":0}}        -> {"observation":[...],"reward":1,"done":false,"info":{}}
//
// Decoding goes through Parse, which validates the reply once and returns a
// Response whose accessors read a fixed set of named fields. Accessors never
// default a missing or mistyped field; they fail with a MalformedResponseError
// naming it.
package wire
