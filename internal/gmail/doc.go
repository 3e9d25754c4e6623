// Package gmail is the Gmail side of mailwarm: a traced API client, the
// message codec and attachment file I/O.
//
// Received messages are converted into a Part tree (PartFromWire for API
// payloads, PartFromMIME for raw RFC 5322 input) and flattened by
// DecodeParts. Outgoing messages are built by Encode into the base64url raw
// form the send endpoint accepts.
package gmail
