// Package relay implements the blind WebSocket relay described in
// spec.md §4.4: a server that holds only in-memory session and room
// membership maps and forwards opaque envelopes verbatim, plus the client
// side transport that dials it and reconnects with backoff.
//
// The relay never writes to disk and never logs payload content; its zap
// log fields are limited to routing metadata (session id, room id,
// envelope kind).
package relay
