// Package session owns the Peer table: shared-secret derivation, AEAD
// nonce discipline, presence beaconing, nickname propagation, and the
// network dispatch loop that decrypts inbound envelopes and routes their
// inner messages to the group, file-transfer, and voice managers.
package session
