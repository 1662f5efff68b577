// Package crypto exposes the minimal primitives used by WSP.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie-Hellman (GenerateX25519, DH)
//   - BLAKE3 session-key derivation over a DH shared point (DeriveSessionKey,
//     SharedSecret)
//   - ChaCha20-Poly1305 AEAD with the direction/counter nonce discipline
//     (Seal, Open)
//   - Safety-number computation for out-of-band verification (SafetyNumber)
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//   - Short public-key fingerprints for display (Fingerprint)
//
// # Notes
//
// All functions take and return fixed-size array types defined in
// internal/domain to avoid accidental reallocations. Callers should treat
// returned secrets as sensitive and rely on Wipe when practical to reduce
// lifetime in memory.
package crypto
