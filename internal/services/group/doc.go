// Package group manages room creation, invites, and membership, and
// performs the pairwise fan-out that keeps a room's traffic end-to-end
// encrypted without a shared group key: every RoomCipher payload is sealed
// once per recipient with that recipient's own pairwise secret, so the
// relay's room-membership broadcast delivers N-1 ciphertexts of which each
// recipient can open exactly one.
package group
