// Package store implements file-based persistence for WSP: the encrypted
// identity file, the optional local chat history log, and locally-known
// room membership. Nothing in this package talks to the relay or holds a
// network connection; it is pure disk I/O behind the domain.IdentityStore,
// domain.HistoryStore, and domain.RoomStore interfaces.
package store
