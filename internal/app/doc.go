// Package app wires the chat CLI's dependency graph: file-based stores,
// the relay transport, and the identity/session/group/file/voice
// services, built from Config and exposed via Wire for commands to use.
package app
