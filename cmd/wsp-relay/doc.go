// Command wsp-relay runs the blind relay server: a WebSocket hub that
// routes sealed Envelopes between sessions and rooms without ever storing
// or inspecting their contents. Listen address and log level come from an
// optional config file plus WSP_-prefixed environment variables; see
// internal/relay.LoadConfig.
package main
