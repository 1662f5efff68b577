// Package filetransfer drives the offer/accept/chunk/ack/done state
// machine for both senders and receivers, in a DM or fanned out pairwise
// to a room exactly like any other group message.
package filetransfer
