// Package callback carries receiver notifications between the bridge and a
// remote automation client.
//
// The bridge side holds a Client, which implements ptscontrol.Receiver by
// forwarding each call over a connection. The automation client runs a
// Server that dispatches incoming calls to a local Receiver. Frames are a
// 4-byte big-endian length prefix followed by a JSON payload.
package callback
