// Package ptscontrol is the bridge between automation clients and the PTS
// engine. Control owns the engine connection and exposes its workspace,
// project, test case, PICS and PIXIT operations; LogRelay and
// ImplicitSendRelay turn the engine's synchronous notifications into calls on
// whichever Receiver is bound for the current test case run.
package ptscontrol
