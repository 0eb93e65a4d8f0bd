// Package pts defines the control surface of the PTS test-execution engine
// as seen by the bridge: the Engine interface, the two native notification
// callbacks the engine invokes while a test case runs, the HRESULT-style
// error values it reports, and a registry of engine drivers.
package pts
