// Package runner executes test case runs asynchronously for the HTTP API.
// Each run binds a testcase.TestCase to the control facade, records its
// log events, and fans them out to live subscribers through a LogBroker.
// Run records live in memory for the lifetime of the process.
package runner
