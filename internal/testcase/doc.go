// Package testcase provides a ptscontrol.TestCase that tracks its own
// status from engine notifications and answers implicit sends from a
// static table or a downstream receiver.
package testcase
