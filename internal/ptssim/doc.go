// Package ptssim is a scripted stand-in for the PTS engine.
//
// Workspace files (.pqw6) are YAML documents listing projects, their PICS
// and PIXIT defaults, and per test case a script of log events, implicit
// send requests, waits and a verdict. OpenWorkspace loads a file into a
// SQLite state store; RunTestCase plays the script back through the
// registered callbacks the way the real engine delivers notifications.
package ptssim
