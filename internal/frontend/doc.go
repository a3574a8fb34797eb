// Package frontend drives a role at a fixed cadence and shows its traffic.
//
// The tick loop is the only goroutine that touches the role. Console input
// and WebSocket messages only request a trigger; the loop performs it on its
// next iteration. Views (console, WebSocket clients, /status) receive the
// new log lines and a snapshot published after every tick.
package frontend
