// Package session tracks the ephemeral session ids callers use to correlate requests.
package session
