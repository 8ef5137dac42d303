// Package store persists the tool invocation log in SQLite.
package store
