// Package servolog records command completions to CSV files, one scoped
// logging session at a time.
package servolog
