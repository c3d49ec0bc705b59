// Package colors holds the ANSI codes used by the run banner, the node
// progress lines and the lock wait messages.
package colors

const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Dim     = "\033[2m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
)

// Paint wraps s in code and a trailing reset.
func Paint(code, s string) string {
	return code + s + Reset
}
