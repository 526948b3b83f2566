//go:build !linux

package legion

// setProcessTitle is a no-op off Linux: PR_SET_NAME has no portable
// equivalent, and legion otherwise only targets Unix-like hosts (the
// fork/signal model the rest of the package relies on is POSIX-specific
// anyway).
func setProcessTitle(title string) {}
