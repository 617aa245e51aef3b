//go:build !unix

package process

import "os/exec"

// setProcessGroup keeps the exec.CommandContext default, which kills the child only.
func setProcessGroup(_ *exec.Cmd) {}
