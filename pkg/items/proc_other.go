//go:build !unix

package items

import "os/exec"

// killGroupOnCancel keeps the default cancellation, which kills only the
// shell. WaitDelay bounds the wait on pipes its children still hold.
func killGroupOnCancel(*exec.Cmd) {}
