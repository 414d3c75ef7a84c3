//go:build !(linux || freebsd || openbsd || netbsd || dragonfly || darwin)

package process

import (
	"os"
	"os/exec"
)

func setProcessGroup(*exec.Cmd) {}

func signalGroup(p *os.Process, sig os.Signal) error {
	return p.Signal(sig)
}
