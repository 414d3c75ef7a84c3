//go:build linux || freebsd || openbsd || netbsd || dragonfly || darwin

package process

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalGroup(p *os.Process, sig os.Signal) error {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return p.Signal(sig)
	}
	if err := unix.Kill(-p.Pid, unix.Signal(s)); err != nil {
		return p.Signal(sig)
	}
	return nil
}
