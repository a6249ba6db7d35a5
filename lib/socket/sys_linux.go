//go:build linux

package socket

import (
	"errors"
	"net"
	"net/netip"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// defaultSys is the kernel backed syscall table
var defaultSys sysCalls = unixSys{}

// unixSys implements sysCalls with golang.org/x/sys/unix
type unixSys struct{}

func (unixSys) socket(family Family) (int, error) {
	domain := unix.AF_INET
	if family == FamilyIPv6 {
		domain = unix.AF_INET6
	}
	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, os.NewSyscallError("socket", err)
	}
	return fd, nil
}

func (unixSys) connect(fd int, addr netip.AddrPort) error {
	if err := unix.Connect(fd, toSockaddr(addr)); err != nil {
		return os.NewSyscallError("connect", err)
	}
	return nil
}

func (unixSys) close(fd int) error {
	return os.NewSyscallError("close", unix.Close(fd))
}

func (unixSys) setOpt(fd int, opt sockOpt, value int) error {
	level, name := unix.SOL_SOCKET, 0
	switch opt {
	case optSendBuffer:
		name = unix.SO_SNDBUF
	case optRecvBuffer:
		name = unix.SO_RCVBUF
	case optOOBInline:
		name = unix.SO_OOBINLINE
	case optKeepAlive:
		name = unix.SO_KEEPALIVE
	case optNoDelay:
		level, name = unix.IPPROTO_TCP, unix.TCP_NODELAY
	case optKeepIdle:
		level, name = unix.IPPROTO_TCP, unix.TCP_KEEPIDLE
	case optKeepInterval:
		level, name = unix.IPPROTO_TCP, unix.TCP_KEEPINTVL
	default:
		return os.NewSyscallError("setsockopt", unix.ENOPROTOOPT)
	}
	return os.NewSyscallError("setsockopt", unix.SetsockoptInt(fd, level, name, value))
}

func (unixSys) setNonblock(fd int) error {
	return os.NewSyscallError("fcntl", unix.SetNonblock(fd, true))
}

func (unixSys) socketError(fd int) error {
	v, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return os.NewSyscallError("getsockopt", err)
	}
	if v != 0 {
		return os.NewSyscallError("connect", unix.Errno(v))
	}
	return nil
}

func (unixSys) poll(fd int, read bool, timeoutMs int) (bool, error) {
	events := int16(unix.POLLOUT)
	if read {
		events = unix.POLLIN
	}
	fds := []unix.PollFd{{Fd: int32(fd), Events: events}}

	n, err := unix.Poll(fds, timeoutMs)
	if err != nil {
		return false, os.NewSyscallError("poll", err)
	}
	if n == 0 {
		return false, nil
	}
	if fds[0].Revents&unix.POLLNVAL != 0 {
		return false, os.NewSyscallError("poll", unix.EBADF)
	}

	// POLLERR and POLLHUP count as ready: the following call reports the actual error
	return true, nil
}

func (unixSys) send(fd int, p []byte) (int, error) {
	n, err := unix.SendmsgN(fd, p, nil, nil, unix.MSG_NOSIGNAL)
	if err != nil {
		return 0, os.NewSyscallError("send", err)
	}
	return n, nil
}

func (unixSys) recv(fd int, p []byte) (int, error) {
	n, _, err := unix.Recvfrom(fd, p, 0)
	if err != nil {
		return 0, os.NewSyscallError("recv", err)
	}
	return n, nil
}

func (unixSys) inProgress(err error) bool {
	return errors.Is(err, unix.EINPROGRESS) ||
		errors.Is(err, unix.EAGAIN) ||
		errors.Is(err, unix.EALREADY) ||
		errors.Is(err, unix.EINTR)
}

func (unixSys) wouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN)
}

func (unixSys) interrupted(err error) bool {
	return errors.Is(err, unix.EINTR)
}

// toSockaddr converts a resolved endpoint into the kernel representation
func toSockaddr(addr netip.AddrPort) unix.Sockaddr {
	ip := addr.Addr()
	if ip.Is4() {
		return &unix.SockaddrInet4{Port: int(addr.Port()), Addr: ip.As4()}
	}

	sa := &unix.SockaddrInet6{Port: int(addr.Port()), Addr: ip.As16()}
	if zone := ip.Zone(); zone != "" {
		if ifi, err := net.InterfaceByName(zone); err == nil {
			sa.ZoneId = uint32(ifi.Index)
		} else if idx, err := strconv.ParseUint(zone, 10, 32); err == nil {
			sa.ZoneId = uint32(idx)
		}
	}
	return sa
}
