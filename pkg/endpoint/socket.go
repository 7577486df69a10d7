package endpoint

import (
	"errors"
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// socketMode is applied to the bind path so group members can send events.
const socketMode os.FileMode = 0o660

// bindDatagram binds a unix datagram socket at path, replacing whatever file
// is there. The receive buffer is raised to floor when the kernel default is
// smaller; it is never lowered.
func bindDatagram(path string, floor int) (*net.UnixConn, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		return nil, fmt.Errorf("bind: %w", err)
	}

	if err := os.Chmod(path, socketMode); err != nil {
		conn.Close()
		return nil, fmt.Errorf("chmod: %w", err)
	}

	raw, err := conn.SyscallConn()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("raw conn: %w", err)
	}

	var optErr error
	ctlErr := raw.Control(func(fd uintptr) {
		optErr = raiseRecvBuffer(int(fd), floor)
		unix.CloseOnExec(int(fd))
	})
	if ctlErr == nil {
		ctlErr = optErr
	}
	if ctlErr != nil {
		conn.Close()
		return nil, fmt.Errorf("receive buffer: %w", ctlErr)
	}
	return conn, nil
}

func raiseRecvBuffer(fd, floor int) error {
	cur, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF)
	if err != nil {
		cur = 0
	}
	if cur >= floor {
		return nil
	}
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, floor)
}

// recvBufferSize reports the current SO_RCVBUF of conn.
func recvBufferSize(conn *net.UnixConn) (int, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return 0, err
	}
	var size int
	var optErr error
	if err := raw.Control(func(fd uintptr) {
		size, optErr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF)
	}); err != nil {
		return 0, err
	}
	return size, optErr
}
