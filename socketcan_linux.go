//go:build linux

package canfd

import (
	"errors"
	"net"
	"os"
	"syscall"
	"unsafe"
)

// socketCAN implements Bus over Linux SocketCAN using raw syscalls only.
type socketCAN struct {
	fd     int
	file   *os.File
	closed chan struct{}
}

// Linux SocketCAN constants not exposed by package syscall.
const (
	afCAN         = 29 // AF_CAN
	canRaw        = 1  // CAN_RAW
	solCANRaw     = 101
	canRawFDFrame = 5 // CAN_RAW_FD_FRAMES
)

// DialSocketCAN opens a raw CAN socket bound to the given interface name
// (e.g., "can0") with FD frame support enabled. The interface itself must be
// configured for FD operation (see ConfigureLinuxCANInterface).
func DialSocketCAN(iface string) (Bus, error) {
	fd, err := syscall.Socket(afCAN, syscall.SOCK_RAW, canRaw)
	if err != nil {
		return nil, err
	}

	// Allow 72-byte canfd_frame reads and writes on this socket.
	if err := syscall.SetsockoptInt(fd, solCANRaw, canRawFDFrame, 1); err != nil {
		syscall.Close(fd)
		return nil, err
	}

	netIf, err := net.InterfaceByName(iface)
	if err != nil {
		syscall.Close(fd)
		return nil, err
	}

	// Bind to interface
	// struct sockaddr_can { sa_family_t can_family; int can_ifindex; union { ... } addr; };
	// We provide a compatible memory layout via unsafe and call bind(2) directly.
	type sockaddrCAN struct {
		Family  uint16
		_pad    uint16
		Ifindex int32
		Addr    [8]byte
	}
	sa := sockaddrCAN{Family: afCAN, Ifindex: int32(netIf.Index)}
	_, _, e := syscall.Syscall(syscall.SYS_BIND, uintptr(fd), uintptr(unsafe.Pointer(&sa)), unsafe.Sizeof(sa))
	if e != 0 {
		syscall.Close(fd)
		return nil, e
	}

	if err := syscall.SetNonblock(fd, true); err != nil {
		syscall.Close(fd)
		return nil, err
	}

	f := os.NewFile(uintptr(fd), "socketcan")
	return &socketCAN{fd: fd, file: f, closed: make(chan struct{})}, nil
}

func (s *socketCAN) Close() error {
	select {
	case <-s.closed:
		return nil
	default:
	}
	close(s.closed)
	// Closing file also closes the fd
	return s.file.Close()
}

// Send writes one frame using the Linux canfd_frame binary layout.
func (s *socketCAN) Send(frame Frame) error {
	if err := frame.Validate(); err != nil {
		return err
	}
	buf, err := frame.MarshalBinary()
	if err != nil {
		return err
	}
	for {
		n, werr := syscall.Write(s.fd, buf)
		if werr == nil {
			if n != len(buf) {
				return errors.New("canfd: short write")
			}
			return nil
		}
		if werr == syscall.EAGAIN || werr == syscall.EWOULDBLOCK {
			select {
			case <-s.closed:
				return ErrClosed
			default:
			}
			// Busy-wait with small yield
			syscall.Select(0, nil, nil, nil, &syscall.Timeval{Usec: 1000})
			continue
		}
		if werr == syscall.EBADF {
			return ErrClosed
		}
		return werr
	}
}

// Receive reads one frame.
func (s *socketCAN) Receive() (Frame, error) {
	var f Frame
	buf := make([]byte, 72)
	for {
		n, rerr := syscall.Read(s.fd, buf)
		if rerr == nil {
			if n != len(buf) {
				return Frame{}, errors.New("canfd: short read")
			}
			if err := f.UnmarshalBinary(buf); err != nil {
				return Frame{}, err
			}
			return f, nil
		}
		if rerr == syscall.EAGAIN || rerr == syscall.EWOULDBLOCK {
			select {
			case <-s.closed:
				return Frame{}, ErrClosed
			default:
			}
			syscall.Select(0, nil, nil, nil, &syscall.Timeval{Usec: 1000})
			continue
		}
		if rerr == syscall.EBADF {
			return Frame{}, ErrClosed
		}
		return Frame{}, rerr
	}
}
