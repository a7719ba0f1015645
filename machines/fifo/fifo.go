// Package fifo implements a POSIX named-pipe machine: a lazily-opened
// FIFO node, created on disk if it doesn't already exist, with
// independent read and write file handles. Grounded on bingewatch's
// fifo-machine.c.
package fifo

import (
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/streamrig/streamrig/internal/filter"
	"github.com/streamrig/streamrig/internal/logging"
)

// Flags selects which direction(s) a Fifo opens and whether destroying
// it should leave the underlying handles open, the Go analogue of
// fifo-machine.c's FFIFO_* bitmask.
type Flags uint32

const (
	// Read opens the FIFO for reading.
	Read Flags = 1 << iota
	// Write opens the FIFO for writing.
	Write
	// LeaveOpen skips closing the handles on Close, for callers that
	// will keep reading/writing a FIFO handed off elsewhere.
	LeaveOpen
)

// Fifo is a named pipe machine. The pipe node is created with
// unix.Mkfifo if it does not already exist; the read/write handles
// themselves are opened lazily on first use, since opening a FIFO
// blocks until a peer opens the other end.
type Fifo struct {
	log   *logging.Logger
	path  string
	flags Flags

	fr *os.File
	fw *os.File
}

// New creates a fifo machine for path, mirroring new_fifo_machine. The
// node itself is created here (mode 0o644) if it does not exist.
func New(path string, flags Flags) (*Fifo, error) {
	if err := unix.Mkfifo(path, 0o644); err != nil && err != unix.EEXIST {
		return nil, err
	}
	return &Fifo{log: logging.Default(), path: path, flags: flags}, nil
}

// NewRead creates a read-only fifo machine, mirroring new_fifo_read_machine.
func NewRead(path string) (*Fifo, error) { return New(path, Read) }

// NewWrite creates a write-only fifo machine, mirroring new_fifo_write_machine.
func NewWrite(path string) (*Fifo, error) { return New(path, Write) }

// SetLeaveOpen marks the fifo so Close does not close its handles,
// mirroring fifo_iom_set_leave_open.
func (f *Fifo) SetLeaveOpen() { f.flags |= LeaveOpen }

func (f *Fifo) openForWrite() error {
	if f.fw != nil {
		return nil
	}
	if f.fr != nil {
		f.fr.Close()
		f.fr = nil
	}
	fw, err := os.OpenFile(f.path, os.O_WRONLY, 0)
	if err != nil {
		f.log.Errorf("fifo: failed to open %s for write: %v", f.path, err)
		return err
	}
	f.fw = fw
	return nil
}

func (f *Fifo) openForRead() error {
	if f.fr != nil {
		return nil
	}
	if f.fw != nil {
		f.fw.Close()
		f.fw = nil
	}
	fr, err := os.OpenFile(f.path, os.O_RDONLY, 0)
	if err != nil {
		f.log.Errorf("fifo: failed to open %s for read: %v", f.path, err)
		return err
	}
	f.fr = fr
	return nil
}

// Write writes buf in full to the fifo, mirroring fifo_write's
// write-until-consumed loop and fflush.
func (f *Fifo) Write(buf []byte, _ filter.BlockMode) (int, filter.Status) {
	if len(buf) == 0 {
		return 0, filter.StatusSuccess
	}
	if f.flags&Write == 0 {
		f.log.Errorf("fifo: write called on a non-write fifo machine")
		return 0, filter.StatusError
	}
	if err := f.openForWrite(); err != nil {
		return 0, filter.StatusError
	}

	total := 0
	for total < len(buf) {
		n, err := f.fw.Write(buf[total:])
		total += n
		if err != nil {
			f.log.Errorf("fifo: write error: %v", err)
			return total, filter.StatusError
		}
	}
	f.fw.Sync()
	return total, filter.StatusSuccess
}

// Read fills buf from the fifo, returning StatusComplete on EOF
// (the writer closed its end), mirroring fifo_read's
// read-until-consumed-or-EOF loop.
func (f *Fifo) Read(buf []byte, _ filter.BlockMode) (int, filter.Status) {
	if len(buf) == 0 {
		return 0, filter.StatusSuccess
	}
	if f.flags&Read == 0 {
		f.log.Errorf("fifo: read called on a non-read fifo machine")
		return 0, filter.StatusError
	}
	if err := f.openForRead(); err != nil {
		return 0, filter.StatusError
	}

	total := 0
	for total < len(buf) {
		n, err := f.fr.Read(buf[total:])
		total += n
		if err != nil {
			if err == io.EOF {
				return total, filter.StatusComplete
			}
			f.log.Errorf("fifo: read error: %v", err)
			return total, filter.StatusError
		}
		if n == 0 {
			break
		}
	}
	return total, filter.StatusSuccess
}

// Stop closes the read handle only, mirroring the original fifo
// machine's registration of stop as machine_disable_read.
func (f *Fifo) Stop() {
	if f.fr != nil {
		f.fr.Close()
		f.fr = nil
	}
}

// Close closes both handles unless LeaveOpen was set, mirroring
// destroy_fifo's FFIFO_LEAVE_OPEN check.
func (f *Fifo) Close() error {
	if f.flags&LeaveOpen != 0 {
		return nil
	}

	var err error
	if f.fr != nil {
		if e := f.fr.Close(); e != nil {
			err = e
		}
		f.fr = nil
	}
	if f.fw != nil {
		if e := f.fw.Close(); e != nil && err == nil {
			err = e
		}
		f.fw = nil
	}
	return err
}
