//go:build linux

package source

import (
	"fmt"
	"os"

	"github.com/tmthrgd/go-shm"
	"golang.org/x/sys/unix"
)

// ShmSource maps a POSIX shared-memory segment that an external producer
// (an emulator, a capture process) overwrites with raw frames. The mapping is
// read-only on this side; the producer owns the write end and the cadence.
type ShmSource struct {
	file *os.File
	data []byte
	name string
}

// OpenShm creates-or-opens the named segment sized for one frame and maps it.
func OpenShm(name string, frameSize int) (*ShmSource, error) {
	file, err := shm.Open(name, unix.O_CREAT|unix.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("shm open %q: %w", name, err)
	}

	if err := file.Truncate(int64(frameSize)); err != nil {
		file.Close()
		return nil, fmt.Errorf("shm size %q: %w", name, err)
	}

	data, err := unix.Mmap(int(file.Fd()), 0, frameSize, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("shm map %q: %w", name, err)
	}

	return &ShmSource{file: file, data: data, name: name}, nil
}

// Frame returns the live mapping. The producer may overwrite it at any time;
// callers that compress should do so immediately.
func (s *ShmSource) Frame() []byte {
	return s.data
}

// Close unmaps and closes the segment. The name is left registered so the
// producer can keep running.
func (s *ShmSource) Close() error {
	if err := unix.Munmap(s.data); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
