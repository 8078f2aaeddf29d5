//go:build !linux

package source

import "errors"

// ShmSource is only available on Linux, where the FPGA-facing producers run.
type ShmSource struct{}

func OpenShm(name string, frameSize int) (*ShmSource, error) {
	return nil, errors.New("shared-memory sources require linux")
}

func (s *ShmSource) Frame() []byte {
	return nil
}

func (s *ShmSource) Close() error {
	return nil
}
