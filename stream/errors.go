package stream

import "errors"

var (
	// ErrResolve means the configured host is not an IPv4 literal.
	ErrResolve = errors.New("host is not an IPv4 literal")

	// ErrSocketCreate means the OS refused to create the UDP socket.
	ErrSocketCreate = errors.New("udp socket creation failed")

	// ErrSetSendBuf means SO_SNDBUF could not be raised. Fatal at open.
	ErrSetSendBuf = errors.New("send buffer sizing failed")

	// ErrSend means a sendto failed. The caller may retry the whole frame.
	ErrSend = errors.New("send failed")

	// ErrAudioTooLarge means a PCM buffer exceeded 65535 bytes. The caller
	// must split it.
	ErrAudioTooLarge = errors.New("audio payload over 65535 bytes")

	// ErrConfig means an enum or size in the configuration is out of range.
	ErrConfig = errors.New("invalid configuration")
)
