package transfer

import "errors"

var (
	// ErrNoCode is returned by [DecodeQR] when an image carries no readable
	// QR code. The scanner ignores such frames.
	ErrNoCode = errors.New("no qr code in frame")

	// ErrNoFrame is returned by a [FrameSource] when no new frame is
	// available yet.
	ErrNoFrame = errors.New("no frame available")

	// ErrSourceExhausted is returned by a scan whose frame source ended before
	// a valid payload was read.
	ErrSourceExhausted = errors.New("frame source exhausted")
)
