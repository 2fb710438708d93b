// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/models"
)

// ScanResult is delivered once per scan.
type ScanResult struct {
	Payload models.TransferPayload
	Raw     []byte
	Err     error
}

// Scanner polls a [FrameSource] for a QR code carrying a valid payload.
type Scanner struct {
	interval time.Duration
	decode   func(image.Image) ([]byte, error)

	// OnReject is called once for every distinct code that failed
	// verification or validation. Scanning continues afterwards so the
	// operator can present the code again.
	OnReject func(err error)

	logger *logger.Logger
}

// NewScanner returns a scanner polling every interval.
func NewScanner(interval time.Duration, log *logger.Logger) *Scanner {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &Scanner{interval: interval, decode: DecodeQR, logger: log}
}

// Start acquires a frame source through open and polls it in a background
// goroutine. The returned channel yields exactly one result and is then
// closed. The source is released on every exit path, including cancellation
// of ctx.
func (s *Scanner) Start(ctx context.Context, open SourceOpener) <-chan ScanResult {
	out := make(chan ScanResult, 1)

	go func() {
		defer close(out)
		out <- s.run(ctx, open)
	}()

	return out
}

// Scan blocks until a valid payload is read, the source ends or ctx is done.
func (s *Scanner) Scan(ctx context.Context, open SourceOpener) (ScanResult, error) {
	res := <-s.Start(ctx, open)
	return res, res.Err
}

func (s *Scanner) run(ctx context.Context, open SourceOpener) ScanResult {
	src, err := open(ctx)
	if err != nil {
		return ScanResult{Err: fmt.Errorf("acquire frame source: %w", err)}
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil {
			s.logger.Warn().Err(closeErr).Str("func", "Scanner.run").Msg("release frame source")
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var lastRejected []byte
	for {
		raw, err := s.readFrame(ctx, src)
		switch {
		case err == nil:
			payload, parseErr := Parse(raw)
			if parseErr == nil {
				return ScanResult{Payload: payload, Raw: raw}
			}
			if !bytes.Equal(raw, lastRejected) {
				lastRejected = raw
				s.reject(parseErr)
			}
		case errors.Is(err, ErrNoFrame), errors.Is(err, ErrNoCode):
		case errors.Is(err, io.EOF):
			return ScanResult{Err: ErrSourceExhausted}
		default:
			return ScanResult{Err: err}
		}

		select {
		case <-ctx.Done():
			return ScanResult{Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

func (s *Scanner) readFrame(ctx context.Context, src FrameSource) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := src.Next(ctx)
	if err != nil {
		return nil, err
	}
	return s.decode(img)
}

func (s *Scanner) reject(err error) {
	s.logger.Warn().Err(err).Str("func", "Scanner.run").Msg("scanned code rejected")
	if s.OnReject != nil {
		s.OnReject(err)
	}
}
