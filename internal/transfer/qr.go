// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package transfer

import (
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	zxqrcode "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/skip2/go-qrcode"

	"github.com/MKhiriev/go-field-sync/models"
)

// QRCapacity is the largest payload carried by one code: a version 40 symbol
// at error correction level M in byte mode. Payloads are never split across
// several codes; a larger selection must be exported in parts.
const QRCapacity = 2331

// QRLevel is the fixed error correction level of rendered codes.
const QRLevel = qrcode.Medium

// CheckQRCapacity fails with [models.ErrCapacity] when payload does not fit
// into a single code.
func CheckQRCapacity(payload []byte) error {
	if len(payload) > QRCapacity {
		return fmt.Errorf("%w: payload is %d bytes, a QR code holds at most %d; export fewer submissions at a time",
			models.ErrCapacity, len(payload), QRCapacity)
	}
	return nil
}

func newCode(payload []byte) (*qrcode.QRCode, error) {
	if err := CheckQRCapacity(payload); err != nil {
		return nil, err
	}

	code, err := qrcode.New(string(payload), QRLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: render qr: %w", models.ErrCapacity, err)
	}
	return code, nil
}

// RenderPNG encodes payload as a PNG image of a single QR code with the given
// edge length in pixels.
func RenderPNG(payload []byte, size int) ([]byte, error) {
	code, err := newCode(payload)
	if err != nil {
		return nil, err
	}
	return code.PNG(size)
}

// RenderTerminal encodes payload as a QR code drawn with block characters,
// suitable for printing to a terminal.
func RenderTerminal(payload []byte) (string, error) {
	code, err := newCode(payload)
	if err != nil {
		return "", err
	}
	return code.ToSmallString(false), nil
}

// DecodeQR reads the payload bytes of the QR code shown in img. Images
// without a readable code fail with [ErrNoCode].
func DecodeQR(img image.Image) ([]byte, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoCode, err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_CHARACTER_SET: "UTF-8",
		gozxing.DecodeHintType_TRY_HARDER:    true,
	}
	result, err := zxqrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoCode, err)
	}

	return []byte(result.GetText()), nil
}
