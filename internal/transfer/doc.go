// Package transfer implements the signed out-of-band payload used to move
// submissions between devices that have no network path.
//
// A payload is compact JSON with a fixed member order followed by a
// "signature" member holding the lowercase hex SHA-256 of everything before
// it. The same bytes are carried unchanged by both media: a single QR code
// (error correction level M, at most [QRCapacity] bytes) or a portable file.
package transfer
