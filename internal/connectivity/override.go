package connectivity

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// Mode selects how an [Override] answers.
type Mode string

const (
	ModeAuto    Mode = "auto"
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
)

// ErrUnknownMode is returned by ParseMode for anything but auto, online or
// offline.
var ErrUnknownMode = errors.New("unknown connectivity mode")

// ParseMode validates s.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAuto, ModeOnline, ModeOffline:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Override forwards to the wrapped checker in [ModeAuto] and returns a fixed
// answer otherwise.
type Override struct {
	base Checker
	mode atomic.Value
}

// NewOverride wraps base, starting in [ModeAuto].
func NewOverride(base Checker) *Override {
	o := &Override{base: base}
	o.mode.Store(ModeAuto)
	return o
}

func (o *Override) Online(ctx context.Context) bool {
	switch o.Mode() {
	case ModeOnline:
		return true
	case ModeOffline:
		return false
	default:
		return o.base.Online(ctx)
	}
}

// SetMode switches the answer policy.
func (o *Override) SetMode(m Mode) {
	o.mode.Store(m)
}

// Mode returns the current policy.
func (o *Override) Mode() Mode {
	return o.mode.Load().(Mode)
}
