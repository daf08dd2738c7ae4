// Package scanner guards exclusive use of a camera scanner. A view holds at
// most one live Handle; the device is closed when the handle is released or
// the acquiring context ends.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrInUse is returned by Acquire while another handle is live.
var ErrInUse = errors.New("scanner already in use")

// Device is an opened scanner.
type Device interface {
	Close() error
}

// Opener opens the underlying device.
type Opener func(ctx context.Context) (Device, error)

type nopDevice struct{}

func (nopDevice) Close() error { return nil }

// Slot hands out the scanner to one holder at a time.
type Slot struct {
	mu   sync.Mutex
	open Opener
	held *Handle
}

// NewSlot creates a slot. A nil opener yields a device with no resources,
// used when the camera lives in the browser.
func NewSlot(open Opener) *Slot {
	if open == nil {
		open = func(context.Context) (Device, error) { return nopDevice{}, nil }
	}
	return &Slot{open: open}
}

// Acquire opens the device and returns a handle to it. The handle is
// released automatically when ctx is done.
func (s *Slot) Acquire(ctx context.Context) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held != nil {
		return nil, ErrInUse
	}

	dev, err := s.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open scanner: %w", err)
	}

	h := &Handle{slot: s, dev: dev}
	s.held = h
	// h.mu is held across registration so a release fired by an
	// already-cancelled ctx waits for stop to be set.
	h.mu.Lock()
	h.stop = context.AfterFunc(ctx, func() { h.Release() })
	h.mu.Unlock()
	return h, nil
}

// InUse reports whether a handle is live.
func (s *Slot) InUse() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held != nil
}

func (s *Slot) free(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held == h {
		s.held = nil
	}
}

// Handle is exclusive access to the scanner.
type Handle struct {
	slot *Slot
	dev  Device
	stop func() bool

	once     sync.Once
	mu       sync.Mutex
	released bool
	err      error
}

// Release closes the device and frees the slot. Calls after the first
// return the first result.
func (h *Handle) Release() error {
	h.once.Do(func() {
		h.mu.Lock()
		stop := h.stop
		h.mu.Unlock()
		if stop != nil {
			stop()
		}
		err := h.dev.Close()
		h.slot.free(h)

		h.mu.Lock()
		h.released = true
		h.err = err
		h.mu.Unlock()
	})
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Released reports whether the handle has been released.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}
