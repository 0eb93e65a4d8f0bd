package ptscontrol

import (
	"fmt"
	"sync"
)

// receiverSlot holds the receiver a relay forwards to. The lock covers only
// the read or write of the reference, never the receiver call itself.
type receiverSlot struct {
	mu  sync.Mutex
	rcv Receiver
}

func (s *receiverSlot) load() Receiver {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rcv
}

func (s *receiverSlot) store(r Receiver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rcv = r
}

// guard runs a receiver call, converting both returned errors and panics
// into ErrReceiverFailed.
func guard(call func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: panic: %v", ErrReceiverFailed, p)
		}
	}()
	if err := call(); err != nil {
		return fmt.Errorf("%w: %w", ErrReceiverFailed, err)
	}
	return nil
}
