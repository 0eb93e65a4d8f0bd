package ptscontrol

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/nrfconnect/auto-pts/internal/pts"
)

// Compile-time interface satisfaction check.
var _ pts.ImplicitSendHandler = (*ImplicitSendRelay)(nil)

// ImplicitSendRelay forwards implicit send requests to the bound receiver
// and writes its answer back into the engine's response buffer.
type ImplicitSendRelay struct {
	slot   receiverSlot
	logger *slog.Logger
	fatal  func(error)
	report func(error)
}

// NewImplicitSendRelay creates an unbound relay. fatal is invoked when the
// bound receiver fails; report receives protocol and buffer errors, which
// the engine itself has no way to observe.
func NewImplicitSendRelay(logger *slog.Logger, fatal, report func(error)) *ImplicitSendRelay {
	return &ImplicitSendRelay{logger: logger, fatal: fatal, report: report}
}

// Bind makes r the target of subsequent implicit send requests.
func (s *ImplicitSendRelay) Bind(r Receiver) { s.slot.store(r) }

// Unbind drops the current receiver; later requests fall back to the
// engine's default.
func (s *ImplicitSendRelay) Unbind() { s.slot.store(nil) }

// OnImplicitSend implements pts.ImplicitSendHandler.
func (s *ImplicitSendRelay) OnImplicitSend(projectName string, wid int64, testCaseName, description string,
	style int64, response []uint16, responseSize int64, responseIsPresent *int32) {
	s.logger.Debug("pts implicit send",
		"project", projectName,
		"wid", wid,
		"test_case", testCaseName,
		"description", description,
		"style", fmt.Sprintf("0x%x", style),
		"response_size", responseSize,
	)

	err := s.deliver(projectName, wid, testCaseName, description, style, response, responseSize, responseIsPresent)
	switch {
	case err == nil:
		return
	case errors.Is(err, ErrReceiverFailed):
		relayEventsTotal.WithLabelValues(relayImplicitSend, outcomeFailed).Inc()
		s.logger.Error("receiver failed in implicit send callback", "wid", wid, "error", err)
		s.fatal(err)
	default:
		relayEventsTotal.WithLabelValues(relayImplicitSend, outcomeRejected).Inc()
		s.logger.Error("implicit send rejected", "wid", wid, "test_case", testCaseName, "error", err)
		if s.report != nil {
			s.report(err)
		}
	}
}

// deliver performs one implicit send exchange. The presence flag is set only
// after the answer has been copied in full.
func (s *ImplicitSendRelay) deliver(projectName string, wid int64, testCaseName, description string,
	style int64, response []uint16, responseSize int64, responseIsPresent *int32) error {
	rcv := s.slot.load()
	if rcv == nil {
		relayEventsTotal.WithLabelValues(relayImplicitSend, outcomeDropped).Inc()
		return nil
	}

	req, err := newImplicitSendRequest(projectName, wid, testCaseName, description, style, response, responseSize, responseIsPresent)
	if err != nil {
		return err
	}

	var answer string
	err = guard(func() error {
		var err error
		answer, err = rcv.OnImplicitSend(req)
		return err
	})
	if err != nil {
		return err
	}

	relayEventsTotal.WithLabelValues(relayImplicitSend, outcomeDelivered).Inc()
	s.logger.Debug("receiver answered implicit send", "wid", req.WID, "answer", answer)
	if answer == "" {
		return nil
	}

	if err := writeResponse(response, req.ResponseCapacity, answer); err != nil {
		return err
	}
	*responseIsPresent = 1
	return nil
}

// newImplicitSendRequest coerces the engine's wide fields into the request's
// fixed-width types.
func newImplicitSendRequest(projectName string, wid int64, testCaseName, description string,
	style int64, response []uint16, responseSize int64, responseIsPresent *int32) (ImplicitSendRequest, error) {
	if wid < 0 || wid > math.MaxUint16 {
		return ImplicitSendRequest{}, fmt.Errorf("%w: wid %d out of uint16 range", ErrProtocolViolation, wid)
	}
	if style < 0 || style > math.MaxUint32 {
		return ImplicitSendRequest{}, fmt.Errorf("%w: style %d out of uint32 range", ErrProtocolViolation, style)
	}
	if responseSize < 0 || responseSize > math.MaxUint32 {
		return ImplicitSendRequest{}, fmt.Errorf("%w: response size %d out of uint32 range", ErrProtocolViolation, responseSize)
	}
	if responseSize > int64(len(response)) {
		return ImplicitSendRequest{}, fmt.Errorf("%w: response size %d exceeds buffer length %d",
			ErrProtocolViolation, responseSize, len(response))
	}
	if responseIsPresent == nil {
		return ImplicitSendRequest{}, fmt.Errorf("%w: nil response presence flag", ErrProtocolViolation)
	}

	return ImplicitSendRequest{
		Project:          projectName,
		WID:              uint16(wid),
		TestCase:         testCaseName,
		Description:      description,
		Style:            uint32(style),
		Response:         readResponse(response[:responseSize]),
		ResponseCapacity: uint32(responseSize),
		ResponsePresent:  *responseIsPresent != 0,
	}, nil
}
