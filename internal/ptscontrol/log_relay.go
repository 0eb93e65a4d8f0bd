package ptscontrol

import (
	"log/slog"

	"github.com/nrfconnect/auto-pts/internal/pts"
)

// Compile-time interface satisfaction check.
var _ pts.LogHandler = (*LogRelay)(nil)

// LogRelay forwards engine log events to the bound receiver.
type LogRelay struct {
	slot   receiverSlot
	logger *slog.Logger
	fatal  func(error)
}

// NewLogRelay creates an unbound log relay. fatal is invoked when the bound
// receiver fails; it is expected not to return.
func NewLogRelay(logger *slog.Logger, fatal func(error)) *LogRelay {
	return &LogRelay{logger: logger, fatal: fatal}
}

// Bind makes r the target of subsequent log events.
func (l *LogRelay) Bind(r Receiver) { l.slot.store(r) }

// Unbind drops the current receiver; later events are discarded.
func (l *LogRelay) Unbind() { l.slot.store(nil) }

// Log implements pts.LogHandler. It never blocks on the slot lock beyond the
// reference read and never panics back into the engine.
func (l *LogRelay) Log(logType pts.LogType, logTypeLabel, logTime, message string) {
	l.logger.Debug("pts log",
		"log_type", int(logType),
		"log_type_label", logTypeLabel,
		"log_time", logTime,
		"message", message,
	)

	rcv := l.slot.load()
	if rcv == nil {
		relayEventsTotal.WithLabelValues(relayLog, outcomeDropped).Inc()
		return
	}

	err := guard(func() error {
		return rcv.Log(logType, logTypeLabel, logTime, message)
	})
	if err != nil {
		relayEventsTotal.WithLabelValues(relayLog, outcomeFailed).Inc()
		l.logger.Error("receiver failed in log callback", "error", err)
		l.fatal(err)
		return
	}
	relayEventsTotal.WithLabelValues(relayLog, outcomeDelivered).Inc()
}
