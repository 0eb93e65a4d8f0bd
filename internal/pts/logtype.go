package pts

import "fmt"

// LogType classifies an engine log event.
type LogType int

// Log types emitted by the engine.
const (
	LogTypeGeneralText         LogType = 0
	LogTypeStartTest           LogType = 1
	LogTypeEndTest             LogType = 2
	LogTypeError               LogType = 3
	LogTypeEnterMTC            LogType = 4
	LogTypeExitMTC             LogType = 5
	LogTypeEnterPTC            LogType = 6
	LogTypeExitPTC             LogType = 7
	LogTypeCreatePTC           LogType = 8
	LogTypeSendEvent           LogType = 9
	LogTypeReceiveEvent        LogType = 10
	LogTypeIgnoreEvent         LogType = 11
	LogTypeSetTimer            LogType = 12
	LogTypeTimeout             LogType = 13
	LogTypeCancelTimer         LogType = 14
	LogTypeSetVerdict          LogType = 15
	LogTypePreliminaryVerdict  LogType = 16
	LogTypeFinalVerdict        LogType = 17
	LogTypeCreateCO            LogType = 18
	LogTypeMessage             LogType = 19
	LogTypeCoordinationMessage LogType = 20
	LogTypeImplicitSend        LogType = 21
)

var logTypeLabels = map[LogType]string{
	LogTypeGeneralText:         "General Text",
	LogTypeStartTest:           "Start Test",
	LogTypeEndTest:             "End Test",
	LogTypeError:               "Error",
	LogTypeEnterMTC:            "Enter MTC",
	LogTypeExitMTC:             "Exit MTC",
	LogTypeEnterPTC:            "Enter PTC",
	LogTypeExitPTC:             "Exit PTC",
	LogTypeCreatePTC:           "Create PTC",
	LogTypeSendEvent:           "Send Event",
	LogTypeReceiveEvent:        "Receive Event",
	LogTypeIgnoreEvent:         "Ignore Event",
	LogTypeSetTimer:            "Set Timer",
	LogTypeTimeout:             "Timeout",
	LogTypeCancelTimer:         "Cancel Timer",
	LogTypeSetVerdict:          "Set Verdict",
	LogTypePreliminaryVerdict:  "Preliminary Verdict",
	LogTypeFinalVerdict:        "Final Verdict",
	LogTypeCreateCO:            "Create CO",
	LogTypeMessage:             "Message",
	LogTypeCoordinationMessage: "Coordination Message",
	LogTypeImplicitSend:        "Implicit Send",
}

// String returns the engine's label for t.
func (t LogType) String() string {
	if s, ok := logTypeLabels[t]; ok {
		return s
	}
	return fmt.Sprintf("LogType(%d)", int(t))
}

// MMI styles passed with implicit send requests.
const (
	StyleOk1          uint32 = 0x11040
	StyleOkCancel1    uint32 = 0x11041
	StyleAbortRetry1  uint32 = 0x11042
	StyleYesNoCancel1 uint32 = 0x11043
	StyleYesNo1       uint32 = 0x11044
	StyleOkCancel2    uint32 = 0x11141
	StyleEdit1        uint32 = 0x12040
	StyleEdit2        uint32 = 0x12140
)
