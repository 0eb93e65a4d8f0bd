package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/nrfconnect/auto-pts/internal/model"
	"github.com/nrfconnect/auto-pts/internal/pts"
	"github.com/nrfconnect/auto-pts/internal/ptscontrol"
	"github.com/nrfconnect/auto-pts/internal/testcase"
)

var (
	verdictPassColor  = color.New(color.FgGreen, color.Bold)
	verdictFailColor  = color.New(color.FgRed, color.Bold)
	verdictOtherColor = color.New(color.FgYellow)
	logErrorColor     = color.New(color.FgRed)
	logTraceColor     = color.New(color.Faint)
	implicitSendColor = color.New(color.FgCyan)
)

func verdictColor(verdict string) *color.Color {
	switch verdict {
	case model.VerdictPass:
		return verdictPassColor
	case model.VerdictFail:
		return verdictFailColor
	default:
		return verdictOtherColor
	}
}

// printVerdict writes "<name> <verdict>" with the verdict coloured.
func printVerdict(w io.Writer, name, verdict string) {
	fmt.Fprintf(w, "%-40s ", name)
	_, _ = verdictColor(verdict).Fprintln(w, verdict)
}

// printLog writes one engine log event.
func printLog(w io.Writer, logType pts.LogType, label, logTime, message string) {
	c := logTraceColor
	switch logType {
	case pts.LogTypeError:
		c = logErrorColor
	case pts.LogTypeFinalVerdict:
		if v, ok := testcase.ParseVerdict(message); ok {
			c = verdictColor(v)
		}
	case pts.LogTypeGeneralText, pts.LogTypeStartTest, pts.LogTypeEndTest, pts.LogTypeMessage:
		c = nil
	}
	if label == "" {
		label = logType.String()
	}
	line := fmt.Sprintf("[%s] %s: %s", logTime, label, strings.TrimRight(message, "\r\n"))
	if c == nil {
		fmt.Fprintln(w, line)
		return
	}
	_, _ = c.Fprintln(w, line)
}

func printEvent(w io.Writer, ev testcase.Event) {
	printLog(w, ev.Type, ev.Label, ev.Time, ev.Message)
}

// printingReceiver prints every notification it receives and answers
// implicit sends from a table.
type printingReceiver struct {
	mu      sync.Mutex
	w       io.Writer
	answers *testcase.Answers
}

var _ ptscontrol.Receiver = (*printingReceiver)(nil)

func (p *printingReceiver) Log(logType pts.LogType, label, logTime, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	printLog(p.w, logType, label, logTime, message)
	return nil
}

func (p *printingReceiver) OnImplicitSend(req ptscontrol.ImplicitSendRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	answer, ok := p.answers.Lookup(req.Project, req.WID)
	_, _ = implicitSendColor.Fprintf(p.w, "[%s] wid %d style 0x%x: %s\n", req.TestCase, req.WID, req.Style, req.Description)
	if ok {
		fmt.Fprintf(p.w, "  answer: %q\n", answer)
	} else {
		fmt.Fprintln(p.w, "  no answer, engine default used")
	}
	return answer, nil
}
