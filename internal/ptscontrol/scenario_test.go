package ptscontrol_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nrfconnect/auto-pts/internal/model"
	"github.com/nrfconnect/auto-pts/internal/pts"
	"github.com/nrfconnect/auto-pts/internal/ptscontrol"
	"github.com/nrfconnect/auto-pts/internal/ptssim"
	"github.com/nrfconnect/auto-pts/internal/testcase"
)

type tickClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(5 * time.Millisecond)
	return c.t
}

func newSimControl(t *testing.T) *ptscontrol.Control {
	t.Helper()
	clock := &tickClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	sim, err := ptssim.New(ptssim.Options{Clock: clock.Now})
	require.NoError(t, err)

	c, err := ptscontrol.New(context.Background(), sim, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	path, err := ptssim.WriteDemoWorkspace(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, c.OpenWorkspace(context.Background(), path))
	return c
}

func TestGAPScenario(t *testing.T) {
	c := newSimControl(t)
	ctx := context.Background()

	answers := &testcase.Answers{}
	answers.Set("GAP", 77, "OK")
	tc := testcase.New("GAP", "GAP/CONN/ACEP/BV-01-C", testcase.Options{Answers: answers})

	require.NoError(t, c.RunTestCaseObject(ctx, tc))
	assert.Equal(t, model.VerdictPass, tc.Status())

	events := tc.Events()
	require.NotEmpty(t, events)
	for i := 1; i < len(events); i++ {
		assert.Less(t, events[i-1].Time, events[i].Time, "event times must increase")
	}

	reqs := tc.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, uint16(77), reqs[0].WID)
	assert.Equal(t, pts.StyleOkCancel1, reqs[0].Style)
	assert.False(t, c.Running())
}

func TestPixitFalseThenTrueOnSim(t *testing.T) {
	c := newSimControl(t)
	ctx := context.Background()

	require.NoError(t, c.UpdatePixitParam(ctx, "L2CAP", "TSPX_iut_role_initiator", "FALSE"))
	require.NoError(t, c.UpdatePixitParam(ctx, "L2CAP", "TSPX_iut_role_initiator", "TRUE"))
	require.NoError(t, c.UpdatePixitParam(ctx, "L2CAP", "TSPX_iut_role_initiator", "TRUE"))
	require.NoError(t, c.UpdatePics(ctx, "L2CAP", "TSPC_L2CAP_3_13", true))
	require.NoError(t, c.UpdatePics(ctx, "L2CAP", "TSPC_L2CAP_3_13", false))
	require.NoError(t, c.UpdatePics(ctx, "L2CAP", "TSPC_L2CAP_3_13", false))

	err := c.UpdatePics(ctx, "L2CAP", "TSPC_UNKNOWN", true)
	require.ErrorIs(t, err, ptscontrol.ErrEngineCall)
}

func TestSimTimeoutScenario(t *testing.T) {
	c := newSimControl(t)
	ctx := context.Background()
	require.NoError(t, c.SetCallTimeout(ctx, 50*time.Millisecond))

	tc := testcase.New("L2CAP", "L2CAP/COS/CED/BV-03-C", testcase.Options{})
	err := c.RunTestCaseObject(ctx, tc)
	require.ErrorIs(t, err, ptscontrol.ErrEngineTimeout)
	assert.Equal(t, model.VerdictError, tc.Status())
}

func TestSimBufferTooSmallScenario(t *testing.T) {
	c := newSimControl(t)

	// L2CAP/COS/CED/BV-01-C offers an 8-unit buffer.
	answers := &testcase.Answers{}
	answers.Set("L2CAP", 100, "0123456789")
	tc := testcase.New("L2CAP", "L2CAP/COS/CED/BV-01-C", testcase.Options{Answers: answers})

	err := c.RunTestCaseObject(context.Background(), tc)
	require.ErrorIs(t, err, ptscontrol.ErrBufferTooSmall)
	require.ErrorIs(t, tc.Err(), ptscontrol.ErrBufferTooSmall)

	// The engine used its default and still reached a verdict.
	assert.Equal(t, model.VerdictPass, tc.Status())
}

func TestSimEnumeration(t *testing.T) {
	c := newSimControl(t)
	ctx := context.Background()

	n, err := c.ProjectCount(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(2), n)

	var projects []string
	for i := range n {
		name, err := c.ProjectName(ctx, i)
		require.NoError(t, err)
		projects = append(projects, name)
	}
	assert.Equal(t, []string{"GAP", "L2CAP"}, projects)

	tss, err := c.TestCasesFromTSSFile(ctx, "L2CAP")
	require.NoError(t, err)
	assert.Len(t, tss, 2)

	addr, err := c.BDAddr(ctx)
	require.NoError(t, err)
	assert.Equal(t, "00:1B:DC:F2:1A:57:0D", addr)

	require.NoError(t, c.StopTestCase(ctx, "GAP", "GAP/CONN/ACEP/BV-01-C"))
	require.NoError(t, c.EnableMaximumLogging(ctx, true))
	require.NoError(t, c.SaveTestHistoryLog(ctx, false))
}
