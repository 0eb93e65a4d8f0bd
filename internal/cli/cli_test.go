package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nrfconnect/auto-pts/internal/ptssim"
)

const demoAnswers = `projects:
  GAP:
    77: OK
  L2CAP:
    100: "1001"
`

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, k := range []string{"PTS_ENGINE", "PTS_SIM_DB", "PTS_WORKSPACE", "PTS_ANSWERS", "PTS_CALLBACK_ADDR"} {
		t.Setenv(k, "")
	}

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func demoWorkspace(t *testing.T) string {
	t.Helper()
	path, err := ptssim.WriteDemoWorkspace(t.TempDir())
	require.NoError(t, err)
	return path
}

func answersFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "answers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(demoAnswers), 0o644))
	return path
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "ptsctl", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"info", "run", "pics", "pixit", "bdaddr", "engines", "serve", "receive", "watch"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	t.Setenv("PTS_ENGINE", "")
	cmd := NewRootCommand()

	workspaceFlag := cmd.PersistentFlags().Lookup("workspace")
	require.NotNil(t, workspaceFlag)
	assert.Equal(t, "w", workspaceFlag.Shorthand)

	engineFlag := cmd.PersistentFlags().Lookup("engine")
	require.NotNil(t, engineFlag)
	assert.Equal(t, SimDriver, engineFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "engines")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestEnginesCommand(t *testing.T) {
	out, err := execute(t, "engines")
	require.NoError(t, err)
	assert.Contains(t, out, "sim")
}

func TestUnknownEngine(t *testing.T) {
	_, err := execute(t, "--engine", "com", "bdaddr")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestBDAddrCommandJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "bdaddr")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   engineInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "00:1B:DC:F2:1A:57:0D", resp.Data.BDAddr)
	assert.Equal(t, "1bdcf21a570d", resp.Data.BluetoothAddress)
	assert.Equal(t, "80600", resp.Data.Version)
}

func TestInfoCommand(t *testing.T) {
	out, err := execute(t, "info", "-w", demoWorkspace(t))
	require.NoError(t, err)

	assert.Contains(t, out, "Project count: 2")
	assert.Contains(t, out, "Project name: GAP")
	assert.Contains(t, out, "Project version: 8.6.0")
	assert.Contains(t, out, "GAP/CONN/ACEP/BV-01-C")

	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "GAP/CONN/ACEP/BV-02-C") {
			assert.Contains(t, line, "inactive")
		}
	}
}

func TestInfoCommandTSS(t *testing.T) {
	out, err := execute(t, "info", "--tss", "-w", demoWorkspace(t))
	require.NoError(t, err)

	assert.Contains(t, out, "TSS test case count: 2")
	assert.NotContains(t, out, "GAP/BROB/BCST/BV-01-C")
}

func TestInfoCommandJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "info", "-w", demoWorkspace(t))
	require.NoError(t, err)

	var resp struct {
		Data []projectDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "L2CAP", resp.Data[1].Name)
	assert.Len(t, resp.Data[1].TestCases, 2)
}

func TestInfoWorkspaceErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing flag", []string{"info"}},
		{"wrong extension", []string{"info", "-w", filepath.Join(t.TempDir(), "demo.yaml")}},
		{"missing file", []string{"info", "-w", filepath.Join(t.TempDir(), "demo.pqw6")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestPicsCommand(t *testing.T) {
	ws := demoWorkspace(t)

	out, err := execute(t, "pics", "-w", ws, "L2CAP", "TSPC_L2CAP_3_13", "true")
	require.NoError(t, err)
	assert.Equal(t, "L2CAP TSPC_L2CAP_3_13 = true\n", out)

	// The demo default is already false.
	_, err = execute(t, "pics", "-w", ws, "L2CAP", "TSPC_L2CAP_3_13", "false")
	require.NoError(t, err)

	_, err = execute(t, "pics", "-w", ws, "L2CAP", "TSPC_L2CAP_3_13", "maybe")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "pics", "-w", ws, "L2CAP", "TSPC_UNKNOWN", "true")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestPixitCommand(t *testing.T) {
	ws := demoWorkspace(t)

	out, err := execute(t, "pixit", "-w", ws, "L2CAP", "TSPX_iut_role_initiator", "FALSE")
	require.NoError(t, err)
	assert.Equal(t, "L2CAP TSPX_iut_role_initiator = FALSE\n", out)

	_, err = execute(t, "pixit", "-w", ws, "L2CAP", "TSPX_iut_role_initiator", "TRUE")
	require.NoError(t, err)
}
