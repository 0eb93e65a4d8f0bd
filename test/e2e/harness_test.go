package e2e

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nrfconnect/auto-pts/internal/ptssim"
)

const (
	startupTimeout = 10 * time.Second
	pollInterval   = 100 * time.Millisecond
)

const demoAnswers = `projects:
  GAP:
    77: OK
  L2CAP:
    100: "1001"
`

// lockedBuffer is a thread-safe wrapper around bytes.Buffer.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (lb *lockedBuffer) Write(p []byte) (int, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.Write(p)
}

func (lb *lockedBuffer) String() string {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.String()
}

// serverProc holds the running server subprocess and its output.
type serverProc struct {
	cmd    *exec.Cmd
	stdout *lockedBuffer
	url    string
}

var (
	buildMu  sync.Mutex
	binaries = make(map[string]string)
	buildDir string
)

// getBinary builds ./cmd/<name> once per test binary run.
func getBinary(t *testing.T, name string) string {
	t.Helper()
	buildMu.Lock()
	defer buildMu.Unlock()

	if bin, ok := binaries[name]; ok {
		return bin
	}
	if buildDir == "" {
		dir, err := os.MkdirTemp("", "ptsbridge-e2e-*")
		if err != nil {
			t.Fatalf("create build dir: %v", err)
		}
		buildDir = dir
	}

	binary := filepath.Join(buildDir, name)
	cmd := exec.Command("go", "build", "-o", binary, "./cmd/"+name)
	cmd.Dir = findRepoRoot(t)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go build ./cmd/%s failed: %v\n%s", name, err, out)
	}
	binaries[name] = binary
	return binary
}

func findRepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find repo root")
		}
		dir = parent
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

// writeFixtures writes the demo workspace and answers file into a temp dir.
func writeFixtures(t *testing.T) (workspace, answers string) {
	t.Helper()
	dir := t.TempDir()
	workspace, err := ptssim.WriteDemoWorkspace(dir)
	if err != nil {
		t.Fatalf("write demo workspace: %v", err)
	}
	answers = filepath.Join(dir, "answers.yaml")
	if err := os.WriteFile(answers, []byte(demoAnswers), 0o644); err != nil {
		t.Fatalf("write answers: %v", err)
	}
	return workspace, answers
}

// startServer runs binary with env added to the PTS_LISTEN_ADDR setting and
// waits for /healthz.
func startServer(t *testing.T, binary string, env ...string) *serverProc {
	t.Helper()

	addr := freeAddr(t)
	stdout := &lockedBuffer{}
	cmd := exec.Command(binary)
	cmd.Env = append(os.Environ(),
		"PTS_LISTEN_ADDR="+addr,
		"PTS_LOG_LEVEL=info",
		"PTS_SIM_DB="+filepath.Join(t.TempDir(), "sim.db"),
	)
	cmd.Env = append(cmd.Env, env...)
	cmd.Stdout = stdout
	cmd.Stderr = stdout

	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}

	sp := &serverProc{
		cmd:    cmd,
		stdout: stdout,
		url:    "http://" + addr,
	}

	t.Cleanup(func() {
		cmd.Process.Kill()
		cmd.Wait()
	})

	deadline := time.Now().Add(startupTimeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(sp.url + "/healthz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == 200 {
				return sp
			}
		}
		time.Sleep(pollInterval)
	}
	t.Fatalf("server did not become ready within %v\nstdout:\n%s", startupTimeout, stdout.String())
	return nil
}

func (sp *serverProc) postRun(t *testing.T, project, testCase string) (int, map[string]any) {
	t.Helper()
	body := fmt.Sprintf(`{"project":%q,"test_case":%q}`, project, testCase)
	resp, err := http.Post(sp.url+"/v1/runs", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /v1/runs: %v", err)
	}
	defer resp.Body.Close()
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, result
}

func (sp *serverProc) getRun(t *testing.T, id string) map[string]any {
	t.Helper()
	resp, err := http.Get(sp.url + "/v1/runs/" + id)
	if err != nil {
		t.Fatalf("GET run: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want 200\nbody: %s", resp.StatusCode, b)
	}
	var run map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return run
}

// waitTerminal polls a run until it is completed or failed.
func (sp *serverProc) waitTerminal(t *testing.T, id string, timeout time.Duration) map[string]any {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		run := sp.getRun(t, id)
		if run["status"] == "completed" || run["status"] == "failed" {
			return run
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("run %s did not finish within %v", id, timeout)
	return nil
}

// sseEvent represents a parsed SSE event with optional named type.
type sseEvent struct {
	Type string
	Data string
}

// readSSEEvents reads all SSE events from the response body, properly parsing
// named events (event: <type>) and data lines.
func readSSEEvents(t *testing.T, resp *http.Response) []sseEvent {
	t.Helper()
	scanner := bufio.NewScanner(resp.Body)
	var events []sseEvent
	var currentType string
	var currentData []string
	for scanner.Scan() {
		line := scanner.Text()
		if et, ok := strings.CutPrefix(line, "event: "); ok {
			currentType = et
		} else if data, ok := strings.CutPrefix(line, "data: "); ok {
			currentData = append(currentData, data)
		} else if line == "" && len(currentData) > 0 {
			events = append(events, sseEvent{Type: currentType, Data: strings.Join(currentData, "\n")})
			currentType = ""
			currentData = nil
		}
	}
	if len(currentData) > 0 {
		events = append(events, sseEvent{Type: currentType, Data: strings.Join(currentData, "\n")})
	}
	return events
}

// execCommand prepares binary with extra env and combined output capture.
func execCommand(binary string, out io.Writer, env ...string) *exec.Cmd {
	cmd := exec.Command(binary)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = out
	cmd.Stderr = out
	return cmd
}
