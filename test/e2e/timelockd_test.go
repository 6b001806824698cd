package e2e

import (
	"bufio"
	"encoding/json"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/seantiz/timelock/internal/model"
)

// timelockdEnv configures timelockd against a SQLite store in a temp dir.
// A zero minimum delay lets the test execute without waiting on the wall
// clock.
func timelockdEnv(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	return []string{
		"TIMELOCK_CONFIG=",
		"TIMELOCK_STORE_DRIVER=sqlite",
		"TIMELOCK_STORE_SQLITE_PATH=" + filepath.Join(dir, "timelock.db"),
		"TIMELOCK_JOURNAL_PATH=" + filepath.Join(dir, "journal.db"),
		"TIMELOCK_AUTH_JWT_SECRET=e2e-secret",
		"TIMELOCK_MIN_DELAY=0",
		"TIMELOCK_ADMIN=ops",
		"TIMELOCK_LOG_LEVEL=info",
	}
}

func mintToken(t *testing.T, binary string, env []string, subject string) string {
	t.Helper()
	cmd := exec.Command(binary, "token", "--subject", subject, "--ttl", "10m")
	cmd.Env = append(os.Environ(), env...)
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("timelockd token: %v", err)
	}
	return strings.TrimSpace(string(out))
}

func TestTimelockdServeExecutesAfterDelay(t *testing.T) {
	binary := getBinary(t, "timelockd")
	env := timelockdEnv(t)
	sp := startServer(t, binary, env, "serve")
	tok := mintToken(t, binary, env, "ops")
	id := model.OperationID("deploy-42").Hex()

	var admin struct {
		Admin string `json:"admin"`
	}
	mustStatus(t, call(t, "GET", sp.url+"/v1/admin", "", nil, &admin), http.StatusOK, "admin")
	if admin.Admin != "ops" {
		t.Errorf("admin = %q, want ops", admin.Admin)
	}

	mustStatus(t, call(t, "POST", sp.url+"/v1/operations", tok, map[string]any{"id": id, "delay": 0}, nil), http.StatusCreated, "queue")
	mustStatus(t, call(t, "POST", opURL(sp.url, id, "execute"), tok, nil, nil), http.StatusOK, "execute")
	mustStatus(t, call(t, "POST", opURL(sp.url, id, "execute"), tok, nil, nil), http.StatusNotFound, "replay")
}

func TestTimelockdStructuredJSONLogs(t *testing.T) {
	binary := getBinary(t, "timelockd")
	sp := startServer(t, binary, timelockdEnv(t), "serve")

	resp, err := http.Get(sp.url + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(sp.stdout.String(), `"msg":"request"`) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	scanner := bufio.NewScanner(strings.NewReader(sp.stdout.String()))
	found := false
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if entry["msg"] == "request" {
			found = true
			for _, key := range []string{"method", "path", "status", "duration_ms", "request_id"} {
				if _, ok := entry[key]; !ok {
					t.Errorf("request log missing key %q", key)
				}
			}
			break
		}
	}
	if !found {
		t.Errorf("no JSON request log found in output:\n%s", sp.stdout.String())
	}
}

func TestTimelockdRefusesDifferentAdmin(t *testing.T) {
	binary := getBinary(t, "timelockd")
	env := timelockdEnv(t)

	initCmd := exec.Command(binary, "init", "--admin", "someone-else")
	initCmd.Env = append(os.Environ(), env...)
	if out, err := initCmd.CombinedOutput(); err != nil {
		t.Fatalf("timelockd init: %v\n%s", err, out)
	}

	serve := exec.Command(binary, "serve")
	serve.Env = append(append(os.Environ(), env...), "TIMELOCK_LISTEN_ADDR="+freeAddr(t))
	out, err := serve.CombinedOutput()
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("serve err = %v, want exit error\n%s", err, out)
	}
	if exitErr.ExitCode() != 1 {
		t.Errorf("exit code = %d, want 1", exitErr.ExitCode())
	}
	if !strings.Contains(string(out), "already_initialized") {
		t.Errorf("output missing already_initialized:\n%s", out)
	}
}
