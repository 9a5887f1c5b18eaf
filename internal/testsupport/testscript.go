package testsupport

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amonks/taskdash/api"
	"github.com/amonks/taskdash/internal/apitest"
	"github.com/amonks/taskdash/internal/credstore"
	"github.com/rogpeppe/go-internal/testscript"
)

var (
	buildOnce    sync.Once
	taskdashPath string
	buildErr     error
)

type serverKey struct{}

// BuildTaskdash builds the taskdash binary once and returns its path.
func BuildTaskdash(t testing.TB) string {
	t.Helper()

	buildOnce.Do(func() {
		moduleRoot, err := findModuleRoot()
		if err != nil {
			buildErr = err
			return
		}

		binDir, err := os.MkdirTemp("", "taskdash-bin-")
		if err != nil {
			buildErr = err
			return
		}

		taskdashPath = filepath.Join(binDir, "taskdash")
		cmd := exec.Command("go", "build", "-o", taskdashPath, "./cmd/taskdash")
		cmd.Dir = moduleRoot
		output, err := cmd.CombinedOutput()
		if err != nil {
			buildErr = fmt.Errorf("build taskdash: %w: %s", err, strings.TrimSpace(string(output)))
		}
	})

	if buildErr != nil {
		t.Fatalf("%v", buildErr)
	}

	return taskdashPath
}

// SetupScriptEnv gives each script its own home, runtime dir and fake API
// server, and exposes the binary as $TASKDASH.
func SetupScriptEnv(t testing.TB, env *testscript.Env) error {
	t.Helper()

	env.Setenv("TASKDASH", BuildTaskdash(t))

	homeDir := filepath.Join(env.WorkDir, "home")
	if err := EnsureHomeDirs(homeDir); err != nil {
		return err
	}
	env.Setenv("HOME", homeDir)

	runtimeDir := filepath.Join(env.WorkDir, "run")
	if err := os.MkdirAll(runtimeDir, 0o700); err != nil {
		return err
	}
	env.Setenv("XDG_RUNTIME_DIR", runtimeDir)
	env.Setenv("NO_COLOR", "1")

	server := apitest.NewServer()
	env.Defer(server.Close)
	env.Values[serverKey{}] = server
	env.Setenv("TASKDASH_API_URL", server.URL)
	return nil
}

// ScriptServer returns the fake API server of the running script.
func ScriptServer(ts *testscript.TestScript) *apitest.Server {
	server, ok := ts.Value(serverKey{}).(*apitest.Server)
	if !ok {
		ts.Fatalf("no api server; use SetupScriptEnv")
	}
	return server
}

// ScriptCmds returns the custom commands shared by the CLI scripts.
func ScriptCmds() map[string]func(ts *testscript.TestScript, neg bool, args []string) {
	return map[string]func(ts *testscript.TestScript, neg bool, args []string){
		"envset":    CmdEnvSet,
		"todoid":    CmdTodoID,
		"apiuser":   CmdAPIUser,
		"apiotp":    CmdAPIOTP,
		"apiseed":   CmdAPISeed,
		"apifail":   CmdAPIFail,
		"apirevoke": CmdAPIRevoke,
		"otpsent":   CmdOTPSent,
	}
}

// CmdEnvSet stores the trimmed contents of a file in an env var.
func CmdEnvSet(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("envset does not support negation")
	}
	if len(args) != 2 {
		ts.Fatalf("usage: envset VAR FILE")
	}

	value := strings.TrimSpace(ts.ReadFile(args[1]))
	ts.Setenv(args[0], value)
}

// CmdTodoID finds a todo by title in a `todo list --json` dump and stores
// its ID in an env var.
func CmdTodoID(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("todoid does not support negation")
	}
	if len(args) != 3 {
		ts.Fatalf("usage: todoid FILE TITLE VAR")
	}

	var items []api.Todo
	data := ts.ReadFile(args[0])
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		ts.Fatalf("parse todo list: %v", err)
	}

	title := args[1]
	for _, item := range items {
		if item.Title == title {
			ts.Setenv(args[2], strconv.FormatInt(item.ID, 10))
			return
		}
	}

	ts.Fatalf("todo with title %q not found", title)
}

// CmdAPIUser adds a verified account to the fake server.
func CmdAPIUser(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("apiuser does not support negation")
	}
	if len(args) != 4 {
		ts.Fatalf("usage: apiuser FIRST LAST EMAIL PASSWORD")
	}
	ScriptServer(ts).AddUser(args[0], args[1], args[2], args[3])
}

// CmdAPIOTP stores the code the fake server sent to EMAIL in an env var.
// With ! it asserts that no code is pending.
func CmdAPIOTP(ts *testscript.TestScript, neg bool, args []string) {
	if len(args) != 2 {
		ts.Fatalf("usage: apiotp EMAIL VAR")
	}
	code, ok := ScriptServer(ts).OTP(args[0])
	if neg {
		if ok {
			ts.Fatalf("unexpected pending code for %s", args[0])
		}
		return
	}
	if !ok {
		ts.Fatalf("no pending code for %s", args[0])
	}
	ts.Setenv(args[1], code)
}

// CmdAPISeed stores a todo for OWNER directly on the fake server.
func CmdAPISeed(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("apiseed does not support negation")
	}
	if len(args) < 2 || len(args) > 4 {
		ts.Fatalf("usage: apiseed OWNER TITLE [STATUS [DUE]]")
	}
	item := api.Todo{
		Title:       args[1],
		Description: args[1],
		Status:      api.StatusPending,
		Priority:    api.PriorityMedium,
	}
	if len(args) > 2 {
		item.Status = api.Status(args[2])
	}
	if len(args) > 3 {
		due, err := api.ParseDate(args[3])
		if err != nil {
			ts.Fatalf("parse due date: %v", err)
		}
		item.DueDate = &due
	}
	ScriptServer(ts).SeedTodo(args[0], item)
}

// CmdAPIFail makes ROUTE answer with STATUS until recovered with
// `apifail ROUTE off`.
func CmdAPIFail(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("apifail does not support negation")
	}
	if len(args) != 3 {
		ts.Fatalf("usage: apifail METHOD PATH STATUS|off")
	}
	route := args[0] + " " + args[1]
	if args[2] == "off" {
		ScriptServer(ts).Recover(route)
		return
	}
	status, err := strconv.Atoi(args[2])
	if err != nil {
		ts.Fatalf("parse status: %v", err)
	}
	ScriptServer(ts).Fail(route, status)
}

// CmdAPIRevoke invalidates every token the fake server issued to EMAIL.
func CmdAPIRevoke(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("apirevoke does not support negation")
	}
	if len(args) != 1 {
		ts.Fatalf("usage: apirevoke EMAIL")
	}
	ScriptServer(ts).RevokeTokens(args[0])
}

// CmdOTPSent backdates the recorded send time of the pending code by AGE,
// as if the script had waited that long.
func CmdOTPSent(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("otpsent does not support negation")
	}
	if len(args) != 1 {
		ts.Fatalf("usage: otpsent AGE")
	}
	age, err := time.ParseDuration(args[0])
	if err != nil {
		ts.Fatalf("parse age: %v", err)
	}
	stateDir := filepath.Join(ts.Getenv("HOME"), ".local", "state", "taskdash")
	store := &credstore.Store{Durable: credstore.NewFileBackend(stateDir, "local.json")}
	if err := store.MarkOTPSent(time.Now().Add(-age)); err != nil {
		ts.Fatalf("record otp send time: %v", err)
	}
}

func findModuleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find module root (go.mod)")
		}
		dir = parent
	}
}
