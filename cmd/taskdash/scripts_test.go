package main

import (
	"testing"

	"github.com/amonks/taskdash/internal/testsupport"
	"github.com/rogpeppe/go-internal/testscript"
)

func runScripts(t *testing.T, dir string) {
	t.Helper()
	testscript.Run(t, testscript.Params{
		Dir: dir,
		Setup: func(env *testscript.Env) error {
			return testsupport.SetupScriptEnv(t, env)
		},
		Cmds: testsupport.ScriptCmds(),
	})
}

func TestAuthScripts(t *testing.T) {
	runScripts(t, "testdata/auth")
}

func TestTodoScripts(t *testing.T) {
	runScripts(t, "testdata/todo")
}

func TestHelpScripts(t *testing.T) {
	runScripts(t, "testdata/help")
}
