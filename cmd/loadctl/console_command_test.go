package main

import (
	"net/http"
	"strings"
	"testing"

	"loadctl/internal/testsupport"
)

func TestConsoleDrivesOneSession(t *testing.T) {
	env := setupCLITestEnv(t)
	stubCycle(env)
	capture := testsupport.WriteCapture(t, env.baseDir, "capture.har")

	script := strings.Join([]string{
		"help",
		"generate",
		"select " + capture,
		"upload",
		"convert",
		"host My Host!",
		"generate",
		"host api.example.com",
		"generate",
		"actions",
		"status",
		"clear",
		"bogus",
		"quit",
	}, "\n") + "\n"

	out, _, err := env.run(t, script, "console")
	if err != nil {
		t.Fatalf("console: %v", err)
	}
	for _, want := range []string{
		"loadctl console connected to " + env.backend.URL,
		"select PATH",
		"Please convert the file first to get flow data",
		"capture.har",
		"Upload successful!",
		"Convert successful!",
		"Host must not contain spaces",
		"Generate successful! Script created: capture.py",
		"Cleared",
		`unknown command "bogus"`,
	} {
		requireContains(t, out, want)
	}
	if env.backend.Count(http.MethodPost, "/generate") != 1 {
		t.Fatalf("expected exactly one generate request, got %d", env.backend.Count(http.MethodPost, "/generate"))
	}
}

func TestConsoleEndsOnEOF(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithoutLogDir())
	if _, _, err := env.run(t, "status\n", "console"); err != nil {
		t.Fatalf("console: %v", err)
	}
}
