package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	old := os.Stdout
	defer func() { os.Stdout = old }()

	r, w, _ := os.Pipe()
	os.Stdout = w

	done := make(chan struct{})
	var buf bytes.Buffer
	go func() { _, _ = io.Copy(&buf, r); close(done) }()

	err := fn()
	_ = w.Close()
	<-done
	return buf.String(), err
}

func TestHelp(t *testing.T) {
	out, err := captureStdout(t, func() error {
		return run([]string{"help", "serve"})
	})
	require.NoError(t, err)
	require.Contains(t, out, "serve FLAGS")
}

func TestMissingCommand(t *testing.T) {
	err := run(nil)
	require.Error(t, err)
}

func TestUnknownCommand(t *testing.T) {
	err := run([]string{"bogus"})
	require.Error(t, err)
}

func TestCompileSDL(t *testing.T) {
	dir := t.TempDir()
	aPath := filepath.Join(dir, "a.graphql")
	bPath := filepath.Join(dir, "b.graphql")
	require.NoError(t, os.WriteFile(aPath, []byte(`type Query { a: Int } type User { id: ID name: String }`), 0644))
	require.NoError(t, os.WriteFile(bPath, []byte(`type Query { b: Int } type User { id: ID email: String }`), 0644))

	out, err := captureStdout(t, func() error {
		return run([]string{"compile-sdl", "-schema", "A=" + aPath, "-schema", "B=" + bPath})
	})
	require.NoError(t, err)
	require.Contains(t, out, "type Query")
	require.Contains(t, out, "name: String")
	require.Contains(t, out, "email: String")
}

func TestCompileSDLRequiresSchemas(t *testing.T) {
	err := run([]string{"compile-sdl"})
	require.Error(t, err)
}

func TestServeRequiresSubschemaMapping(t *testing.T) {
	err := run([]string{"serve"})
	require.Error(t, err)
}

func TestPairFlagRejectsMalformedMapping(t *testing.T) {
	var p pairFlag
	require.Error(t, p.Set("no-equals"))
	require.Error(t, p.Set("=url"))
	require.NoError(t, p.Set("A=http://localhost:1"))
	require.Equal(t, []string{"A"}, p.order)
}
