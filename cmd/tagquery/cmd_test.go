package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTokens(t *testing.T) {
	out, err := run(t, "tokens", "aaa -( bbb )")
	require.NoError(t, err)
	require.Equal(t, "0\ttTERM\taaa\n4\ttLPAREN\t-(\n7\ttTERM\tbbb\n11\ttRPAREN\t)\n", out)
}

func TestIR(t *testing.T) {
	out, err := run(t, "ir", "aaa -( bbb ) score:>5")
	require.NoError(t, err)
	require.Equal(t, "aaa -( bbb ) score:>5\n", out)

	out, err = run(t, "ir", "-v", "aaa")
	require.NoError(t, err)
	require.Equal(t, "GROUP(INCLUDE(aaa))\n", out)
}

func TestCompile(t *testing.T) {
	out, err := run(t, "compile", "--always-show-deleted", "aaa")
	require.NoError(t, err)
	require.JSONEq(t, `{
		"query":{"bool":{"must":{"term":{"tags":"aaa"}}}},
		"sort":[{"id":{"order":"desc"}}]}`, out)

	_, err = run(t, "compile", "--max-tags", "1", "aaa bbb")
	require.Error(t, err)
	require.Contains(t, err.Error(), "too many tags")
}

func TestCompileWithConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tagquery.toml")
	require.NoError(t, os.WriteFile(path, []byte("strict_metatags = true\n[log]\nlevel = \"error\"\n"), 0o600))

	_, err := run(t, "compile", "-c", path, "colour:red")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown metatag")

	_, err = run(t, "compile", "-c", filepath.Join(t.TempDir(), "missing.toml"), "aaa")
	require.Error(t, err)
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"took":1,"hits":{"total":{"value":2,"relation":"eq"},"hits":[{"_id":"3"},{"_id":"1"}]}}`)
	}))
	defer srv.Close()

	out, err := run(t, "search", "--url", srv.URL, "aaa")
	require.NoError(t, err)
	require.Equal(t, "aaa\t2\t3,1\n", out)

	out, err = run(t, "search", "--url", srv.URL, "aaa", "bbb")
	require.NoError(t, err)
	require.Equal(t, "aaa\t2\t3,1\nbbb\t2\t3,1\n", out)
}
