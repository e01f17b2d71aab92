package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"

	"mkwab/internal/logic"
	"mkwab/internal/roster"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRun_YAML(t *testing.T) {
	path := writeFile(t, "roster.yaml", `
- name: A
  rating: 7000
- name: B
  rating: 7100
- name: C
  rating: 6900
- name: D
  rating: 7200
`)
	var out, errOut bytes.Buffer

	err := run([]string{"-json", "-teams", "2,4", path}, nil, &out, &errOut)

	require.NoError(t, err)
	var got map[int]logic.Result
	require.NoError(t, jsoniter.Unmarshal(out.Bytes(), &got))
	require.Equal(t, []int{14100, 14100}, got[2].Sums)
	require.Equal(t, 0, *got[2].Spread)
	require.Len(t, got[4].Teams, 4)
	require.Equal(t, 300, *got[4].Spread)
}

func TestRun_BulkTextFromStdin(t *testing.T) {
	var out bytes.Buffer

	err := run([]string{"-"}, strings.NewReader("A：7000、B：7100\nC：6900、D：7200"), &out, &bytes.Buffer{})

	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out.String(), "🧩 2チーム編成（合計レート差: 0）"))
	require.Contains(t, out.String(), "チームB（合計: 14100）")
}

func TestRun_Errors(t *testing.T) {
	var out bytes.Buffer

	require.ErrorIs(t, run(nil, nil, &out, &out), errUsage)
	require.Error(t, run([]string{"-teams", "x", "-"}, strings.NewReader("a:1"), &out, &out))

	err := run([]string{"-teams", "3", "-"}, strings.NewReader("a:1, b:2"), &out, &out)
	require.ErrorIs(t, err, logic.ErrCapacity)

	err = run([]string{"-"}, strings.NewReader("a:1, b"), &out, &out)
	require.ErrorIs(t, err, roster.ErrNoSeparator)

	bad := writeFile(t, "bad.yml", "- name: ''\n  rating: 5\n")
	err = run([]string{bad}, nil, &out, &out)
	require.ErrorIs(t, err, roster.ErrEmptyName)
}
