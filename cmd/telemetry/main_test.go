package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("TELEMETRY_STORAGE_IN_MEMORY", "true")
	t.Setenv("TELEMETRY_LOG_LEVEL", "error")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		listJSON = false
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestFunctionsCommand(t *testing.T) {
	out, err := run(t, "functions")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Div")
	assert.Contains(t, out, "left, right")
}

func TestReducersCommandJSON(t *testing.T) {
	out, err := run(t, "reducers", "--json")
	require.NoError(t, err)

	var list []struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.NotEmpty(t, list)

	var names []string
	for _, r := range list {
		names = append(names, r.Name)
	}
	assert.Contains(t, names, "UnitTest")
}

func TestEvalCommand(t *testing.T) {
	out, err := run(t, "eval", "DevTimeChart", "bob",
		"--project", "alice/hackystat", "--start", "2024-03-04", "--end", "2024-03-05")
	require.NoError(t, err)

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.Equal(t, "chart", res["kind"])
	assert.Equal(t, "Development Time", res["chart"].(map[string]any)["title"])
}

func TestEvalCommandErrors(t *testing.T) {
	_, err := run(t, "eval", "DevTimeChart", "--project", "nobody")
	assert.Error(t, err)

	_, err = run(t, "eval", "Missing", "--project", "alice/hackystat", "--start", "2024-03-04", "--end", "2024-03-04")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "Missing"), err.Error())
}
