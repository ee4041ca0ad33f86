package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	networkDir  = filepath.Join("testdata", "network")
	trafficSpec = filepath.Join("testdata", "network", "traffic.cue")
	loopSpec    = filepath.Join("testdata", "network", "loop.cue")
	invalidSpec = filepath.Join("testdata", "invalid.cue")
)

// execute runs the root command with args and returns what it wrote to
// stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// decode parses a JSON response written by a command.
func decode(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), "output: %s", out)
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "fsmnet", cmd.Use)
	assert.Contains(t, cmd.Long, "decision graph")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"compile", "validate", "run", "post", "replay", "test", "trace"}

	for _, name := range commands {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err, "command %s should exist", name)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command  string
		flag     string
		short    string
		defValue string
	}{
		{command: "compile", flag: "output", short: "o"},
		{command: "compile", flag: "dot", defValue: "false"},
		{command: "compile", flag: "namespace", short: "n"},
		{command: "compile", flag: "exhaustive-limit", defValue: "6"},
		{command: "run", flag: "db", defValue: ":memory:"},
		{command: "run", flag: "events", short: "e"},
		{command: "run", flag: "resume", defValue: "false"},
		{command: "post", flag: "attrs", defValue: "{}"},
		{command: "trace", flag: "root"},
		{command: "replay", flag: "instance"},
		{command: "test", flag: "filter"},
	}

	root := NewRootCommand()
	for _, tt := range tests {
		t.Run(tt.command+"/"+tt.flag, func(t *testing.T) {
			sub, _, err := root.Find([]string{tt.command})
			require.NoError(t, err)
			f := sub.Flags().Lookup(tt.flag)
			require.NotNil(t, f)
			assert.Equal(t, tt.short, f.Shorthand)
			if tt.defValue != "" {
				assert.Equal(t, tt.defValue, f.DefValue)
			}
		})
	}
}

func TestRequiredDatabase(t *testing.T) {
	for _, args := range [][]string{
		{"trace"},
		{"replay", trafficSpec},
		{"post", trafficSpec, "Tick"},
	} {
		t.Run(args[0], func(t *testing.T) {
			_, _, err := execute(t, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), `required flag(s) "db" not set`)
		})
	}
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := execute(t, "validate", trafficSpec, "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat("yaml"))
	assert.False(t, isValidFormat(""))
}

func TestRootOptions_Logger(t *testing.T) {
	buf := &bytes.Buffer{}

	(&RootOptions{}).Logger(buf).Debug("hidden")
	assert.Empty(t, buf.String())

	(&RootOptions{Verbose: true}).Logger(buf).Debug("shown", "k", 1)
	assert.Contains(t, buf.String(), "level=DEBUG msg=shown k=1")
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "fsmnet version "+Version+"\n", out)
}
