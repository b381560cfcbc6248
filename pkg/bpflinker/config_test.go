package bpflinker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/alecthomas/kingpin.v2"
)

func TestConfigFileFromArgs(t *testing.T) {
	for _, tc := range []struct {
		args []string
		want string
	}{
		{args: []string{"build", "--config.file", "sbpf.yaml", "a.o"}, want: "sbpf.yaml"},
		{args: []string{"build", "--config.file=other.yaml"}, want: "other.yaml"},
		{args: []string{"build", "a.o"}, want: ""},
		{args: []string{"build", "--config.file"}, want: ""},
		{args: []string{"build", "--", "--config.file=x"}, want: ""},
	} {
		assert.Equal(t, tc.want, ConfigFileFromArgs(tc.args), "%v", tc.args)
	}
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sbpf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
cpu: v3
output: out/prog.o
btf: true
optimize: ["z"]
libs: [deps]
inputs: [main.o]
`)

	opts := DefaultOptions()
	require.NoError(t, LoadConfig(path, opts))
	assert.Equal(t, "v3", opts.Cpu)
	assert.Equal(t, "out/prog.o", opts.Output)
	assert.True(t, opts.BTF)
	assert.Equal(t, []string{"z"}, opts.Optimize)
	assert.Equal(t, []string{"deps"}, opts.Libs)
	assert.Equal(t, []string{"main.o"}, opts.Inputs)
	// Keys missing from the file keep their defaults.
	assert.Equal(t, "bpf-linker", opts.Linker)
	assert.True(t, opts.FatalErrors)
}

func TestLoadConfigErrors(t *testing.T) {
	opts := DefaultOptions()
	require.Error(t, LoadConfig(writeConfig(t, "cpus: v3\n"), opts))
	require.Error(t, LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), opts))
	require.NoError(t, LoadConfig(writeConfig(t, ""), opts))
}

func parseFlags(t *testing.T, opts *Options, args ...string) {
	t.Helper()
	app := kingpin.New("test", "")
	cmd := app.Command("build", "")
	RegisterFlags(cmd, opts)
	_, err := app.Parse(append([]string{"build"}, args...))
	require.NoError(t, err)
}

func TestRegisterFlags(t *testing.T) {
	opts := DefaultOptions()
	parseFlags(t, opts, "-o", "prog.o", "-O", "1", "-O", "3", "-L", "a", "-L", "b", "--btf", "--no-fatal-errors", "x.o", "y.o")

	assert.Equal(t, "generic", opts.Cpu)
	assert.Equal(t, "prog.o", opts.Output)
	assert.Equal(t, []string{"1", "3"}, opts.Optimize)
	assert.Equal(t, "3", opts.OptLevel())
	assert.Equal(t, []string{"a", "b"}, opts.Libs)
	assert.True(t, opts.BTF)
	assert.False(t, opts.FatalErrors)
	assert.Equal(t, []string{"x.o", "y.o"}, opts.Inputs)
	require.NoError(t, opts.Validate())
}

func TestRegisterFlagsConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
cpu: v2
output: from-config.o
optimize: ["s"]
libs: [config-lib]
inputs: [config.o]
`)
	opts := DefaultOptions()
	require.NoError(t, LoadConfig(path, opts))

	parseFlags(t, opts, "--config.file", path, "-L", "flag-lib")

	// Flags replace values from the file; the rest come from the file.
	assert.Equal(t, []string{"flag-lib"}, opts.Libs)
	assert.Equal(t, "v2", opts.Cpu)
	assert.Equal(t, "from-config.o", opts.Output)
	assert.Equal(t, []string{"s"}, opts.Optimize)
	assert.Equal(t, []string{"config.o"}, opts.Inputs)
}

func TestRegisterFlagsRejectsUnknownCpu(t *testing.T) {
	app := kingpin.New("test", "")
	RegisterFlags(app.Command("build", ""), DefaultOptions())
	_, err := app.Parse([]string{"build", "--cpu", "v9", "a.o"})
	require.Error(t, err)
}
