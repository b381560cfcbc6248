package bpflinker

import (
	"bytes"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/alecthomas/kingpin.v2"
	"gopkg.in/yaml.v3"
)

const ConfigFileFlag = "config.file"

// ConfigFileFromArgs finds --config.file before kingpin parses the command
// line, so the file's values can become flag defaults.
func ConfigFileFromArgs(args []string) string {
	prefix := "--" + ConfigFileFlag
	for i, arg := range args {
		if arg == "--" {
			break
		}
		if arg == prefix && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(arg, prefix+"="); ok {
			return v
		}
	}
	return ""
}

// LoadConfig overlays the YAML file at path onto opts. Unknown keys are
// rejected.
func LoadConfig(path string, opts *Options) error {
	contents, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading config file")
	}

	dec := yaml.NewDecoder(bytes.NewReader(contents))
	dec.KnownFields(true)
	if err := dec.Decode(opts); err != nil && !errors.Is(err, io.EOF) {
		return errors.Wrapf(err, "parsing config file %s", path)
	}
	return nil
}

// RegisterFlags adds the bpf-linker flags to cmd, using the current values
// of opts as defaults. Repeatable flags start empty so that values given
// on the command line replace the defaults instead of extending them.
func RegisterFlags(cmd *kingpin.CmdClause, opts *Options) {
	libs, optimize, export, llvmArgs, inputs := opts.Libs, opts.Optimize, opts.Export, opts.LLVMArgs, opts.Inputs
	opts.Libs, opts.Optimize, opts.Export, opts.LLVMArgs, opts.Inputs = nil, nil, nil, nil, nil

	cmd.Flag(ConfigFileFlag, "YAML file with default values for the flags below.").PlaceHolder("FILE").String()
	cmd.Flag("linker", "bpf-linker binary to run.").Default(opts.Linker).StringVar(&opts.Linker)
	cmd.Flag("cpu", "Target BPF processor. One of "+strings.Join(Cpus, ", ")+".").Default(opts.Cpu).EnumVar(&opts.Cpu, Cpus...)
	cmd.Flag("output", "Write the intermediate object to FILE. The program is written next to it as <stem>.so.").Short('o').Default(opts.Output).StringVar(&opts.Output)
	cmd.Flag("btf", "Emit BTF information.").Default(strconv.FormatBool(opts.BTF)).BoolVar(&opts.BTF)
	cmd.Flag("allow-bpf-trap", "Permit automatic insertion of __bpf_trap calls.").Default(strconv.FormatBool(opts.AllowBPFTrap)).BoolVar(&opts.AllowBPFTrap)
	cmd.Flag("lib", "Add a directory to the library search path.").Short('L').Default(libs...).StringsVar(&opts.Libs)
	cmd.Flag("optimize", "Optimization level. 0-3, s, or z. The last one wins.").Short('O').Default(optimize...).StringsVar(&opts.Optimize)
	cmd.Flag("export-symbols", "Export the newline separated symbols listed in FILE.").PlaceHolder("FILE").Default(opts.ExportSymbols).StringVar(&opts.ExportSymbols)
	cmd.Flag("export", "Comma separated list of symbols to export.").Default(export...).StringsVar(&opts.Export)
	cmd.Flag("unroll-loops", "Try hard to unroll loops.").Default(strconv.FormatBool(opts.UnrollLoops)).BoolVar(&opts.UnrollLoops)
	cmd.Flag("ignore-inline-never", "Ignore noinline attributes.").Default(strconv.FormatBool(opts.IgnoreInlineNever)).BoolVar(&opts.IgnoreInlineNever)
	cmd.Flag("dump-module", "Dump the final IR module to FILE before generating code.").PlaceHolder("FILE").Default(opts.DumpModule).StringVar(&opts.DumpModule)
	cmd.Flag("llvm-args", "Extra command line arguments to pass to LLVM.").Default(llvmArgs...).StringsVar(&opts.LLVMArgs)
	cmd.Flag("disable-expand-memcpy-in-order", "Do not pass --bpf-expand-memcpy-in-order to LLVM.").Default(strconv.FormatBool(opts.DisableExpandMemcpyInOrder)).BoolVar(&opts.DisableExpandMemcpyInOrder)
	cmd.Flag("disable-memory-builtins", "Do not export memcpy, memmove, memset, memcmp and bcmp.").Default(strconv.FormatBool(opts.DisableMemoryBuiltins)).BoolVar(&opts.DisableMemoryBuiltins)
	cmd.Flag("fatal-errors", "Treat LLVM errors as fatal.").Default(strconv.FormatBool(opts.FatalErrors)).BoolVar(&opts.FatalErrors)
	cmd.Arg("inputs", "Object files or static libraries.").Default(inputs...).StringsVar(&opts.Inputs)
}
