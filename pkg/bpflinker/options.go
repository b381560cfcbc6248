// Package bpflinker drives the external bpf-linker that produces the
// relocatable object sbpfld re-links.
package bpflinker

import (
	"bufio"
	"bytes"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

var (
	// Cpus are the processors bpf-linker can target.
	Cpus = []string{"generic", "probe", "v1", "v2", "v3"}
	// OptLevels are the accepted -O values.
	OptLevels = []string{"0", "1", "2", "3", "s", "z"}
)

// Options mirrors the bpf-linker command line. Every field can be set from
// YAML and overridden by a flag.
type Options struct {
	// Linker is the bpf-linker binary to run.
	Linker string `yaml:"linker"`

	Cpu          string   `yaml:"cpu"`
	Output       string   `yaml:"output"`
	BTF          bool     `yaml:"btf"`
	AllowBPFTrap bool     `yaml:"allow_bpf_trap"`
	Libs         []string `yaml:"libs"`
	// Optimize may name several levels; the last one wins.
	Optimize          []string `yaml:"optimize"`
	ExportSymbols     string   `yaml:"export_symbols"`
	Export            []string `yaml:"export"`
	UnrollLoops       bool     `yaml:"unroll_loops"`
	IgnoreInlineNever bool     `yaml:"ignore_inline_never"`
	DumpModule        string   `yaml:"dump_module"`
	LLVMArgs          []string `yaml:"llvm_args"`

	DisableExpandMemcpyInOrder bool `yaml:"disable_expand_memcpy_in_order"`
	DisableMemoryBuiltins      bool `yaml:"disable_memory_builtins"`
	FatalErrors                bool `yaml:"fatal_errors"`

	Inputs []string `yaml:"inputs"`
}

func DefaultOptions() *Options {
	return &Options{
		Linker:      "bpf-linker",
		Cpu:         "generic",
		Optimize:    []string{"2"},
		FatalErrors: true,
	}
}

// OptLevel is the effective optimization level.
func (o *Options) OptLevel() string {
	if len(o.Optimize) == 0 {
		return "2"
	}
	return o.Optimize[len(o.Optimize)-1]
}

func (o *Options) Validate() error {
	if o.Linker == "" {
		return errors.New("no bpf-linker binary configured")
	}
	if !lo.Contains(Cpus, o.Cpu) {
		return errors.Errorf("unknown cpu %q, expected one of %s", o.Cpu, strings.Join(Cpus, ", "))
	}
	for _, level := range o.Optimize {
		if !lo.Contains(OptLevels, level) {
			return errors.Errorf("optimization level needs to be between 0-3, s or z (instead was `%s`)", level)
		}
	}
	if o.Output == "" {
		return errors.New("no output file given")
	}
	if len(o.Inputs) == 0 {
		return errors.New("no input files given")
	}
	return nil
}

// ExportedSymbols merges the newline separated symbols of ExportSymbols
// with the comma separated Export lists, dropping blanks and repeats.
func (o *Options) ExportedSymbols() ([]string, error) {
	var symbols []string

	if o.ExportSymbols != "" {
		contents, err := os.ReadFile(o.ExportSymbols)
		if err != nil {
			return nil, errors.Wrap(err, "reading export symbols")
		}
		scanner := bufio.NewScanner(bytes.NewReader(contents))
		for scanner.Scan() {
			symbols = append(symbols, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, errors.Wrapf(err, "reading %s", o.ExportSymbols)
		}
	}

	for _, list := range o.Export {
		symbols = append(symbols, strings.Split(list, ",")...)
	}

	symbols = lo.Map(symbols, func(s string, _ int) string { return strings.TrimSpace(s) })
	symbols = lo.Filter(symbols, func(s string, _ int) bool { return s != "" })
	return lo.Uniq(symbols), nil
}

// Args builds the bpf-linker argument vector. The object is always
// emitted for the bpf target so it can be re-linked afterwards.
func (o *Options) Args() ([]string, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}

	args := []string{"--target", "bpf", "--emit", "obj", "--cpu", o.Cpu, "-o", o.Output, "-O", o.OptLevel()}
	if o.BTF {
		args = append(args, "--btf")
	}
	if o.AllowBPFTrap {
		args = append(args, "--allow-bpf-trap")
	}
	for _, lib := range o.Libs {
		args = append(args, "-L", lib)
	}

	symbols, err := o.ExportedSymbols()
	if err != nil {
		return nil, err
	}
	if len(symbols) > 0 {
		args = append(args, "--export", strings.Join(symbols, ","))
	}

	if o.UnrollLoops {
		args = append(args, "--unroll-loops")
	}
	if o.IgnoreInlineNever {
		args = append(args, "--ignore-inline-never")
	}
	if o.DumpModule != "" {
		args = append(args, "--dump-module", o.DumpModule)
	}
	for _, arg := range o.LLVMArgs {
		args = append(args, "--llvm-args", arg)
	}
	if o.DisableExpandMemcpyInOrder {
		args = append(args, "--disable-expand-memcpy-in-order")
	}
	if o.DisableMemoryBuiltins {
		args = append(args, "--disable-memory-builtins")
	}
	if o.FatalErrors {
		args = append(args, "--fatal-errors", "true")
	} else {
		args = append(args, "--fatal-errors", "false")
	}

	return append(args, o.Inputs...), nil
}
