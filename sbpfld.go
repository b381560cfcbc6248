package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/common/version"
	"gopkg.in/alecthomas/kingpin.v2"

	"sbpfld/pkg/bpflinker"
	"sbpfld/pkg/linker"
	"sbpfld/pkg/utils"
)

var cfg struct {
	verbose bool
	link    struct {
		input  string
		output string
	}
}

var (
	consoleOutput = os.Stderr
	logger        = log.NewLogfmtLogger(consoleOutput)
)

func main() {
	buildOpts := bpflinker.DefaultOptions()
	if path := bpflinker.ConfigFileFromArgs(os.Args[1:]); path != "" {
		utils.MustNo(bpflinker.LoadConfig(path, buildOpts))
	}

	app := kingpin.New(filepath.Base(os.Args[0]), "Re-links BPF relocatable objects into SBPF programs.").UsageWriter(os.Stdout)
	app.Version(version.Print("sbpfld"))
	app.HelpFlag.Short('h')
	app.Flag("verbose", "Enable verbose logging.").Short('v').Default("false").BoolVar(&cfg.verbose)

	linkCmd := app.Command("link", "Re-link one relocatable object.")
	linkCmd.Arg("input", "The relocatable object to re-link.").Required().ExistingFileVar(&cfg.link.input)
	linkCmd.Flag("output", "Where to write the program. Defaults to <stem>.so next to the input.").Short('o').StringVar(&cfg.link.output)

	buildCmd := app.Command("build", "Run bpf-linker, then re-link the object it produced.")
	bpflinker.RegisterFlags(buildCmd, buildOpts)

	// parse command line arguments
	parsedCmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	// enable verbose logging if requested
	if !cfg.verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	switch parsedCmd {
	case linkCmd.FullCommand():
		if err := link(cfg.link.input, cfg.link.output); err != nil {
			utils.Fatal(err)
		}
	case buildCmd.FullCommand():
		if _, err := bpflinker.Build(ctx, logger, buildOpts, linker.NewLinker(logger)); err != nil {
			utils.Fatal(err)
		}
	default:
		level.Error(logger).Log("msg", "unknown command", "cmd", parsedCmd)
	}
}

func link(input, output string) error {
	if output == "" {
		output = linker.DefaultOutputPath(input)
	}

	level.Info(logger).Log("msg", "linking", "input", input)
	out, err := linker.NewLinker(logger).LinkFile(input)
	if err != nil {
		return err
	}

	level.Info(logger).Log("msg", "writing output", "output", output)
	if err := os.WriteFile(output, out, 0o755); err != nil {
		return errors.Wrapf(err, "writing %s", output)
	}
	level.Info(logger).Log("msg", "successfully linked", "bytes", len(out))
	return nil
}
