package main

import (
	"fmt"
	"os"
	"time"

	"github.com/cfoust/kart/pkg/config"
	"github.com/cfoust/kart/pkg/version"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var CLI struct {
	Version bool `help:"Print version information and exit." short:"v"`
	Debug   bool `help:"Whether to enable debug logging."`

	Serve struct {
		Configs []string `arg:"" optional:"" name:"configs" help:"Configuration files for the server." type:"file"`
	} `cmd:"" help:"Start the kart race server."`

	Config struct {
		Resolved bool     `help:"Print the configuration that results from merging the given files instead of the default."`
		Configs  []string `arg:"" optional:"" name:"configs" help:"Configuration files to merge." type:"file"`
	} `cmd:"" help:"Write kart's configuration to standard output."`
}

func writeError(err error) {
	fmt.Fprintf(os.Stderr, "%s\n", err)
	os.Exit(1)
}

func configCommand(resolved bool, configs []string) error {
	if !resolved {
		_, err := os.Stdout.Write(config.DEFAULT)
		return err
	}

	resolvedConfig, err := config.Process(configPaths(configs))
	if err != nil {
		return err
	}

	data, err := config.Marshal(resolvedConfig)
	if err != nil {
		return err
	}

	_, err = os.Stdout.Write(data)
	return err
}

func main() {
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log.Logger = log.Output(consoleWriter)

	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if len(os.Args) == 1 {
		err := serveCommand([]string{})
		if err != nil {
			writeError(err)
		}
		return
	}

	ctx := kong.Parse(&CLI,
		kong.Name("kart"),
		kong.Description("an authoritative kart racing server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}))

	if CLI.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Warn().Msg("debug logging enabled")
	}

	if CLI.Version {
		fmt.Printf(
			"kart %s (commit %s)\n",
			version.Version,
			version.GitCommit,
		)
		fmt.Printf(
			"built %s\n",
			version.BuildTime,
		)
		os.Exit(0)
	}

	var err error
	switch ctx.Command() {
	case "serve", "serve <configs>":
		err = serveCommand(CLI.Serve.Configs)
	case "config", "config <configs>":
		err = configCommand(CLI.Config.Resolved, CLI.Config.Configs)
	}
	if err != nil {
		writeError(err)
	}
}
