package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/danmuck/framelink/internal/config"
	"github.com/danmuck/framelink/internal/observability"
	"github.com/rs/zerolog/log"
)

type options struct {
	input    string
	output   string
	template string
	validate string
	force    bool
}

func main() {
	observability.InitLogger("whitelistgen")
	var opts options
	flag.StringVar(&opts.input, "input", "whitelist.yaml", "YAML origin source, or the config to validate")
	flag.StringVar(&opts.output, "output", "whitelist.toml", "output path for the hash list or template")
	flag.StringVar(&opts.template, "template", "", "write a config template: host|embedded|whitelist")
	flag.StringVar(&opts.validate, "validate", "", "validate -input as: host|embedded|whitelist")
	flag.BoolVar(&opts.force, "force", false, "overwrite existing output")
	flag.Parse()

	if err := run(opts, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("whitelistgen failed")
	}
}

func run(opts options, out io.Writer) error {
	switch {
	case opts.validate != "":
		if err := validate(opts.validate, opts.input); err != nil {
			return err
		}
		fmt.Fprintf(out, "validated %s config at %s\n", opts.validate, opts.input)
		return nil
	case opts.template != "":
		if err := config.WriteTemplate(opts.output, opts.template, opts.force); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s template to %s\n", opts.template, opts.output)
		return nil
	}

	src, err := config.LoadWhitelistSource(opts.input)
	if err != nil {
		return err
	}
	if err := config.WriteWhitelistFile(opts.output, src, opts.force); err != nil {
		return err
	}
	log.Info().
		Str("input", opts.input).
		Str("output", opts.output).
		Int("origins", len(src.Origins)).
		Msg("whitelist generated")
	return nil
}

func validate(kind, path string) error {
	var err error
	switch kind {
	case "host":
		_, err = config.LoadHostConfig(path)
	case "embedded":
		_, err = config.LoadEmbeddedConfig(path)
	case "whitelist":
		_, err = config.LoadWhitelistFile(path)
	case "source":
		_, err = config.LoadWhitelistSource(path)
	default:
		err = fmt.Errorf("unknown config kind: %s", kind)
	}
	return err
}
