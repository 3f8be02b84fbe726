package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"asnblock/internal/config"
)

// RunConfig handles the "config" command: "init" writes a commented
// default file, "show" prints the effective configuration after
// defaults are applied.
func RunConfig(args []string) error {
	fs := pflag.NewFlagSet("config", pflag.ContinueOnError)
	configFile := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: config [flags] <init|show>")
	}

	switch fs.Arg(0) {
	case "init":
		cfg := config.Default()
		if err := cfg.WriteFile(*configFile); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", *configFile)
		return nil
	case "show":
		cfg, err := loadConfig(*configFile)
		if err != nil {
			return err
		}
		os.Stdout.Write(cfg.Render())
		return nil
	}
	return fmt.Errorf("unknown config subcommand %q", fs.Arg(0))
}
