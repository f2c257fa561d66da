package main

import (
	"fmt"
	"github.com/spf13/cobra"
	"os"
)

var version = "dev" // replaced dynamically at build time

// device names, timezones and the output selection live here
const configFilePath = "mitherm.toml"

func main() {
	app := &cobra.Command{
		Use:     os.Args[0],
		Short:   "Xiaomi LYWSD02 clock sync and telemetry tool",
		Version: version,
	}

	app.AddCommand(scanEntry())
	app.AddCommand(syncEntry())
	app.AddCommand(configEntry())
	app.AddCommand(metricsServerEntry())

	if err := app.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
