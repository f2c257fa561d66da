package main

import (
	"fmt"
	"github.com/laphir/mitherm/pkg/deviceregistry"
	"github.com/laphir/mitherm/pkg/utils"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"os"
)

func showConfig() error {
	conf, err := deviceregistry.Load(configFilePath)
	if err != nil {
		return err
	}

	if len(conf.Devices) == 0 {
		fmt.Printf("No [[device]] defined in %s\n", configFilePath)
		return nil
	}

	fmt.Println("Configuration:")

	table := tablewriter.NewTable(os.Stdout)
	table.Header("Address", "Name", "Omit", "Timezone", "Offset_Seconds")

	for _, device := range conf.Devices {
		table.Append([]string{
			utils.FormatBluetoothAddress(uint64(device.Address)),
			stringOrDash(device.Name),
			boolOrDash(device.Omit),
			stringOrDash(device.Timezone),
			intOrDash(device.OffsetSeconds),
		})
	}

	table.Render()

	return nil
}

func stringOrDash(value *string) string {
	if value == nil {
		return "-"
	}

	return *value
}

func boolOrDash(value *bool) string {
	if value == nil {
		return "-"
	}

	return fmt.Sprintf("%t", *value)
}

func intOrDash(value *int) string {
	if value == nil {
		return "-"
	}

	return fmt.Sprintf("%d", *value)
}

func configEntry() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Read the device config file and print it",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := showConfig(); err != nil {
				panic(err)
			}
		},
	}
}
