package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/function61/gokit/logger"
	"github.com/function61/gokit/ossignal"
	"github.com/laphir/mitherm/pkg/blecentral"
	"github.com/laphir/mitherm/pkg/deviceregistry"
	"github.com/laphir/mitherm/pkg/mithermtypes"
	"github.com/laphir/mitherm/pkg/output/consoleoutput"
	"github.com/laphir/mitherm/pkg/output/sqsoutput"
	"github.com/laphir/mitherm/pkg/sensoraggregator"
	"github.com/laphir/mitherm/pkg/session"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"os"
	"time"
)

const scanWindow = 10 * time.Second

func scan() error {
	log := logger.New("main")
	log.Info("starting")
	defer log.Info("stopped")

	conf, err := deviceregistry.Load(configFilePath)
	if err != nil {
		return err
	}
	registry := conf.Registry()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		log.Info(fmt.Sprintf("got %s; stopping", ossignal.WaitForInterruptOrTerminate()))

		cancel()
	}()

	var out mithermtypes.Output

	switch conf.Output {
	case "sqsoutput":
		if conf.SqsOutput == nil {
			return errors.New("output=sqsoutput but [sqsoutput] is not configured")
		}

		out = sqsoutput.New(ctx, *conf.SqsOutput)
	case "console", "":
		out = consoleoutput.New()
	default:
		return errors.New("unknown output: " + conf.Output)
	}

	central, err := blecentral.NewBluezCentral()
	if err != nil {
		return err
	}

	snapshots, err := session.RunScan(ctx, central, registry, scanWindow, out.GetReadingsChan())
	if err != nil {
		return err
	}

	printSummary(registry, snapshots)

	return nil
}

func printSummary(registry deviceregistry.Registry, snapshots map[uint64]sensoraggregator.Snapshot) {
	fmt.Println("Summary:")

	orDash := func(value *float32) string {
		if value == nil {
			return "-"
		}

		return fmt.Sprintf("%v", *value)
	}

	table := tablewriter.NewTable(os.Stdout)
	table.Header("Device ID", "Temp.", "Humidity %", "Battery %")

	for address, snapshot := range snapshots {
		table.Append([]string{
			registry.ResolveName(address),
			orDash(snapshot.Temperature),
			orDash(snapshot.Humidity),
			orDash(snapshot.Battery),
		})
	}

	table.Render()
}

func scanEntry() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan Xiaomi BLE sensors and print a telemetry summary",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := scan(); err != nil {
				panic(err)
			}
		},
	}
}
