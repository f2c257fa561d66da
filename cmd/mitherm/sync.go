package main

import (
	"context"
	"fmt"
	"github.com/function61/gokit/logger"
	"github.com/function61/gokit/ossignal"
	"github.com/function61/gokit/systemdinstaller"
	"github.com/laphir/mitherm/pkg/blecentral"
	"github.com/laphir/mitherm/pkg/deviceregistry"
	"github.com/laphir/mitherm/pkg/session"
	"github.com/spf13/cobra"
	"time"
)

const syncWindow = 30 * time.Second

func syncClocks() error {
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

	central, err := blecentral.NewBluezCentral()
	if err != nil {
		return err
	}

	return session.RunSync(ctx, central, registry, syncWindow)
}

func syncEntry() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync the clock of every configured (non-omitted) LYWSD02 in range",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := syncClocks(); err != nil {
				panic(err)
			}
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "write-systemd-unit-file",
		Short: "Install unit file to sync sensor clocks on startup",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			systemdHints, err := systemdinstaller.InstallSystemdServiceFile("mitherm-sync", []string{"sync"}, "mitherm clock sync")
			if err != nil {
				panic(err)
			}

			fmt.Println(systemdHints)
		},
	})

	return cmd
}
