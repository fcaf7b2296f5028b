package main

import (
	"context"
	"os"

	"github.com/ordishs/gocore"

	"github.com/torrejonv/multisig-coordinator/daemon"
	"github.com/torrejonv/multisig-coordinator/settings"
	"github.com/torrejonv/multisig-coordinator/ulogger"
)

// Name used by build script for the binaries. (Please keep on single line)
const progname = "multisig-coordinator"

// Version & commit strings injected at build with -ldflags -X...
var version string
var commit string

func init() {
	gocore.SetInfo(progname, version, commit)
}

func main() {
	tSettings := settings.NewSettings()

	logger := ulogger.New(progname, ulogger.WithLevel(tSettings.LogLevel))

	d, err := daemon.New(logger, tSettings)
	if err != nil {
		logger.Errorf("startup failed: %v", err)
		os.Exit(1)
	}

	logger.Infof("%s starting on %s (network %s)", progname, tSettings.Coordinator.HTTPListenAddress, tSettings.Chain.Network)

	if err := d.Run(context.Background()); err != nil {
		logger.Fatalf("daemon exited: %v", err)
	}
}
