package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/memu-bridge/internal/bridge"
	"github.com/rcliao/memu-bridge/internal/build"
	"github.com/rcliao/memu-bridge/internal/memsvc"
	"github.com/rcliao/memu-bridge/internal/service"
)

func init() {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the persistent stdin/stdout bridge",
		Long: "Read newline-delimited JSON requests from stdin and write one response line " +
			"per request to stdout, until stdin closes. Service instances stay cached for " +
			"the life of the process, which is what keeps inmemory providers usable.",
		Run: runDaemon,
	}
	RootCmd.AddCommand(cmd)
}

func runDaemon(cmd *cobra.Command, args []string) {
	logger := newLogger()
	logger.Info("bridge starting",
		"version", build.Version,
		"instance_id", build.InstanceID,
		"library_version", memsvc.Version)

	cache := service.NewCache(memsvc.ConstructorFor(memsvc.Version))
	loop := bridge.NewLoop(os.Stdin, os.Stdout, bridge.NewDispatcher(cache, logger), logger)

	if err := loop.Run(cmd.Context()); err != nil {
		exitErr("daemon", err)
	}
	logger.Info("input closed, bridge exiting")
}
