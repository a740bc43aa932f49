package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/memu-bridge/internal/bridge"
	"github.com/rcliao/memu-bridge/internal/memsvc"
	"github.com/rcliao/memu-bridge/internal/service"
)

func init() {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Perform exactly one request/response cycle",
		Long: "Dispatch a single operation with an optional payload file and print the " +
			"response line to stdout. Exits 0 when the response is ok, 2 otherwise.",
		Run: runOnce,
	}

	cmd.Flags().StringP("op", "o", "", "Operation: health, list_categories, memorize")
	cmd.Flags().StringP("payload", "p", "", "Path to a JSON payload file")
	cmd.MarkFlagRequired("op")

	RootCmd.AddCommand(cmd)
}

func runOnce(cmd *cobra.Command, args []string) {
	op, _ := cmd.Flags().GetString("op")
	payloadPath, _ := cmd.Flags().GetString("payload")

	payload := map[string]any{}
	if payloadPath != "" {
		b, err := os.ReadFile(payloadPath)
		if err != nil {
			exitErr("read payload", err)
		}
		if err := json.Unmarshal(b, &payload); err != nil {
			exitErr("parse payload", err)
		}
	}

	logger := newLogger()
	cache := service.NewCache(memsvc.ConstructorFor(memsvc.Version))
	dispatcher := bridge.NewDispatcher(cache, logger)

	resp := dispatcher.Handle(cmd.Context(), bridge.Request{Op: op, Payload: payload})
	if err := bridge.WriteResponse(os.Stdout, resp); err != nil {
		exitErr("write response", err)
	}
	if !resp.OK {
		os.Exit(2)
	}
}
