package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var loadCmd = &cobra.Command{
	Use:   "load <training-data.json>",
	Short: "Load schema, documentation, and worked examples into the retrieval store",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.newLoader().LoadFile(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Loaded %d entries (%d skipped, %d failed) in %s\n",
		res.Loaded, res.Skipped, res.Failed, res.Duration.Round(10*time.Millisecond))
	if res.Failed > 0 {
		return fmt.Errorf("%d entries failed to load", res.Failed)
	}
	return nil
}
