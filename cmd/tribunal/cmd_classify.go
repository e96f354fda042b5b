package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/tribunal/internal/classifier"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <ticket-number>",
	Short: "Print the penalty category for a ticket number",
	Args:  cobra.ExactArgs(1),
	RunE:  runClassify,
}

func runClassify(cmd *cobra.Command, args []string) error {
	reg, err := classifier.Default()
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(reg.Classify(args[0]))
}
