package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"finsight/pkg/core/detect"
	"finsight/pkg/core/utils"
)

var detectCmd = &cobra.Command{
	Use:   "detect [file]",
	Short: "Report the detected payload layout without analyzing it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := readInput(cmd, args)
		if err != nil {
			return err
		}

		raw := payload
		strategy := "structured"
		if text, ok := payload.(string); ok {
			pr, err := utils.ParsePayload(text)
			if err != nil {
				return fmt.Errorf("cannot detect layout: %w", err)
			}
			raw, strategy = pr.Value, pr.Strategy
		}

		return printJSON(cmd, map[string]interface{}{
			"parse_strategy": strategy,
			"detection":      detect.Detect(raw),
		})
	},
}
