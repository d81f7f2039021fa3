package main

import (
	"github.com/spf13/cobra"
)

var qualityCmd = &cobra.Command{
	Use:   "quality [file]",
	Short: "Assess data quality only",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := runAnalysis(cmd, args)
		if err != nil {
			return err
		}
		if res.ParseFailed() {
			return res.Err()
		}
		return printJSON(cmd, res.Quality)
	},
}
