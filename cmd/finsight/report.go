package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"finsight/pkg/core/report"
)

var (
	reportTitle  string
	reportFormat string
)

var reportCmd = &cobra.Command{
	Use:   "report [file]",
	Short: "Render a Markdown or HTML analysis report",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := runAnalysis(cmd, args)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch reportFormat {
		case "md", "markdown":
			_, err = io.WriteString(out, report.Markdown(res, reportTitle))
		case "html":
			html, rerr := report.RenderHTML(res, reportTitle)
			if rerr != nil {
				return rerr
			}
			_, err = io.WriteString(out, html)
		default:
			return fmt.Errorf("unknown --format %q (want md or html)", reportFormat)
		}
		return err
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportTitle, "title", "t", "", "Report title")
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "md", "Output format: md or html")
}
