package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"finsight/pkg/config"
	"finsight/pkg/core/ingest"
	"finsight/pkg/core/pipeline"
)

var rootCmd = &cobra.Command{
	Use:   "finsight",
	Short: "Financial statement analysis engine",
	Long: `finsight normalizes loosely structured financial statements and reports
ratios, multi-year trends and a data quality assessment.

Input is read from the file argument, or from stdin when it is omitted or "-".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		log.DefaultLogger.Level = log.ParseLevel(cfg.LogLevel)
		return nil
	},
}

var (
	configPath string
	years      int
	reportDate string
	period     string

	cfg *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/engine.yaml", "Engine configuration file")
	rootCmd.PersistentFlags().IntVarP(&years, "years", "y", 0, "Trend horizon in years (0 uses the configured default)")
	rootCmd.PersistentFlags().StringVar(&reportDate, "report-date", "", "Report date (YYYY-MM-DD) for timeliness scoring")
	rootCmd.PersistentFlags().StringVar(&period, "period", "", "Reporting period (YYYYMM)")

	rootCmd.AddCommand(analyzeCmd, qualityCmd, reportCmd, detectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// readInput returns the payload named by args. HTML files are converted
// through the table extractor.
func readInput(cmd *cobra.Command, args []string) (interface{}, error) {
	var (
		data []byte
		err  error
		name string
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		name = args[0]
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".html" || ext == ".htm" {
		return ingest.ParseHTMLTables(string(data))
	}
	return string(data), nil
}

func runAnalysis(cmd *cobra.Command, args []string) (*pipeline.Result, error) {
	payload, err := readInput(cmd, args)
	if err != nil {
		return nil, err
	}

	req := pipeline.Request{Payload: payload, Years: years, Period: period}
	if reportDate != "" {
		req.ReportDate, err = time.Parse("2006-01-02", reportDate)
		if err != nil {
			return nil, fmt.Errorf("invalid --report-date: %w", err)
		}
	}

	opts := cfg.EngineOptions()
	opts.CacheSize = 0
	engine, err := pipeline.New(opts)
	if err != nil {
		return nil, err
	}
	return engine.Analyze(cmd.Context(), req)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
