package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"ticketlens/internal/app"
)

func main() {
	_ = godotenv.Load(".env")

	opts := app.Options{}
	flag.StringVar(&opts.ConfigPath, "config", "config.yaml", "path to the YAML config file")
	flag.StringVar(&opts.IDsPath, "ids", "", "CSV file with ticket IDs (optional second column: diagnostic-usage value)")
	flag.StringVar(&opts.Analysis, "analysis", "both", "analysis branches to run: classify, capability, or both")
	flag.StringVar(&opts.OutputDir, "out", "", "report output directory (overrides config)")
	flag.BoolVar(&opts.Quiet, "quiet", false, "disable the progress bars")
	flag.Parse()

	if opts.IDsPath == "" {
		fmt.Fprintln(os.Stderr, "missing required flag --ids")
		flag.Usage()
		os.Exit(2)
	}

	if err := app.Run(context.Background(), opts); err != nil {
		fmt.Fprintf(os.Stderr, "ticketlens: %v\n", err)
		os.Exit(1)
	}
}
