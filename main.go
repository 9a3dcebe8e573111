package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/kwv/blockori/survey"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions mirrors the command line flags
type AppOptions struct {
	ConfigFile   string
	BlockCache   string
	Root         string
	FormFile     string
	EstimateFile string
	PointsFile   string
	ReportFile   string
	ProfileDir   string
	OutputFile   string
	RenderFormat string
	Simulate     bool
	Seed         uint64
	RenderOnly   bool
	MqttMode     bool
	HttpMode     bool
	HttpPort     int
}

// Runner is implemented by App; tests substitute a mock
type Runner interface {
	ApplyOptions(opts AppOptions)
	RunForm(path string) error
	RunSimulate() error
	RunEstimate(path string) error
	RunRender() error
	RunService() error
}

func main() {
	app := NewApp(os.Stdout)
	if err := run(os.Args[1:], os.Stdout, app); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatal(err)
	}
}

// run parses args and dispatches to one mode
func run(args []string, out io.Writer, app Runner) error {
	fs := flag.NewFlagSet("blockori", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to configuration file")
	fs.StringVar(&opts.BlockCache, "block-cache", survey.DefaultBlockCachePath, "Path to formed block cache file")
	fs.StringVar(&opts.Root, "root", "", "Override the block root station (default: from config or smallest id)")
	fs.StringVar(&opts.FormFile, "form", "", "Form a block from a measurements JSON file and exit")
	fs.StringVar(&opts.EstimateFile, "estimate", "", "Estimate target points from an observations JSON file and exit")
	fs.StringVar(&opts.PointsFile, "points", "", "Point estimates JSON to overlay in --render mode")
	fs.StringVar(&opts.ReportFile, "report", "", "Write point estimates as JSON to this file")
	fs.StringVar(&opts.ProfileDir, "profile-dir", "", "Write a distance profile PNG per target into this directory")
	fs.StringVar(&opts.OutputFile, "output", "", "Output file for --render and --simulate (default plan.<format>)")
	fs.StringVar(&opts.RenderFormat, "format", "svg", "Render format: svg, png, or geojson")
	fs.BoolVar(&opts.Simulate, "simulate", false, "Form and estimate a simulated survey and exit")
	fs.Uint64Var(&opts.Seed, "seed", 1, "Random seed for --simulate")
	fs.BoolVar(&opts.RenderOnly, "render", false, "Render the cached block plan and exit")
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Run MQTT service mode, forming blocks from live measurements")
	fs.BoolVar(&opts.HttpMode, "http", false, "Enable HTTP server for block status and plans")
	fs.IntVar(&opts.HttpPort, "http-port", 8080, "HTTP server port (default 8080)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	fmt.Fprintf(out, "blockori version: %s\n", Version)

	switch opts.RenderFormat {
	case "svg", "png", "geojson":
	default:
		return fmt.Errorf("unknown --format %q (want svg, png or geojson)", opts.RenderFormat)
	}

	app.ApplyOptions(opts)

	switch {
	case opts.FormFile != "":
		return app.RunForm(opts.FormFile)
	case opts.Simulate:
		return app.RunSimulate()
	case opts.EstimateFile != "":
		return app.RunEstimate(opts.EstimateFile)
	case opts.RenderOnly:
		return app.RunRender()
	case opts.MqttMode || opts.HttpMode:
		return app.RunService()
	}

	fmt.Fprintln(out, "blockori service starting...")
	fmt.Fprintln(out, "Use --form FILE to form a block from measurements")
	fmt.Fprintln(out, "Use --simulate to run a simulated survey (--seed N)")
	fmt.Fprintln(out, "Use --estimate FILE to estimate target points from rays")
	fmt.Fprintln(out, "Use --render to output the cached block plan (--format svg|png|geojson)")
	fmt.Fprintln(out, "Use --mqtt to form blocks from live measurements")
	fmt.Fprintln(out, "Use --http to serve block status and plans")
	fmt.Fprintln(out, "\nConfiguration:")
	fmt.Fprintln(out, "  config.yaml - MQTT settings, block root and estimation parameters")
	fmt.Fprintf(out, "  %s - Last formed block (cached)\n", survey.DefaultBlockCachePath)
	return nil
}
