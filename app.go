package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/golang/geo/r3"
	"github.com/kwv/blockori/ga"
	"github.com/kwv/blockori/rigid"
	"github.com/kwv/blockori/sim"
	"github.com/kwv/blockori/survey"
)

// App encapsulates the application state and dependencies
type App struct {
	Config     *survey.Config
	Store      *survey.MeasurementStore
	MQTTClient *survey.MQTTClient
	Publisher  *survey.Publisher

	out   io.Writer
	pubMu sync.RWMutex

	// CLI Flags (effectively dependencies)
	ConfigFile   string
	BlockCache   string
	Root         string
	PointsFile   string
	ReportFile   string
	ProfileDir   string
	OutputFile   string
	RenderFormat string
	Seed         uint64
	HttpPort     int
	MqttMode     bool
	HttpMode     bool
}

// NewApp creates a new App writing its reports to out
func NewApp(out io.Writer) *App {
	return &App{
		Store:        survey.NewMeasurementStore(),
		out:          out,
		RenderFormat: "svg",
		Seed:         1,
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.BlockCache = opts.BlockCache
	a.Root = opts.Root
	a.PointsFile = opts.PointsFile
	a.ReportFile = opts.ReportFile
	a.ProfileDir = opts.ProfileDir
	a.OutputFile = opts.OutputFile
	a.RenderFormat = opts.RenderFormat
	a.Seed = opts.Seed
	a.HttpPort = opts.HttpPort
	a.MqttMode = opts.MqttMode
	a.HttpMode = opts.HttpMode
}

// loadConfig reads the config file. Offline modes fall back to defaults
// when the file is missing; the service requires it.
func (a *App) loadConfig(required bool) (*survey.Config, error) {
	if a.Config != nil {
		return a.Config, nil
	}

	config, err := survey.LoadConfig(a.ConfigFile)
	if err != nil {
		if required {
			return nil, fmt.Errorf("failed to load config (looked at %s): %w", a.ConfigFile, err)
		}
		if _, statErr := os.Stat(a.ConfigFile); statErr == nil {
			return nil, err
		}
		log.Printf("Warning: no config at %s, using defaults", a.ConfigFile)
		config = survey.DefaultConfig()
	} else {
		log.Printf("Loaded config from %s", a.ConfigFile)
	}

	if a.Root != "" {
		config.Block.Root = a.Root
	}
	a.Config = config
	applyConfigColors(a.Store, config)
	return config, nil
}

// RunForm forms a block from a measurements file, caches it and prints it
func (a *App) RunForm(path string) error {
	config, err := a.loadConfig(false)
	if err != nil {
		return err
	}

	ms, err := survey.LoadMeasurements(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Loaded %d measurement(s) from %s\n", len(ms), path)

	store := survey.NewMeasurementStoreWithCache(a.BlockCache)
	applyConfigColors(store, config)
	if err := store.AddAll(ms); err != nil {
		return err
	}
	a.Store = store

	sol, err := store.Form(config.Block)
	if err != nil {
		return err
	}
	printBlock(a.out, sol)
	if a.BlockCache != "" {
		fmt.Fprintf(a.out, "\nBlock cached to %s\n", a.BlockCache)
	}
	return nil
}

// RunSimulate forms a perturbed cube block, then estimates a few targets
// from rays cast by the formed stations with some outliers mixed in
func (a *App) RunSimulate() error {
	config, err := a.loadConfig(false)
	if err != nil {
		return err
	}
	rng := sim.NewRand(a.Seed)

	const locSigma, angSigma = 0.002, 0.0005
	truth := make(map[string]rigid.Transform)
	for i, t := range sim.CubeBlock(rng, 2) {
		truth[fmt.Sprintf("s%d", i)] = t
	}
	store := survey.NewMeasurementStore()
	applyConfigColors(store, config)
	for _, p := range sim.PerturbPairs(rng, sim.AllPairs(truth), locSigma, angSigma) {
		if err := store.Add(survey.MeasurementFromPair(p, locSigma)); err != nil {
			return err
		}
	}
	a.Store = store

	blockCfg := config.Block
	blockCfg.Weighting = survey.WeightingSigma
	sol, err := store.Form(blockCfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Simulated %d stations, %d measurements (seed %d)\n\n", len(truth), store.Count(), a.Seed)
	printBlock(a.out, sol)

	// targets around the block centroid, in root coordinates
	var stations []r3.Vector
	ids := sol.NodeIDs()
	for _, id := range ids {
		stations = append(stations, sol.Orientations[id].Loc)
	}
	centroid := r3.Vector{}
	for _, s := range stations {
		centroid = centroid.Add(s)
	}
	centroid = centroid.Mul(1 / float64(len(stations)))

	wants := map[string]r3.Vector{
		"center": centroid,
		"upper":  centroid.Add(r3.Vector{X: 0.5, Y: 0.3, Z: 0.4}),
		"lower":  centroid.Add(r3.Vector{X: -0.4, Y: 0.6, Z: -0.3}),
	}
	var targets []survey.Target
	for _, name := range []string{"center", "upper", "lower"} {
		want := wants[name]
		target := survey.Target{ID: name}
		for i, r := range sim.RaysToward(rng, stations, want, 0.001) {
			target.Rays = append(target.Rays, survey.NewRayObservation(ids[i], r, 0.001))
		}
		for _, r := range sim.Outliers(rng, 2, want, 4, 0.8) {
			target.Rays = append(target.Rays, survey.NewRayObservation("outlier", r, 0.001))
		}
		targets = append(targets, target)
	}

	points, err := survey.EstimateBatch(context.Background(), targets, config.Estimation)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "\nTargets:")
	for _, p := range points {
		want := wants[p.ID]
		fmt.Fprintf(a.out, "  %s\n", p)
		fmt.Fprintf(a.out, "    least squares error %.4f, robust error %.4f\n",
			ga.Vec(p.Location).Sub(want).Norm(), ga.Vec(p.RobustLocation).Sub(want).Norm())
	}

	if err := a.writeEstimateOutputs(points); err != nil {
		return err
	}
	if a.OutputFile != "" {
		var rays []survey.RayObservation
		for _, t := range targets {
			rays = append(rays, t.Rays...)
		}
		return a.writePlan(a.OutputFile, sol, points, rays)
	}
	return nil
}

// RunEstimate estimates every target in an observations file
func (a *App) RunEstimate(path string) error {
	config, err := a.loadConfig(false)
	if err != nil {
		return err
	}

	set, err := survey.LoadObservations(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Estimating %d target(s) from %s\n", len(set.Targets), path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	points, err := survey.EstimateBatch(ctx, set.Targets, config.Estimation)
	if err != nil {
		return err
	}
	for _, p := range points {
		fmt.Fprintf(a.out, "  %s\n", p)
	}
	return a.writeEstimateOutputs(points)
}

// writeEstimateOutputs writes the JSON report and profile plots if requested
func (a *App) writeEstimateOutputs(points []survey.PointEstimate) error {
	if a.ReportFile != "" {
		if err := survey.SavePointEstimates(a.ReportFile, points); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Report written to %s\n", a.ReportFile)
	}

	if a.ProfileDir == "" {
		return nil
	}
	if err := os.MkdirAll(a.ProfileDir, 0755); err != nil {
		return fmt.Errorf("creating profile directory: %w", err)
	}
	for _, p := range points {
		if len(p.Profile) == 0 {
			continue
		}
		path := filepath.Join(a.ProfileDir, fmt.Sprintf("%s-profile.png", p.ID))
		if err := survey.NewEstimateProfileRenderer(p).SavePNG(path); err != nil {
			return fmt.Errorf("saving profile for %s: %w", p.ID, err)
		}
		fmt.Fprintf(a.out, "Profile for %s written to %s\n", p.ID, path)
	}
	return nil
}

// RunRender draws the cached block, with point estimates when given
func (a *App) RunRender() error {
	if _, err := a.loadConfig(false); err != nil {
		return err
	}

	cache, err := survey.LoadBlockCache(a.BlockCache)
	if err != nil {
		return err
	}
	if cache == nil {
		return fmt.Errorf("no block cache at %s; run --form first", a.BlockCache)
	}

	var points []survey.PointEstimate
	if a.PointsFile != "" {
		if points, err = survey.LoadPointEstimates(a.PointsFile); err != nil {
			return err
		}
	}

	output := a.OutputFile
	if output == "" {
		output = "plan." + a.RenderFormat
	}
	return a.writePlan(output, cache.Solution(), points, nil)
}

// writePlan writes the plan in the format named by RenderFormat, or by the
// output extension when it names a known format
func (a *App) writePlan(path string, sol *survey.BlockSolution, points []survey.PointEstimate, rays []survey.RayObservation) error {
	format := a.RenderFormat
	switch ext := strings.TrimPrefix(filepath.Ext(path), "."); ext {
	case "svg", "png", "geojson":
		format = ext
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if format == "geojson" {
		fc := survey.BlockToFeatureCollection(sol, a.Store.Colors())
		fc.Features = append(fc.Features, survey.PointsToFeatureCollection(points).Features...)
		data, err := json.MarshalIndent(fc, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling plan GeoJSON: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Fprintf(a.out, "Plan GeoJSON written to %s\n", path)
		return nil
	}

	renderer := survey.NewPlanRenderer(sol, points)
	renderer.Colors = a.Store.Colors()
	for _, r := range rays {
		renderer.Rays = append(renderer.Rays, r.Ray())
	}
	if format == "png" {
		err = renderer.RenderToPNG(f)
	} else {
		err = renderer.RenderToSVG(f)
	}
	if err != nil {
		return fmt.Errorf("rendering plan: %w", err)
	}
	fmt.Fprintf(a.out, "Plan written to %s\n", path)
	return nil
}

// printBlock reports node orientations and edge residuals
func printBlock(w io.Writer, sol *survey.BlockSolution) {
	fmt.Fprintf(w, "Block: %d nodes from %d edges, root %s\n", len(sol.Orientations), sol.NumEdges, sol.Root)
	for _, n := range sol.Nodes() {
		marker := ""
		if n.Root {
			marker = " (root)"
		}
		angle := ga.Vec(n.PhysAngle).Norm() * 180 / math.Pi
		fmt.Fprintf(w, "  %-10s loc=(%.4f, %.4f, %.4f) rot=%.3f°%s\n",
			n.NodeID, n.Location[0], n.Location[1], n.Location[2], angle, marker)
	}

	fmt.Fprintf(w, "Residuals: max loc gap %.3g, mean loc gap %.3g, max angle gap %.3g rad\n",
		sol.MaxLocGap, sol.MeanLocGap, sol.MaxAngleGap)
	for _, r := range sol.Residuals {
		if r.InTree {
			continue
		}
		fmt.Fprintf(w, "  %-20s loc gap %.4g  angle gap %.4g\n", r.Key, r.LocGap, r.AngleGap)
	}
}

// RunService forms blocks from MQTT measurements and serves them over HTTP
func (a *App) RunService() error {
	fmt.Fprintln(a.out, "Starting blockori service...")

	config, err := a.loadConfig(true)
	if err != nil {
		return err
	}

	store := survey.NewMeasurementStoreWithCache(a.BlockCache)
	applyConfigColors(store, config)
	a.Store = store
	if sol := store.Latest(); sol != nil {
		log.Printf("Loaded cached block of %d nodes from %s", len(sol.Orientations), a.BlockCache)
	}

	if a.MqttMode {
		mqttClient, err := survey.InitMQTT(config, a.handleMeasurements)
		if err != nil {
			return fmt.Errorf("failed to initialize MQTT: %w", err)
		}
		if mqttClient == nil {
			return fmt.Errorf("MQTT broker not configured in %s", a.ConfigFile)
		}
		a.MQTTClient = mqttClient
		// measurements may arrive before this point; they are formed but not published
		a.setPublisher(survey.NewPublisher(mqttClient.GetClient(), config.MQTT.PublishPrefix))
		fmt.Fprintln(a.out, "MQTT block publisher initialized")
	}

	if a.HttpMode {
		handler := newHTTPServer(store, config)
		go func() {
			addr := fmt.Sprintf("0.0.0.0:%d", a.HttpPort)
			log.Printf("[HTTP] Starting server on %s", addr)
			if err := http.ListenAndServe(addr, handler); err != nil {
				log.Fatalf("[HTTP] Server error: %v", err)
			}
		}()
	}

	fmt.Fprintln(a.out, "\nService Running")
	fmt.Fprintln(a.out, "===============")
	if a.MqttMode {
		fmt.Fprintf(a.out, "\nMQTT:\n  Subscribed to: %s\n", config.Block.MeasurementTopic)
		fmt.Fprintf(a.out, "  Publishing to: %s/{nodeID}\n", a.publisher().Prefix())
		fmt.Fprintf(a.out, "  Combined block: %s/block\n", a.publisher().Prefix())
	}
	if a.HttpMode {
		fmt.Fprintf(a.out, "\nHTTP endpoints (port %d):\n", a.HttpPort)
		fmt.Fprintln(a.out, "  GET  /health         - Health check")
		fmt.Fprintln(a.out, "  GET  /block.json     - Latest block")
		fmt.Fprintln(a.out, "  GET  /block.geojson  - Latest block as GeoJSON")
		fmt.Fprintln(a.out, "  GET  /plan.svg       - Plan view (SVG)")
		fmt.Fprintln(a.out, "  GET  /plan.png       - Plan view (PNG)")
		fmt.Fprintln(a.out, "  POST /measurements   - Add measurements")
	}
	fmt.Fprintln(a.out, "\nPress Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Fprintln(a.out, "\nShutting down service...")
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	fmt.Fprintln(a.out, "Service stopped")
	return nil
}

// handleMeasurements stores live measurements, re-forms the block and
// publishes it
func (a *App) handleMeasurements(topic string, ms []survey.Measurement, err error) {
	if err != nil {
		log.Printf("Error receiving measurements on %s: %v", topic, err)
		return
	}
	sol, err := ingest(a.Store, a.Config.Block, ms)
	if err != nil {
		log.Printf("[DEBUG] block not formed after %d measurement(s) on %s: %v", len(ms), topic, err)
		return
	}
	if pub := a.publisher(); pub != nil {
		if err := pub.PublishBlock(sol); err != nil {
			log.Printf("Error publishing block: %v", err)
		}
	}
}

// setPublisher installs the publisher used by the MQTT handler, which may
// already be running
func (a *App) setPublisher(p *survey.Publisher) {
	a.pubMu.Lock()
	defer a.pubMu.Unlock()
	a.Publisher = p
}

func (a *App) publisher() *survey.Publisher {
	a.pubMu.RLock()
	defer a.pubMu.RUnlock()
	return a.Publisher
}

// ingest adds measurements and re-forms the block
func ingest(store *survey.MeasurementStore, cfg survey.BlockConfig, ms []survey.Measurement) (*survey.BlockSolution, error) {
	if err := store.AddAll(ms); err != nil {
		return nil, err
	}
	return store.Form(cfg)
}
