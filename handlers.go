package main

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/kwv/blockori/survey"
)

// maxMeasurementBody bounds POST /measurements payloads
const maxMeasurementBody = 1 << 20

// blockResponse is the /block.json body
type blockResponse struct {
	Root        string                   `json:"root"`
	Nodes       []survey.NodeOrientation `json:"nodes"`
	Edges       int                      `json:"edges"`
	Components  int                      `json:"components"`
	MaxLocGap   float64                  `json:"maxLocGap"`
	MeanLocGap  float64                  `json:"meanLocGap"`
	MaxAngleGap float64                  `json:"maxAngleGap"`
	Formed      time.Time                `json:"formed"`
}

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(store *survey.MeasurementStore, config *survey.Config) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] /health request from %s", r.RemoteAddr)
		w.Header().Set("Content-Type", "application/json")
		status := struct {
			Status       string    `json:"status"`
			Timestamp    time.Time `json:"timestamp"`
			HasBlock     bool      `json:"hasBlock"`
			Measurements int       `json:"measurements"`
		}{
			Status:       "ok",
			Timestamp:    time.Now(),
			HasBlock:     store.Latest() != nil,
			Measurements: store.Count(),
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("Error encoding health status: %v", err)
		}
	})

	mux.HandleFunc("/block.json", func(w http.ResponseWriter, r *http.Request) {
		sol := store.Latest()
		if !sol.IsConnected() {
			http.Error(w, "No block formed", http.StatusServiceUnavailable)
			return
		}
		resp := blockResponse{
			Root:        sol.Root,
			Nodes:       sol.Nodes(),
			Edges:       sol.NumEdges,
			Components:  sol.Components,
			MaxLocGap:   sol.MaxLocGap,
			MeanLocGap:  sol.MeanLocGap,
			MaxAngleGap: sol.MaxAngleGap,
			Formed:      sol.Formed,
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Printf("Error encoding block: %v", err)
		}
	})

	mux.HandleFunc("/block.geojson", func(w http.ResponseWriter, r *http.Request) {
		sol := store.Latest()
		if !sol.IsConnected() {
			http.Error(w, "No block formed", http.StatusServiceUnavailable)
			return
		}
		data, err := json.Marshal(survey.BlockToFeatureCollection(sol, store.Colors()))
		if err != nil {
			log.Printf("Error encoding block GeoJSON: %v", err)
			http.Error(w, "Encoding failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := w.Write(data); err != nil {
			log.Printf("Error writing block GeoJSON: %v", err)
		}
	})

	mux.HandleFunc("/plan.svg", planHandler(store, "image/svg+xml", (*survey.PlanRenderer).RenderToSVG))
	mux.HandleFunc("/plan.png", planHandler(store, "image/png", (*survey.PlanRenderer).RenderToPNG))

	mux.HandleFunc("/measurements", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(store.Measurements()); err != nil {
				log.Printf("Error encoding measurements: %v", err)
			}
		case http.MethodPost:
			body, err := io.ReadAll(io.LimitReader(r.Body, maxMeasurementBody))
			if err != nil {
				http.Error(w, "Reading body failed", http.StatusBadRequest)
				return
			}
			ms, err := survey.DecodeMeasurements(body)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			blockCfg := survey.BlockConfig{}
			if config != nil {
				blockCfg = config.Block
			}
			status := struct {
				Accepted int  `json:"accepted"`
				Formed   bool `json:"formed"`
				Nodes    int  `json:"nodes"`
			}{Accepted: len(ms)}

			sol, err := ingest(store, blockCfg, ms)
			switch {
			case err == nil:
				status.Formed = true
				status.Nodes = len(sol.Orientations)
			case errors.Is(err, survey.ErrInvalidMeasurement):
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			default:
				log.Printf("[HTTP] measurements accepted, block not formed: %v", err)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			if err := json.NewEncoder(w).Encode(status); err != nil {
				log.Printf("Error encoding measurement status: %v", err)
			}
		default:
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	return mux
}

// planHandler serves the latest block's plan view through render
func planHandler(store *survey.MeasurementStore, contentType string, render func(*survey.PlanRenderer, io.Writer) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sol := store.Latest()
		if !sol.IsConnected() {
			http.Error(w, "No block formed", http.StatusServiceUnavailable)
			return
		}
		renderer := survey.NewPlanRenderer(sol, nil)
		renderer.Colors = store.Colors()

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "no-cache")
		if err := render(renderer, w); err != nil {
			log.Printf("Error rendering plan (%s): %v", contentType, err)
		}
	}
}

// applyConfigColors copies station colors from config into the store
func applyConfigColors(store *survey.MeasurementStore, config *survey.Config) {
	if store == nil || config == nil {
		return
	}
	for id, c := range config.StationColors() {
		store.SetColor(id, c)
	}
}
