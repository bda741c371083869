// Command dashboard serves the listings dashboard: upload a dataset, narrow it
// with the neighbourhood selections and explore the derived charts, preview
// and downloads.
//
// Settings come from the environment (optionally a .env file); flags override
// them.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"airbnbdash/internal/config"
	"airbnbdash/internal/metrics"
	"airbnbdash/internal/metrics/datadog"
	"airbnbdash/internal/metrics/prompush"
	"airbnbdash/internal/pipeline"
	"airbnbdash/internal/webui"
)

func main() {
	env := config.FromEnv()

	addr := flag.String("addr", env.Addr, "listen address (env DASH_ADDR)")
	maxUploadMB := flag.Int("max-upload-mb", env.MaxUploadMB, "maximum upload size in MB (env DASH_MAX_UPLOAD_MB)")
	maxDatasets := flag.Int("max-datasets", env.MaxDatasets, "datasets kept in memory (env DASH_MAX_DATASETS)")
	metricsBackend := flag.String("metrics-backend", env.MetricsBackend, "metrics backend: prom, datadog or none (env METRICS_BACKEND)")
	verbose := flag.Bool("v", false, "log every request")
	flag.Parse()

	env.Addr = *addr
	env.MaxUploadMB = *maxUploadMB
	env.MaxDatasets = *maxDatasets

	cfg := webui.Config{
		Addr:           env.Addr,
		MaxUploadBytes: env.MaxUploadBytes(),
		MaxDatasets:    env.MaxDatasets,
		Pipeline:       pipeline.DefaultConfig(),
		Contact:        webui.Contact{Name: env.ContactName, Email: env.ContactEmail, Batch: env.ContactBatch},
		Verbose:        *verbose,
	}

	var handler http.Handler
	switch *metricsBackend {
	case "prom", "pushgateway":
		b, err := prompush.NewBackend(cfg.Pipeline.Job, env.PushgatewayURL)
		if err != nil {
			log.Printf("metrics: failed to init prometheus backend: %v; using nop", err)
			break
		}
		metrics.SetBackend(b)
		handler = b.Handler()
		log.Printf("metrics: backend=%s path=/metrics", *metricsBackend)

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       env.DatadogAddr,
			Namespace:  "airbnbdash.",
			GlobalTags: []string{"service:dashboard"},
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			break
		}
		metrics.SetBackend(b)
		log.Printf("metrics: backend=datadog addr=%s", env.DatadogAddr)

	case "", "none":
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", *metricsBackend)
	}
	cfg.Metrics = handler

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := webui.NewServer(cfg)
	err := srv.Run(ctx)
	if ferr := metrics.Flush(); ferr != nil {
		log.Printf("metrics: flush error: %v", ferr)
	}
	if err != nil {
		log.Fatalf("dashboard: %v", err)
	}
}
