// Command loadtest hammers one counter aggregate with concurrent commands
// and reports throughput. Prometheus metrics are exposed on
// $METRICS_ADDR (default :2112) while the run is in progress.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	promadapter "github.com/Valiuapp/actor-es/adapters/prometheus"
	"github.com/Valiuapp/actor-es/core/es"
)

func main() {
	var (
		entities = flag.Int("entities", 100, "number of counter entities")
		commands = flag.Int("commands", 100, "commands per entity")
		workers  = flag.Int("workers", 16, "concurrent senders")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := promclient.NewRegistry()
	storeMetrics := promadapter.NewStoreMetrics(reg)
	actorMetrics := promadapter.NewActorMetrics(reg)

	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		addr = ":2112"
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Warn("metrics server stopped", slog.Any("error", err))
		}
	}()

	store := es.NewStore[*es.Counter](ctx, "counter", es.NewMemStore[*es.Counter](),
		es.WithStoreLogger[*es.Counter](log),
		es.WithStoreMetrics[*es.Counter](storeMetrics),
		es.WithStoreActorMetrics[*es.Counter](actorMetrics))
	defer store.Stop()

	entity := es.NewEntity(ctx, "counter", store, es.CounterCommandHandler(),
		es.WithEntityLogger(log),
		es.WithEntityActorMetrics(actorMetrics))
	defer entity.Stop()

	m := es.NewManager(es.WithManagerLogger(log))
	if err := m.Register(entity.Registrant()); err != nil {
		log.Error("register failed", slog.Any("error", err))
		os.Exit(1)
	}

	ids := make([]es.EntityID, *entities)
	for i := range ids {
		ids[i] = es.NewEntityID()
		if _, err := es.SendCommand[*es.Counter](ctx, m, "counter",
			es.CounterCommand(es.CreateCounter{ID: ids[i]})); err != nil {
			log.Error("create failed", slog.Any("error", err))
			os.Exit(1)
		}
	}

	var (
		sent   atomic.Int64
		failed atomic.Int64
		wg     sync.WaitGroup
	)

	work := make(chan es.EntityID, *workers)
	start := time.Now()

	for range *workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range work {
				_, err := es.SendCommand[*es.Counter](ctx, m, "counter",
					es.CounterCommand(es.AddToCounter{ID: id, N: 1}))
				if err != nil {
					failed.Add(1)
					continue
				}
				sent.Add(1)
			}
		}()
	}

	for range *commands {
		for _, id := range ids {
			work <- id
		}
	}
	close(work)
	wg.Wait()

	elapsed := time.Since(start)
	log.Info("done",
		slog.Int64("commands", sent.Load()),
		slog.Int64("failed", failed.Load()),
		slog.Duration("elapsed", elapsed),
		slog.Float64("cmd_per_sec", float64(sent.Load())/elapsed.Seconds()))

	// every counter must have folded to exactly the command count
	for _, id := range ids {
		c, found, err := es.FindOne[*es.Counter](ctx, m, "counter", id)
		if err != nil || !found || c.Value != *commands {
			log.Error("verification failed",
				slog.String("entity_id", id.String()),
				slog.Any("error", err))
			os.Exit(1)
		}
	}
	log.Info("verified", slog.Int("entities", len(ids)))
}
