package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/example/service-matching/internal/models"
	"github.com/example/service-matching/internal/storage"
)

var (
	eventsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_events_consumed_total",
		Help: "Total engagement lifecycle events consumed",
	})
	eventsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_events_invalid_total",
		Help: "Total invalid messages received",
	})
	eventsArchived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_events_archived_total",
		Help: "Total events written to the engagement log",
	})
	archiveErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_archive_errors_total",
		Help: "Total engagement log write errors",
	})
)

func init() {
	prometheus.MustRegister(eventsConsumed, eventsInvalid, eventsArchived, archiveErrors)
}

func main() {
	// allow some flags for local runs
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2113", "address to serve prometheus metrics on")
	flag.Parse()

	brokers := []string{"localhost:9092"}
	if env := os.Getenv("KAFKA_BROKERS"); env != "" {
		brokers = brokers[:0]
		for _, b := range strings.Split(env, ",") {
			if s := strings.TrimSpace(b); s != "" {
				brokers = append(brokers, s)
			}
		}
	}

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "engagement-events"
	}
	group := os.Getenv("KAFKA_GROUP")
	if group == "" {
		group = "engagement-ledger"
	}

	var sink storage.EventLog
	var ready func(context.Context) error
	if dsn := os.Getenv("PG_DSN"); dsn != "" {
		pg, err := storage.NewPostgresLog(dsn)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pg.Close()
		sink = pg
		ready = pg.Ping
	} else {
		log.Println("no PG_DSN set, archiving to memory only")
		sink = storage.NewMemoryLog()
		ready = func(context.Context) error { return nil }
	}

	// metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := ready(r.Context()); err != nil {
				http.Error(w, "store not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		log.Printf("metrics/health listening on %s", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 10e3, MaxBytes: 10e6})
	defer func() { _ = r.Close() }()

	log.Printf("ledger listening topic=%s brokers=%v group=%s", topic, brokers, group)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("shutting down ledger")
				return
			}
			log.Printf("kafka read error: %v; backing off %s", err, backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		eventsConsumed.Inc()

		var ev models.EngagementEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			eventsInvalid.Inc()
			log.Printf("invalid message: %v", err)
			continue
		}

		if err := appendWithRetry(sink, ev, 3, 200*time.Millisecond); err != nil {
			archiveErrors.Inc()
			log.Printf("archive failed for job=%s seeker=%s: %v", ev.JobID, ev.SeekerID, err)
			continue
		}
		eventsArchived.Inc()
	}
}

// appendWithRetry writes the event to the log with a small exponential
// backoff between attempts.
func appendWithRetry(sink storage.EventLog, ev models.EngagementEvent, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = sink.Append(ev); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}
