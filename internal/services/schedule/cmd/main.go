package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lwx123321/smart-garden/internal/model"
	"github.com/lwx123321/smart-garden/internal/services/schedule"
	"github.com/lwx123321/smart-garden/internal/store"
	"github.com/lwx123321/smart-garden/pkg/mqttbus"
)

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func main() {
	_ = godotenv.Load()

	cfg := struct {
		Bus         mqttbus.Config
		StoreURL    string
		TopicPrefix string
		MetricsPort int
	}{
		Bus: mqttbus.Config{
			Host:     envStr("MQTT_HOST", "localhost"),
			Port:     envInt("MQTT_PORT", 1883),
			User:     envStr("MQTT_USER", ""),
			Password: envStr("MQTT_PASSWORD", ""),
			ClientID: envStr("HOSTNAME", "schedule-service"),
		},
		StoreURL:    envStr("STORE_URL", "http://localhost:9090"),
		TopicPrefix: envStr("TOPIC_PREFIX", model.DefaultTopicPrefix),
		MetricsPort: envInt("METRICS_PORT", 2116),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := mqttbus.New(cfg.Bus)
	if err := bus.Connect(ctx); err != nil {
		log.Fatalf("schedule-svc: mqtt connect: %v", err)
	}
	defer bus.Disconnect()

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		log.Printf("schedule-svc: metrics on :%d", cfg.MetricsPort)
		if err := http.ListenAndServe(":"+strconv.Itoa(cfg.MetricsPort), nil); err != nil {
			log.Printf("schedule-svc: metrics server: %v", err)
		}
	}()

	sched := schedule.NewScheduler(bus, model.NewChannels(cfg.TopicPrefix),
		store.New(cfg.StoreURL, 5*time.Second))
	log.Printf("schedule-svc: running (prefix=%s store=%s)", cfg.TopicPrefix, cfg.StoreURL)
	if err := sched.Start(ctx, nil); err != nil {
		log.Fatalf("schedule-svc: %v", err)
	}
	log.Println("schedule-svc: shutting down")
}
