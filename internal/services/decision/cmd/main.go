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
	"github.com/robfig/cron/v3"

	"github.com/lwx123321/smart-garden/internal/model"
	"github.com/lwx123321/smart-garden/internal/services/decision"
	"github.com/lwx123321/smart-garden/internal/store"
	"github.com/lwx123321/smart-garden/internal/weather"
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
		Bus           mqttbus.Config
		StoreURL      string
		SensorURL     string
		WeatherNowURL string
		WeatherHisURL string
		TopicPrefix   string
		CycleSpec     string
		MetricsPort   int
	}{
		Bus: mqttbus.Config{
			Host:     envStr("MQTT_HOST", "localhost"),
			Port:     envInt("MQTT_PORT", 1883),
			User:     envStr("MQTT_USER", ""),
			Password: envStr("MQTT_PASSWORD", ""),
			ClientID: envStr("HOSTNAME", "watering-service"),
		},
		StoreURL:      envStr("STORE_URL", "http://localhost:9090"),
		SensorURL:     envStr("SENSOR_STORE_URL", "http://localhost:9091"),
		WeatherNowURL: envStr("WEATHER_CURRENT_URL", "http://localhost:9092/current"),
		WeatherHisURL: envStr("WEATHER_HISTORY_URL", "http://localhost:9092/history"),
		TopicPrefix:   envStr("TOPIC_PREFIX", model.DefaultTopicPrefix),
		CycleSpec:     envStr("WATERING_CYCLE", "@every 1h"),
		MetricsPort:   envInt("METRICS_PORT", 2114),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := mqttbus.New(cfg.Bus)
	if err := bus.Connect(ctx); err != nil {
		log.Fatalf("watering-svc: mqtt connect: %v", err)
	}
	defer bus.Disconnect()

	fetcher := decision.NewFetcher(
		store.NewSensorClient(cfg.SensorURL, 5*time.Second),
		weather.New(cfg.WeatherNowURL, cfg.WeatherHisURL, 10*time.Second))
	ctrl := decision.NewController(bus, model.NewChannels(cfg.TopicPrefix),
		store.New(cfg.StoreURL, 5*time.Second), fetcher)

	c := cron.New()
	if _, err := c.AddFunc(cfg.CycleSpec, func() {
		if err := ctrl.Run(ctx); err != nil {
			log.Printf("watering-svc: cycle: %v", err)
		}
	}); err != nil {
		log.Fatalf("watering-svc: bad cycle spec %q: %v", cfg.CycleSpec, err)
	}
	c.Start()

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		log.Printf("watering-svc: metrics on :%d", cfg.MetricsPort)
		if err := http.ListenAndServe(":"+strconv.Itoa(cfg.MetricsPort), nil); err != nil {
			log.Printf("watering-svc: metrics server: %v", err)
		}
	}()

	log.Printf("watering-svc: running (cycle=%s prefix=%s)", cfg.CycleSpec, cfg.TopicPrefix)
	<-ctx.Done()
	<-c.Stop().Done()
	log.Println("watering-svc: shutting down")
}
