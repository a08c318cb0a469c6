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
	"github.com/lwx123321/smart-garden/internal/services/lighting"
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
		WeatherNowURL string
		TopicPrefix   string
		TickSpec      string
		MetricsPort   int
	}{
		Bus: mqttbus.Config{
			Host:     envStr("MQTT_HOST", "localhost"),
			Port:     envInt("MQTT_PORT", 1883),
			User:     envStr("MQTT_USER", ""),
			Password: envStr("MQTT_PASSWORD", ""),
			ClientID: envStr("HOSTNAME", "lighting-service"),
		},
		StoreURL:      envStr("STORE_URL", "http://localhost:9090"),
		WeatherNowURL: envStr("WEATHER_CURRENT_URL", "http://localhost:9092/current"),
		TopicPrefix:   envStr("TOPIC_PREFIX", model.DefaultTopicPrefix),
		TickSpec:      envStr("LIGHTING_TICK", "@every 60s"),
		MetricsPort:   envInt("METRICS_PORT", 2115),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := mqttbus.New(cfg.Bus)
	if err := bus.Connect(ctx); err != nil {
		log.Fatalf("lighting-svc: mqtt connect: %v", err)
	}
	defer bus.Disconnect()

	ctrl := lighting.NewController(bus, model.NewChannels(cfg.TopicPrefix),
		store.New(cfg.StoreURL, 5*time.Second),
		weather.New(cfg.WeatherNowURL, "", 10*time.Second))

	c := cron.New()
	if _, err := c.AddFunc(cfg.TickSpec, func() {
		if err := ctrl.Tick(ctx, time.Now()); err != nil {
			log.Printf("lighting-svc: tick: %v", err)
		}
	}); err != nil {
		log.Fatalf("lighting-svc: bad tick spec %q: %v", cfg.TickSpec, err)
	}
	c.Start()

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		log.Printf("lighting-svc: metrics on :%d", cfg.MetricsPort)
		if err := http.ListenAndServe(":"+strconv.Itoa(cfg.MetricsPort), nil); err != nil {
			log.Printf("lighting-svc: metrics server: %v", err)
		}
	}()

	log.Printf("lighting-svc: running (tick=%s prefix=%s)", cfg.TickSpec, cfg.TopicPrefix)
	<-ctx.Done()
	<-c.Stop().Done()
	log.Println("lighting-svc: shutting down")
}
