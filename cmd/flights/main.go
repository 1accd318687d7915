package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"kayak/internal/flights/events"
	"kayak/internal/flights/handler"
	"kayak/internal/flights/repository"
	"kayak/internal/flights/service"
	"kayak/internal/flights/validator"
	"kayak/pkg/app"
	"kayak/pkg/config"
	"kayak/pkg/metrics"
)

const ServiceName = "flights"

func main() {
	cfg := config.Load(ServiceName)
	if cfg.UsesMongo() {
		cfg.SetMongo()
	}

	cfg.Log.Info("Starting Flights service")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(ServiceName, registry)

	publisher, err := events.NewPublisher(cfg, m)
	if err != nil {
		cfg.Log.Fatal("Failed to create event publisher", "error", err)
	}

	flightService := initServices(cfg, publisher, m)

	serverApp := app.NewApplication(cfg).WithMetrics(m, registry)
	serverApp.OnShutdown(publisher)
	serverApp.SetApp(handler.NewFlightHandler(flightService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config, publisher events.Publisher, m *metrics.Metrics) service.FlightService {
	flightValidator := validator.NewFlightValidator(cfg.Log)

	var flightRepo repository.FlightRepository
	if cfg.UsesMongo() {
		flightRepo = repository.NewMongoFlightRepository(cfg, cfg.Client.Mongo.Database(cfg.MongoDatabaseName))
	} else {
		flightRepo = repository.NewMemoryFlightRepository()
	}

	flightService := service.NewFlightService(
		flightRepo,
		flightValidator,
		publisher,
		m,
		cfg,
	)

	cfg.Log.Info("Flights service initialized", "storage", cfg.StorageBackend, "database", cfg.MongoDatabaseName)
	return flightService
}
