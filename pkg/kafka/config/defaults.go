package kafka_config

import "time"

const (
	DefaultKafkaEnabled = false

	// Default Kafka broker
	DefaultKafkaBrokers = "localhost:9092"

	DefaultFlightEventsTopic    = "flights.events"
	DefaultFlightEventsDLQTopic = ""

	// Producer defaults
	DefaultProducerMaxAttempts  = 3
	DefaultProducerBatchTimeout = 10 * time.Millisecond
	DefaultProducerRequireAcks  = -1 // Require all replicas
	DefaultProducerCompression  = "snappy"
	DefaultProducerAsync        = false
	DefaultPublishTimeout       = 5 * time.Second

	// Middleware defaults
	DefaultEnableMiddleware = true
)
