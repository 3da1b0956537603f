// Package kafka publishes notices to a Kafka topic so other systems can
// follow task execution and artifact application.
package kafka
