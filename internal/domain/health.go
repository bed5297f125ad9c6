package domain

import "time"

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates a dependency answered with an error but the service keeps running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates a dependency timed out or is unreachable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of one dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// FloorSummary counts tables by status at the time a readiness report was produced.
type FloorSummary struct {
	Tables      int
	Playing     int
	Empty       int
	Maintenance int
}

// SystemHealthReport aggregates dependency status for the readiness endpoint.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Floor       *FloorSummary
	Version     string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
