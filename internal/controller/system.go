// Package controller mediates between the HTTP surface and the pipeline:
// each controller exposes the operations one route group needs.
package controller

import (
	"context"

	"skirmish/internal/filestore"
	"skirmish/internal/orchestrator"
)

// HealthChecker is implemented by the infrastructure pieces the health
// route probes.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// BrokerHealth is the gateway's connection check.
type BrokerHealth interface {
	Health() error
}

// CheckResult is one subsystem's health probe outcome.
type CheckResult struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// HealthReport aggregates the subsystem probes.
type HealthReport struct {
	Healthy bool                   `json:"healthy"`
	Checks  map[string]CheckResult `json:"checks"`
}

// WorkerStatus is one registry entry as shown by the ops API.
type WorkerStatus struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	WorkerID string `json:"worker_id"`
	Active   bool   `json:"active"`
}

type SystemController interface {
	Health(ctx context.Context) HealthReport
	Workers() []WorkerStatus
}

type systemController struct {
	db       HealthChecker
	broker   BrokerHealth
	files    *filestore.Store
	registry orchestrator.WorkerRegistry
}

func NewSystemController(db HealthChecker, broker BrokerHealth, files *filestore.Store, registry orchestrator.WorkerRegistry) SystemController {
	return &systemController{db: db, broker: broker, files: files, registry: registry}
}

func (c *systemController) Health(ctx context.Context) HealthReport {
	report := HealthReport{Healthy: true, Checks: make(map[string]CheckResult)}

	record := func(name string, err error) {
		result := CheckResult{Healthy: err == nil}
		if err != nil {
			result.Error = err.Error()
			report.Healthy = false
		}
		report.Checks[name] = result
	}

	record("database", c.db.Health(ctx))
	record("broker", c.broker.Health())
	record("filestore", c.files.Writable())
	return report
}

func (c *systemController) Workers() []WorkerStatus {
	workers := c.registry.Workers()
	out := make([]WorkerStatus, 0, len(workers))
	for _, w := range workers {
		out = append(out, WorkerStatus{
			Type:     w.Type(),
			Name:     w.Name(),
			WorkerID: w.WorkerID(),
			Active:   w.Active(),
		})
	}
	return out
}
