package io

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/slok/missionctl/internal/model"
)

// TelemetryYAMLRepository loads telemetry batches from YAML files.
type TelemetryYAMLRepository struct {
	fs fs.FS
}

// NewTelemetryYAMLRepository creates a new YAML telemetry repository.
func NewTelemetryYAMLRepository(filesystem fs.FS) *TelemetryYAMLRepository {
	return &TelemetryYAMLRepository{fs: filesystem}
}

// GetTelemetry loads a telemetry batch from a YAML file and returns a validated domain model.
func (r *TelemetryYAMLRepository) GetTelemetry(ctx context.Context, path string) (model.Telemetry, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return model.Telemetry{}, fmt.Errorf("reading telemetry file: %w", err)
	}

	if ctx.Err() != nil {
		return model.Telemetry{}, ctx.Err()
	}

	var t Telemetry
	if err := yaml.Unmarshal(data, &t); err != nil {
		return model.Telemetry{}, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := t.validate(); err != nil {
		return model.Telemetry{}, fmt.Errorf("invalid telemetry: %w", err)
	}

	return t.toModel(), nil
}

// Telemetry represents the YAML structure of a telemetry batch.
type Telemetry struct {
	Costs      *Costs     `yaml:"costs,omitempty"`
	Activities []Activity `yaml:"activities"`
}

// Costs represents the YAML structure of the reported costs.
type Costs struct {
	Today float64 `yaml:"today"`
	Total float64 `yaml:"total"`
}

// Activity represents the YAML structure of a feed activity.
type Activity struct {
	Type        string         `yaml:"type"`
	Icon        string         `yaml:"icon"`
	Title       string         `yaml:"title"`
	Description string         `yaml:"description"`
	Metadata    map[string]any `yaml:"metadata"`
	// Timestamp is optional, the sync time is used when missing.
	Timestamp *time.Time `yaml:"timestamp,omitempty"`
}

func (t Telemetry) validate() error {
	if t.Costs == nil && len(t.Activities) == 0 {
		return fmt.Errorf("costs or activities are required: %w", model.ErrNotValid)
	}

	if t.Costs != nil {
		if t.Costs.Today < 0 {
			return fmt.Errorf("costs today can't be negative, got: %v: %w", t.Costs.Today, model.ErrNotValid)
		}
		if t.Costs.Total < 0 {
			return fmt.Errorf("costs total can't be negative, got: %v: %w", t.Costs.Total, model.ErrNotValid)
		}
	}

	for i, a := range t.Activities {
		if err := a.toModel().Validate(); err != nil {
			return fmt.Errorf("activity %d: %w", i, err)
		}
	}

	return nil
}

func (t Telemetry) toModel() model.Telemetry {
	m := model.Telemetry{}

	if t.Costs != nil {
		m.Costs = &model.CostDelta{
			Today: t.Costs.Today,
			Total: t.Costs.Total,
		}
	}

	for _, a := range t.Activities {
		m.Activities = append(m.Activities, a.toModel())
	}

	return m
}

func (a Activity) toModel() model.Activity {
	act := model.Activity{
		Type:        a.Type,
		Icon:        a.Icon,
		Title:       a.Title,
		Description: a.Description,
		Metadata:    a.Metadata,
	}
	if a.Timestamp != nil {
		act.Timestamp = a.Timestamp.UTC()
	}

	return act
}
