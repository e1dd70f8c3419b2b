package model

// Measurement is a named numeric value attached to a reference quantity,
// e.g. {"protein", 3.1, "g"}.
type Measurement struct {
	Name  string  `json:"name" yaml:"name"`
	Value float64 `json:"value" yaml:"value"`
	Unit  string  `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// ReferenceRecord is the canonical nutrient profile for a subject.
type ReferenceRecord struct {
	SubjectName       string        `json:"subjectName" yaml:"name"`
	ReferenceQuantity float64       `json:"referenceQuantity" yaml:"quantity"`
	ReferenceUnit     string        `json:"referenceUnit" yaml:"unit"`
	Measurements      []Measurement `json:"measurements" yaml:"measurements"`
	SourceID          string        `json:"sourceId,omitempty" yaml:"source_id,omitempty"`
}

// EstimateRecord is a model-estimated quantity for a named subject.
// Metadata passes through enrichment untouched.
type EstimateRecord struct {
	Name     string         `json:"name"`
	Quantity float64        `json:"quantity"`
	Unit     string         `json:"unit"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ScaledMeasurement is a reference measurement scaled to the estimated
// quantity, at full precision.
type ScaledMeasurement struct {
	Name       string  `json:"name"`
	Calculated float64 `json:"calculated"`
	Unit       string  `json:"unit,omitempty"`
}

// ScaledSubject is the enrichment outcome for one estimated subject.
type ScaledSubject struct {
	Estimate       EstimateRecord      `json:"estimate"`
	Reference      *ReferenceRecord    `json:"reference,omitempty"`
	ReferenceFound bool                `json:"referenceFound"`
	ScalingFactor  float64             `json:"scalingFactor"`
	Measurements   []ScaledMeasurement `json:"measurements"`
	Error          string              `json:"error,omitempty"`
}

// PresentedSubject is the rounded, delivery-ready form of a ScaledSubject.
// Calories is nil when the subject has no primary measurement, e.g. after a
// reference miss, so it never reads as a real zero.
type PresentedSubject struct {
	Name              string           `json:"name"`
	EstimatedQuantity float64          `json:"estimatedQuantity"`
	Unit              string           `json:"unit"`
	ReferenceQuantity float64          `json:"referenceQuantity,omitempty"`
	ReferenceUnit     string           `json:"referenceUnit,omitempty"`
	ReferenceFound    bool             `json:"referenceFound"`
	ScalingFactor     float64          `json:"scalingFactor"`
	Calories          *int64           `json:"calories,omitempty"`
	Nutrients         map[string]int64 `json:"nutrients"`
	Metadata          map[string]any   `json:"metadata,omitempty"`
	Error             string           `json:"error,omitempty"`
}

// NutritionReport is the terminal payload of a nutrition analysis job.
type NutritionReport struct {
	JobID  string             `json:"jobId"`
	Status JobStatus          `json:"status"`
	Items  []PresentedSubject `json:"items"`
	Totals map[string]int64   `json:"totals"`
	Error  string             `json:"error,omitempty"`
}
