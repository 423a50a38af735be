package models

import "time"

// Source names an ingest origin. Rows are created on demand and never
// mutated afterwards.
type Source struct {
	Name      string    `gorm:"size:50;primaryKey" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// GammaPlusOneSource tags the placeholder submission/transcription pairs
// created by the volunteer gamma_plusone operation.
const GammaPlusOneSource = "gamma-plus-one"
