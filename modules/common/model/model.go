package model

import "time"

// PipelineJob - pipeline_jobs 테이블 구조
type PipelineJob struct {
	ID            string     `json:"id"`
	BrandID       string     `json:"brand_id"`
	Status        string     `json:"status"`
	TotalProducts int        `json:"total_products"`
	Progress      int        `json:"progress"`
	ProductIDs    []string   `json:"product_ids"`
	Modes         []string   `json:"modes"`
	ErrorMessage  *string    `json:"error"`
	StartedAt     *time.Time `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at"`
}

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)
