package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"brandlift-pipeline-server/modules/common/config"
	"brandlift-pipeline-server/modules/common/model"
)

type Client struct {
	supabase *supabase.Client
}

// NewClient - Database 클라이언트 생성
func NewClient() *Client {
	cfg := config.GetConfig()

	supabaseClient, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, &supabase.ClientOptions{})
	if err != nil {
		log.Printf("❌ Failed to create Supabase client: %v", err)
		return nil
	}

	return &Client{
		supabase: supabaseClient,
	}
}

// FetchProduct - products 테이블에서 상품 조회 (없으면 nil 반환)
func (c *Client) FetchProduct(ctx context.Context, brandID, productID string) (map[string]interface{}, error) {
	var products []map[string]interface{}

	data, _, err := c.supabase.From("products").
		Select("*", "exact", false).
		Eq("brand_id", brandID).
		Eq("product_id", productID).
		Execute()

	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}

	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("failed to parse product response: %w", err)
	}

	if len(products) == 0 {
		return nil, nil
	}

	return products[0], nil
}

// UpdateProduct - 상품 필드 업데이트 (brand_id + product_id 단일 키 매칭)
func (c *Client) UpdateProduct(ctx context.Context, brandID, productID string, fields map[string]interface{}) error {
	_, _, err := c.supabase.From("products").
		Update(fields, "", "").
		Eq("brand_id", brandID).
		Eq("product_id", productID).
		Execute()

	if err != nil {
		return fmt.Errorf("failed to update product %s: %w", productID, err)
	}

	return nil
}

// FetchBrandName - brands 테이블에서 브랜드명 조회
func (c *Client) FetchBrandName(ctx context.Context, brandID string) (string, error) {
	var brands []struct {
		Name string `json:"name"`
	}

	data, _, err := c.supabase.From("brands").
		Select("name", "exact", false).
		Eq("id", brandID).
		Execute()

	if err != nil {
		return "", fmt.Errorf("failed to query brands: %w", err)
	}

	if err := json.Unmarshal(data, &brands); err != nil {
		return "", fmt.Errorf("failed to parse brand response: %w", err)
	}

	if len(brands) == 0 {
		return "", fmt.Errorf("brand not found: %s", brandID)
	}

	return brands[0].Name, nil
}

// FetchPrompt - prompts 테이블에서 템플릿 조회 (없으면 빈 문자열)
func (c *Client) FetchPrompt(ctx context.Context, brandID, name string) string {
	var prompts []struct {
		Content string `json:"content"`
	}

	data, _, err := c.supabase.From("prompts").
		Select("content", "exact", false).
		Eq("brand_id", brandID).
		Eq("name", name).
		Execute()

	if err != nil {
		log.Printf("⚠️  Failed to query prompt %s: %v", name, err)
		return ""
	}

	if err := json.Unmarshal(data, &prompts); err != nil {
		log.Printf("⚠️  Failed to parse prompt response for %s: %v", name, err)
		return ""
	}

	if len(prompts) == 0 {
		return ""
	}

	return prompts[0].Content
}

// InsertJob - pipeline_jobs 테이블에 Job 생성 (pending 상태)
func (c *Client) InsertJob(ctx context.Context, job *model.PipelineJob) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	insertData := map[string]interface{}{
		"id":             job.ID,
		"brand_id":       job.BrandID,
		"status":         job.Status,
		"total_products": job.TotalProducts,
		"progress":       job.Progress,
		"product_ids":    job.ProductIDs,
		"modes":          job.Modes,
	}

	_, _, err := c.supabase.From("pipeline_jobs").
		Insert(insertData, false, "", "", "").
		Execute()

	if err != nil {
		return "", fmt.Errorf("failed to insert job: %w", err)
	}

	log.Printf("💾 Job record created: %s (%d products)", job.ID, job.TotalProducts)
	return job.ID, nil
}

// UpdateJob - Job 필드 업데이트
func (c *Client) UpdateJob(ctx context.Context, jobID string, fields map[string]interface{}) error {
	_, _, err := c.supabase.From("pipeline_jobs").
		Update(fields, "", "").
		Eq("id", jobID).
		Execute()

	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", jobID, err)
	}

	return nil
}

// FetchJob - pipeline_jobs 테이블에서 Job 조회
func (c *Client) FetchJob(ctx context.Context, jobID string) (*model.PipelineJob, error) {
	var jobs []model.PipelineJob

	data, _, err := c.supabase.From("pipeline_jobs").
		Select("*", "exact", false).
		Eq("id", jobID).
		Execute()

	if err != nil {
		return nil, fmt.Errorf("failed to query job: %w", err)
	}

	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("failed to parse job response: %w", err)
	}

	if len(jobs) == 0 {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	job := &jobs[0]
	log.Printf("✅ Job fetched: %s (status: %s, products: %d)", job.ID, job.Status, job.TotalProducts)

	return job, nil
}

// FetchJobs - 브랜드의 최근 Job 목록 조회
func (c *Client) FetchJobs(ctx context.Context, brandID string, limit int) ([]model.PipelineJob, error) {
	var jobs []model.PipelineJob

	data, _, err := c.supabase.From("pipeline_jobs").
		Select("*", "exact", false).
		Eq("brand_id", brandID).
		Order("started_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		Execute()

	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}

	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("failed to parse jobs response: %w", err)
	}

	return jobs, nil
}
