package pipeline

import (
	"context"
	"time"

	"brandlift-pipeline-server/modules/common/gemini"
)

// Storage 버킷
const (
	BucketImages = "images" // 생성 이미지
	BucketOutput = "output" // 실행 결과 스냅샷
)

// 모드 - 실행할 생성 트랙 선택
const (
	ModeEcommerce = "ecommerce"
	ModeLookbook  = "lookbook"
)

// Run 상태
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// 이미지 레코드 상태
const (
	ImageStatusGenerated = "generated"
	ImageStatusFailed    = "failed"
)

// 단계 결과 키 - 다운스트림(커머스 싱크)이 이 이름에 의존하므로 변경 금지
const (
	StageMetadata         = "step1_metadata"
	StageAttributes       = "step2_attributes"
	StageEcommercePrompts = "step3_ecommerce_prompts"
	StageEcommerceImages  = "step4_ecommerce_images"
	StageLookbookPrompts  = "step5_lookbook_prompts"
	StageLookbookImages   = "step6_lookbook_images"
	StageQAReport         = "step7_qa_report"
)

// Repository - 상품/브랜드/프롬프트/Job 레코드 접근 인터페이스
type Repository interface {
	FetchProduct(ctx context.Context, brandID, productID string) (map[string]interface{}, error)
	UpdateProduct(ctx context.Context, brandID, productID string, fields map[string]interface{}) error
	FetchBrandName(ctx context.Context, brandID string) (string, error)
	FetchPrompt(ctx context.Context, brandID, name string) string
	UpdateJob(ctx context.Context, jobID string, fields map[string]interface{}) error
}

// ObjectStore - 이미지/결과물 버킷 접근 인터페이스
type ObjectStore interface {
	List(bucket, prefix string) ([]string, error)
	Remove(bucket string, paths []string) error
	Upload(bucket, path string, data []byte, contentType string) error
	PublicURL(bucket, path string) string
	DownloadImage(ctx context.Context, url string) ([]byte, error)
}

// Generator - 텍스트/이미지 생성 호출 인터페이스
type Generator interface {
	GenerateText(ctx context.Context, parts []gemini.Part, strictJSON bool) string
	GenerateImage(ctx context.Context, parts []gemini.Part) ([]byte, error)
	ImageModel() string
}

// Run - 상품 1개의 파이프라인 실행 결과 (generated_content로 저장됨)
type Run struct {
	Brand           string
	ProductID       string
	Timestamp       time.Time
	Status          string
	SourceData      map[string]interface{}
	ImagesProcessed int
	Outputs         map[string]interface{}
	Error           string
}

// ToMap - generated_content JSON 형태로 변환
func (r *Run) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"brand":            r.Brand,
		"product_id":       r.ProductID,
		"timestamp":        r.Timestamp.UTC().Format(time.RFC3339),
		"status":           r.Status,
		"source_data":      r.SourceData,
		"images_processed": r.ImagesProcessed,
		"pipeline_outputs": r.Outputs,
	}
	if r.Error != "" {
		result["error"] = r.Error
	}
	return result
}

// ImageTask - 이미지 1장 생성 요청 (라벨 + 프롬프트 + 참조 이미지 최대 2장)
type ImageTask struct {
	Label  string
	Prompt string
	Refs   [][]byte
}

// ImageResult - 이미지 1장의 생성 결과
type ImageResult struct {
	Label     string
	ImagePath string
	Status    string
	Error     string
}

// toRecord - 단계 결과에 들어갈 레코드 형태로 변환
// labelKey는 ecommerce면 "attribute", lookbook이면 "scenario"
func (r ImageResult) toRecord(labelKey string) map[string]interface{} {
	record := map[string]interface{}{
		labelKey:     r.Label,
		"image_path": r.ImagePath,
		"status":     r.Status,
	}
	if r.Error != "" {
		record["error"] = r.Error
	}
	return record
}
