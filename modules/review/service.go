package review

import (
	"context"
	"fmt"
	"log"

	"brandlift-pipeline-server/modules/pipeline"
)

// 이미지 타입 - flag 대상 선택
const (
	ImageTypeEcommerce = "ecommerce"
	ImageTypeLookbook  = "lookbook"
)

// Repository - 리뷰 워크플로우가 건드리는 상품 레코드 접근
type Repository interface {
	FetchProduct(ctx context.Context, brandID, productID string) (map[string]interface{}, error)
	UpdateProduct(ctx context.Context, brandID, productID string, fields map[string]interface{}) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// FlagImage - 생성 이미지 1장의 flagged 토글 후 상품 레벨 flag 재계산
// 상품 레벨 flag는 두 단계의 모든 이미지 flag의 OR로 유지된다.
func (s *Service) FlagImage(ctx context.Context, brandID, productID, imageType string, index int, flagged bool) (bool, error) {
	product, err := s.repo.FetchProduct(ctx, brandID, productID)
	if err != nil {
		return false, err
	}
	if product == nil {
		return false, fmt.Errorf("product not found: %s", productID)
	}

	content, ok := product["generated_content"].(map[string]interface{})
	if !ok {
		return false, fmt.Errorf("product %s has no generated content", productID)
	}

	outputs, ok := content["pipeline_outputs"].(map[string]interface{})
	if !ok {
		return false, fmt.Errorf("product %s has no pipeline outputs", productID)
	}

	records, err := imageRecords(outputs, imageType)
	if err != nil {
		return false, err
	}
	if index < 0 || index >= len(records) {
		return false, fmt.Errorf("image index %d out of range (%d images)", index, len(records))
	}

	record, ok := records[index].(map[string]interface{})
	if !ok {
		return false, fmt.Errorf("image record %d has unexpected shape", index)
	}
	record["flagged"] = flagged

	productFlag := aggregateFlags(outputs)

	fields := map[string]interface{}{
		"generated_content": content,
		"flagged":           productFlag,
	}
	if err := s.repo.UpdateProduct(ctx, brandID, productID, fields); err != nil {
		return false, err
	}

	log.Printf("🚩 Image flag updated: %s/%s %s[%d]=%v (product flag: %v)",
		brandID, productID, imageType, index, flagged, productFlag)

	return productFlag, nil
}

// imageRecords - 이미지 타입에 해당하는 단계의 레코드 리스트 추출
func imageRecords(outputs map[string]interface{}, imageType string) ([]interface{}, error) {
	var stageKey, listKey string

	switch imageType {
	case ImageTypeEcommerce:
		stageKey, listKey = pipeline.StageEcommerceImages, "ecommerce_images"
	case ImageTypeLookbook:
		stageKey, listKey = pipeline.StageLookbookImages, "lookbook_images"
	default:
		return nil, fmt.Errorf("invalid image type: %s", imageType)
	}

	stage, ok := outputs[stageKey].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("no %s images in pipeline outputs", imageType)
	}

	records, ok := stage[listKey].([]interface{})
	if !ok {
		return nil, fmt.Errorf("no %s images in pipeline outputs", imageType)
	}

	return records, nil
}

// aggregateFlags - 두 단계의 모든 이미지 flag의 OR
func aggregateFlags(outputs map[string]interface{}) bool {
	for _, imageType := range []string{ImageTypeEcommerce, ImageTypeLookbook} {
		records, err := imageRecords(outputs, imageType)
		if err != nil {
			continue
		}
		for _, raw := range records {
			record, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			if f, ok := record["flagged"].(bool); ok && f {
				return true
			}
		}
	}
	return false
}
