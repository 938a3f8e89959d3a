package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"brandlift-pipeline-server/modules/common/gemini"
)

// 동시 이미지 생성 제한 (생성 API rate limit 보호)
const maxConcurrentImages = 4

// generateImages - 이미지 생성 태스크를 병렬 실행하고 입력 순서대로 결과 수집
// 개별 태스크 실패는 그 태스크의 결과에만 기록되고 다른 태스크에 영향을 주지 않는다.
func (s *Service) generateImages(ctx context.Context, brand, workingID, stagePrefix string, tasks []ImageTask) []ImageResult {
	results := make([]ImageResult, len(tasks))

	log.Printf("🚀 Starting parallel image generation: %d tasks (max %d concurrent)", len(tasks), maxConcurrentImages)

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, maxConcurrentImages)

	for taskIdx, task := range tasks {
		wg.Add(1)

		go func(idx int, task ImageTask) {
			defer wg.Done()

			// 태스크 내부 panic도 failed 결과로 격리 (다른 태스크와 프로세스 보호)
			defer func() {
				if r := recover(); r != nil {
					log.Printf("❌ Image task panicked for %s: %v", task.Label, r)
					results[idx] = ImageResult{
						Label:  task.Label,
						Status: ImageStatusFailed,
						Error:  fmt.Sprintf("image task panicked: %v", r),
					}
				}
			}()

			// Semaphore 획득
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			results[idx] = s.generateOne(ctx, brand, workingID, stagePrefix, task)
		}(taskIdx, task)
	}

	wg.Wait()

	generated := 0
	for _, r := range results {
		if r.Status == ImageStatusGenerated {
			generated++
		}
	}
	log.Printf("🏁 Image generation done: %d/%d succeeded", generated, len(tasks))

	return results
}

// generateOne - 이미지 1장 생성 + 업로드 (실패는 결과 값으로 반환, 에러 전파 없음)
func (s *Service) generateOne(ctx context.Context, brand, workingID, stagePrefix string, task ImageTask) ImageResult {
	parts := []gemini.Part{{Text: task.Prompt}}
	for i, ref := range task.Refs {
		if i >= 2 {
			break
		}
		parts = append(parts, gemini.Part{ImageData: ref})
	}

	imageData, err := s.generator.GenerateImage(ctx, parts)
	if err != nil {
		log.Printf("❌ Image generation failed for %s: %v", task.Label, err)
		return ImageResult{Label: task.Label, Status: ImageStatusFailed, Error: err.Error()}
	}
	if len(imageData) == 0 {
		log.Printf("❌ Image generation returned no data for %s", task.Label)
		return ImageResult{Label: task.Label, Status: ImageStatusFailed, Error: "no image data returned"}
	}

	path := fmt.Sprintf("%s/%s/%s_%s.png", brand, workingID, stagePrefix, sanitizeLabel(task.Label))
	if err := s.store.Upload(BucketImages, path, imageData, "image/png"); err != nil {
		log.Printf("❌ Image upload failed for %s: %v", task.Label, err)
		return ImageResult{Label: task.Label, Status: ImageStatusFailed, Error: err.Error()}
	}

	return ImageResult{
		Label:     task.Label,
		ImagePath: s.store.PublicURL(BucketImages, path),
		Status:    ImageStatusGenerated,
	}
}

// sanitizeLabel - 라벨을 storage 경로에 쓸 수 있게 정리
func sanitizeLabel(label string) string {
	sanitized := strings.ReplaceAll(label, " ", "_")
	sanitized = strings.ReplaceAll(sanitized, "/", "-")
	return strings.ToLower(sanitized)
}
