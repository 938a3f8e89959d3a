package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"
)

type Service struct {
	repo      Repository
	store     ObjectStore
	generator Generator
}

// NewService - Product Processor 생성 (의존성 명시 주입, 테스트에서 fake 교체용)
func NewService(repo Repository, store ObjectStore, generator Generator) *Service {
	return &Service{
		repo:      repo,
		store:     store,
		generator: generator,
	}
}

// runState - 상품 1개 실행 동안의 작업 상태
type runState struct {
	brandID   string
	brand     string
	productID string
	workingID string
	product   map[string]interface{}
	refs      [][]byte
	outputs   map[string]interface{}
}

// Process - 상품 1개의 전체 파이프라인 실행
// 절대 에러를 반환하지 않는다. 모든 실패는 반환되는 Run에 기록되고,
// 성공/실패와 무관하게 결과는 항상 저장된다.
func (s *Service) Process(ctx context.Context, brandID string, product map[string]interface{}, modes []string) *Run {
	productID := stringField(product, "product_id", "")

	// 플랫폼 핸들이 있으면 작업 식별자로 우선 사용 (storage 경로, 로그)
	workingID := stringField(product, "shopify_handle", productID)

	brand, err := s.repo.FetchBrandName(ctx, brandID)
	if err != nil || brand == "" {
		log.Printf("⚠️  Failed to fetch brand name for %s, using id: %v", brandID, err)
		brand = brandID
	}

	log.Printf("🚀 Processing product %s (brand: %s, modes: %v)", productID, brand, modes)

	st := &runState{
		brandID:   brandID,
		brand:     brand,
		productID: productID,
		workingID: workingID,
		product:   product,
		outputs:   map[string]interface{}{},
	}

	run := &Run{
		Brand:      brand,
		ProductID:  productID,
		Timestamp:  time.Now(),
		Status:     RunStatusRunning,
		SourceData: product,
		Outputs:    st.outputs,
	}

	// 어떤 경로로 끝나든 결과는 저장한다 - 중간에 죽어도 failed 레코드는 남아야 함
	defer s.persistRun(st, run)

	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("❌ Pipeline crashed for %s: %v", productID, r)
				run.Status = RunStatusFailed
				run.Error = fmt.Sprintf("pipeline crashed: %v", r)
			}
		}()

		// 1. 이전 실행 잔여물 정리 (실패해도 진행)
		s.cleanup(ctx, st)

		// 2. 참조 이미지 다운로드 (병렬, 개별 실패는 드롭)
		st.refs = s.downloadReferenceImages(ctx, imageURLs(product))
		run.ImagesProcessed = len(st.refs)

		if len(st.refs) == 0 {
			run.Status = RunStatusFailed
			run.Error = "no usable reference images"
			log.Printf("❌ No reference images downloaded for %s", productID)
			return
		}

		// 3. 단계 실행
		s.runMetadataStage(ctx, st)

		if hasMode(modes, ModeEcommerce) {
			s.runAttributesStage(ctx, st)
			items := s.runEcommercePromptsStage(ctx, st)
			s.runEcommerceImagesStage(ctx, st, items)
		}

		if hasMode(modes, ModeLookbook) {
			items := s.runLookbookPromptsStage(ctx, st)
			s.runLookbookImagesStage(ctx, st, items)
		}

		s.runQAStage(ctx, st)

		run.Status = RunStatusCompleted
	}()

	log.Printf("🏁 Product %s finished: %s", productID, run.Status)
	return run
}

// cleanup - 이전 실행의 생성 이미지와 결과 필드 제거 (멱등 재실행 보장)
// storage 에러는 로그만 남기고 삼킨다 - 정리 실패가 새 실행을 막으면 안 됨
func (s *Service) cleanup(ctx context.Context, st *runState) {
	prefix := st.brand + "/" + st.workingID

	for _, bucket := range []string{BucketImages, BucketOutput} {
		paths, err := s.store.List(bucket, prefix)
		if err != nil {
			log.Printf("⚠️  Cleanup list failed for %s/%s: %v", bucket, prefix, err)
			continue
		}
		if len(paths) == 0 {
			continue
		}
		if err := s.store.Remove(bucket, paths); err != nil {
			log.Printf("⚠️  Cleanup remove failed for %s/%s: %v", bucket, prefix, err)
		}
	}

	fields := map[string]interface{}{
		"generated_content": nil,
		"processed":         false,
		"push_status":       nil,
		"pushed_at":         nil,
	}
	if err := s.repo.UpdateProduct(ctx, st.brandID, st.productID, fields); err != nil {
		log.Printf("⚠️  Cleanup field reset failed for %s: %v", st.productID, err)
	}
}

// downloadReferenceImages - 참조 이미지 병렬 다운로드
// 실패한 URL은 조용히 제외하고 성공분만 원래 순서대로 반환한다.
func (s *Service) downloadReferenceImages(ctx context.Context, urls []string) [][]byte {
	if len(urls) == 0 {
		return nil
	}

	downloaded := make([][]byte, len(urls))
	var wg sync.WaitGroup

	for urlIdx, url := range urls {
		wg.Add(1)

		go func(idx int, url string) {
			defer wg.Done()

			data, err := s.store.DownloadImage(ctx, url)
			if err != nil {
				log.Printf("⚠️  Reference image download failed: %s (%v)", url, err)
				return
			}
			downloaded[idx] = data
		}(urlIdx, url)
	}

	wg.Wait()

	refs := make([][]byte, 0, len(urls))
	for _, data := range downloaded {
		if len(data) > 0 {
			refs = append(refs, data)
		}
	}

	log.Printf("📥 Downloaded %d/%d reference images", len(refs), len(urls))
	return refs
}

// persistRun - 실행 결과를 products.generated_content와 output 버킷에 저장
// 호출 시점의 ctx가 이미 죽었을 수 있어 별도 timeout context를 쓴다.
func (s *Service) persistRun(st *runState, run *Run) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	content := run.ToMap()

	fields := map[string]interface{}{
		"generated_content": content,
		"processed":         run.Status == RunStatusCompleted,
		"processed_at":      "now()",
	}
	if err := s.repo.UpdateProduct(ctx, st.brandID, st.productID, fields); err != nil {
		log.Printf("❌ Failed to persist run for %s: %v", st.productID, err)
	}

	snapshot, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		log.Printf("❌ Failed to marshal run snapshot for %s: %v", st.productID, err)
		return
	}

	path := fmt.Sprintf("%s/%s/product_data.json", st.brand, st.workingID)
	if err := s.store.Upload(BucketOutput, path, snapshot, "application/json"); err != nil {
		log.Printf("❌ Failed to upload run snapshot for %s: %v", st.productID, err)
	}
}

// imageURLs - 상품 레코드에서 참조 이미지 URL 목록 추출
// Shopify류 데이터는 ["url", ...] 또는 [{"src": "url"}, ...] 두 형태가 섞여 들어온다.
func imageURLs(product map[string]interface{}) []string {
	raw, ok := product["images"].([]interface{})
	if !ok {
		return nil
	}

	urls := make([]string, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case string:
			if v != "" {
				urls = append(urls, v)
			}
		case map[string]interface{}:
			if src := stringField(v, "src", ""); src != "" {
				urls = append(urls, src)
			}
		}
	}

	return urls
}
