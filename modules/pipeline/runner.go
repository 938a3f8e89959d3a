package pipeline

import (
	"context"
	"log"

	"brandlift-pipeline-server/modules/common/model"
)

// Runner - Job 단위 배치 실행기
// 상품은 순차 처리한다. 동시성은 상품 내부(이미지 fan-out)에만 한정해서
// 생성 API와 storage의 rate limit을 보호한다.
type Runner struct {
	service  *Service
	repo     Repository
	progress *ProgressHub
}

// NewRunner - Job Runner 생성 (progress는 nil 허용)
func NewRunner(service *Service, repo Repository, progress *ProgressHub) *Runner {
	return &Runner{
		service:  service,
		repo:     repo,
		progress: progress,
	}
}

// Run - Job 1개 실행: pending → running → {completed | failed}
// 개별 상품의 실패는 그 상품의 Run에만 기록되고 Job은 계속 진행된다.
// Job 레벨 실패(레코드 조회/저장 불가)만 배치를 중단시킨다.
func (r *Runner) Run(ctx context.Context, job *model.PipelineJob) {
	log.Printf("🚀 Starting job %s: %d products (modes: %v)", job.ID, len(job.ProductIDs), job.Modes)

	fields := map[string]interface{}{
		"status":     model.StatusRunning,
		"started_at": "now()",
	}
	if err := r.repo.UpdateJob(ctx, job.ID, fields); err != nil {
		r.fail(ctx, job, 0, err)
		return
	}

	r.notify(ProgressEvent{
		Type:  "job_started",
		JobID: job.ID,
		Total: len(job.ProductIDs),
	})

	progress := 0
	for _, productID := range job.ProductIDs {
		product, err := r.repo.FetchProduct(ctx, job.BrandID, productID)
		if err != nil {
			r.fail(ctx, job, progress, err)
			return
		}

		// 레코드가 없어도 건너뛰지 않는다 - 최소 스텁으로 처리해서 failed 결과를 남김
		if product == nil {
			log.Printf("⚠️  Product %s not found, processing stub record", productID)
			product = map[string]interface{}{"product_id": productID}
		}

		run := r.service.Process(ctx, job.BrandID, product, job.Modes)

		progress++
		if err := r.repo.UpdateJob(ctx, job.ID, map[string]interface{}{"progress": progress}); err != nil {
			r.fail(ctx, job, progress, err)
			return
		}

		r.notify(ProgressEvent{
			Type:      "product_completed",
			JobID:     job.ID,
			ProductID: productID,
			Status:    run.Status,
			Progress:  progress,
			Total:     len(job.ProductIDs),
		})
	}

	fields = map[string]interface{}{
		"status":       model.StatusCompleted,
		"completed_at": "now()",
	}
	if err := r.repo.UpdateJob(ctx, job.ID, fields); err != nil {
		log.Printf("❌ Failed to finalize job %s: %v", job.ID, err)
		return
	}

	r.notify(ProgressEvent{
		Type:     "job_completed",
		JobID:    job.ID,
		Progress: progress,
		Total:    len(job.ProductIDs),
	})

	log.Printf("✅ Job %s completed: %d/%d products", job.ID, progress, len(job.ProductIDs))
}

// fail - Job을 failed로 마감 (이미 처리된 상품의 결과는 그대로 유지됨)
func (r *Runner) fail(ctx context.Context, job *model.PipelineJob, progress int, cause error) {
	log.Printf("❌ Job %s failed after %d products: %v", job.ID, progress, cause)

	fields := map[string]interface{}{
		"status":       model.StatusFailed,
		"error":        cause.Error(),
		"completed_at": "now()",
	}
	if err := r.repo.UpdateJob(ctx, job.ID, fields); err != nil {
		log.Printf("❌ Failed to mark job %s as failed: %v", job.ID, err)
	}

	r.notify(ProgressEvent{
		Type:     "job_failed",
		JobID:    job.ID,
		Progress: progress,
		Total:    len(job.ProductIDs),
		Error:    cause.Error(),
	})
}

// notify - progress 이벤트 브로드캐스트 (hub 미연결 허용)
func (r *Runner) notify(event ProgressEvent) {
	if r.progress != nil {
		r.progress.Broadcast(event)
	}
}
