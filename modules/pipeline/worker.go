package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"brandlift-pipeline-server/modules/common/model"
)

// JobQueueKey - 파이프라인 Job 큐
const JobQueueKey = "pipeline:jobs"

// JobStore - 큐에서 꺼낸 job_id로 Job 레코드를 조회하는 인터페이스
type JobStore interface {
	FetchJob(ctx context.Context, jobID string) (*model.PipelineJob, error)
}

// StartWorker - Redis Queue Worker 시작
func StartWorker(rdb *redis.Client, jobs JobStore, runner *Runner) {
	log.Println("🔄 Pipeline queue worker starting...")
	log.Printf("👀 Watching queue: %s", JobQueueKey)

	ctx := context.Background()

	// 무한 루프로 Queue 감시
	for {
		// BRPOP - Blocking Right Pop
		result, err := rdb.BRPop(ctx, 0, JobQueueKey).Result()
		if err != nil {
			log.Printf("❌ Redis BRPOP error: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		// result[0]은 큐 이름, result[1]이 실제 job_id
		jobID := result[1]
		log.Printf("🎯 Received new job: %s", jobID)

		// Job 처리 (goroutine으로 비동기)
		go processJob(ctx, jobs, runner, jobID)
	}
}

// processJob - 큐에서 받은 Job 실행
func processJob(ctx context.Context, jobs JobStore, runner *Runner, jobID string) {
	job, err := jobs.FetchJob(ctx, jobID)
	if err != nil {
		log.Printf("❌ Failed to fetch job %s: %v", jobID, err)
		return
	}

	runner.Run(ctx, job)
}
