package pipeline

import (
	"context"
	"errors"
	"testing"

	"brandlift-pipeline-server/modules/common/model"
)

func TestRunnerProgressMonotonicity(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	generator := newFakeGenerator()

	// p1은 정상, p2는 조회 단계에서 실패, p3는 도달하면 안 됨
	repo.products["p1"] = testProduct("p1")
	store.images["https://img.test/p1.png"] = []byte("ref-image")
	repo.productErrs["p2"] = errors.New("database unavailable")
	repo.products["p3"] = testProduct("p3")

	service := NewService(repo, store, generator)
	runner := NewRunner(service, repo, nil)

	job := &model.PipelineJob{
		ID:            "job-1",
		BrandID:       "b1",
		Status:        model.StatusPending,
		TotalProducts: 3,
		ProductIDs:    []string{"p1", "p2", "p3"},
		Modes:         []string{ModeEcommerce},
	}

	runner.Run(context.Background(), job)

	// p3는 조회조차 되면 안 됨
	for _, id := range repo.fetchedIDs {
		if id == "p3" {
			t.Error("실패 이후의 상품 p3가 처리되었습니다")
		}
	}

	// progress는 정확히 1까지만 올라가야 함
	maxProgress := 0
	for _, fields := range repo.jobUpdates {
		if p, ok := fields["progress"].(int); ok && p > maxProgress {
			maxProgress = p
		}
	}
	if maxProgress != 1 {
		t.Errorf("progress 기대값 1, 실제값 %d", maxProgress)
	}

	// Job은 failed로 마감되어야 함
	last := repo.jobUpdates[len(repo.jobUpdates)-1]
	if last["status"] != model.StatusFailed {
		t.Errorf("Job 최종 상태 기대값 failed, 실제값 %v", last["status"])
	}
	if last["error"] == nil || last["error"] == "" {
		t.Error("Job 실패 사유가 기록되지 않았습니다")
	}

	// 이미 처리된 p1의 결과는 유지되어야 함
	var p1Persisted bool
	for _, update := range repo.productUpdates {
		if update.productID != "p1" {
			continue
		}
		if content, ok := update.fields["generated_content"].(map[string]interface{}); ok {
			if content["status"] == RunStatusCompleted {
				p1Persisted = true
			}
		}
	}
	if !p1Persisted {
		t.Error("p1의 완료 결과가 저장되지 않았습니다")
	}
}

func TestRunnerProcessesMissingProductAsStub(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	generator := newFakeGenerator()

	// 레코드가 없는 상품 - 스텁으로 처리되어 failed 결과가 남아야 함
	service := NewService(repo, store, generator)
	runner := NewRunner(service, repo, nil)

	job := &model.PipelineJob{
		ID:            "job-2",
		BrandID:       "b1",
		TotalProducts: 1,
		ProductIDs:    []string{"ghost"},
		Modes:         []string{ModeEcommerce},
	}

	runner.Run(context.Background(), job)

	// 스텁 상품은 참조 이미지가 없어 run은 failed지만 Job은 완주해야 함
	last := repo.jobUpdates[len(repo.jobUpdates)-1]
	if last["status"] != model.StatusCompleted {
		t.Errorf("Job 최종 상태 기대값 completed, 실제값 %v", last["status"])
	}

	var ghostPersisted bool
	for _, update := range repo.productUpdates {
		if update.productID == "ghost" {
			if content, ok := update.fields["generated_content"].(map[string]interface{}); ok {
				if content["status"] == RunStatusFailed {
					ghostPersisted = true
				}
			}
		}
	}
	if !ghostPersisted {
		t.Error("스텁 상품의 failed 결과가 저장되지 않았습니다")
	}
}
