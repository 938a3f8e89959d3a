package pipeline

import (
	"context"
	"strings"
	"testing"
)

func TestGenerateImagesPartialFailureIsolation(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()

	generator := newFakeGenerator()
	generator.imageFail["back view"] = true

	service := NewService(repo, store, generator)

	tasks := []ImageTask{
		{Label: "front view", Prompt: "Render front view of the coat"},
		{Label: "back view", Prompt: "Render back view of the coat"},
		{Label: "detail shot", Prompt: "Render detail shot of the coat"},
	}

	results := service.generateImages(context.Background(), "Brand", "P1", "ecommerce", tasks)

	if len(results) != len(tasks) {
		t.Fatalf("결과 개수 기대값 %d, 실제값 %d", len(tasks), len(results))
	}

	// 결과는 입력 순서와 정렬되어야 함
	for i, task := range tasks {
		if results[i].Label != task.Label {
			t.Errorf("결과 %d의 라벨 기대값 %s, 실제값 %s", i, task.Label, results[i].Label)
		}
	}

	if results[0].Status != ImageStatusGenerated {
		t.Errorf("front view 기대 상태 generated, 실제값 %s", results[0].Status)
	}
	if results[1].Status != ImageStatusFailed {
		t.Errorf("back view 기대 상태 failed, 실제값 %s", results[1].Status)
	}
	if results[1].Error == "" {
		t.Error("실패한 태스크에 에러 메시지가 없습니다")
	}
	if results[2].Status != ImageStatusGenerated {
		t.Errorf("detail shot 기대 상태 generated, 실제값 %s", results[2].Status)
	}

	// 성공한 이미지는 정해진 경로에 업로드되어야 함
	if _, ok := store.objects[BucketImages]["Brand/P1/ecommerce_front_view.png"]; !ok {
		t.Errorf("front view 이미지가 업로드되지 않았습니다: %v", keysOf(store.objects[BucketImages]))
	}
	if results[0].ImagePath != "https://cdn.test/images/Brand/P1/ecommerce_front_view.png" {
		t.Errorf("image_path가 공개 URL이 아닙니다: %s", results[0].ImagePath)
	}

	// 실패한 태스크의 이미지는 업로드되면 안 됨
	if _, ok := store.objects[BucketImages]["Brand/P1/ecommerce_back_view.png"]; ok {
		t.Error("실패한 태스크의 이미지가 업로드되었습니다")
	}
}

func TestGenerateImagesPanicIsolation(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()

	generator := newFakeGenerator()
	generator.imagePanic["side view"] = true

	service := NewService(repo, store, generator)

	tasks := []ImageTask{
		{Label: "front view", Prompt: "Render front view of the coat"},
		{Label: "side view", Prompt: "Render side view of the coat"},
		{Label: "detail shot", Prompt: "Render detail shot of the coat"},
	}

	// 태스크 하나가 panic해도 호출 자체는 정상 반환해야 함
	results := service.generateImages(context.Background(), "Brand", "P1", "ecommerce", tasks)

	if len(results) != len(tasks) {
		t.Fatalf("결과 개수 기대값 %d, 실제값 %d", len(tasks), len(results))
	}

	if results[1].Status != ImageStatusFailed {
		t.Errorf("side view 기대 상태 failed, 실제값 %s", results[1].Status)
	}
	if !strings.Contains(results[1].Error, "panicked") {
		t.Errorf("panic 태스크의 에러 메시지가 비어있거나 다릅니다: %q", results[1].Error)
	}

	// 나머지 태스크는 영향 없이 성공해야 함
	if results[0].Status != ImageStatusGenerated {
		t.Errorf("front view 기대 상태 generated, 실제값 %s", results[0].Status)
	}
	if results[2].Status != ImageStatusGenerated {
		t.Errorf("detail shot 기대 상태 generated, 실제값 %s", results[2].Status)
	}
}

func TestSanitizeLabel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Front View", "front_view"},
		{"fit/drape", "fit-drape"},
		{"simple", "simple"},
	}

	for _, c := range cases {
		if got := sanitizeLabel(c.in); got != c.want {
			t.Errorf("sanitizeLabel(%q) 기대값 %q, 실제값 %q", c.in, c.want, got)
		}
	}
}
