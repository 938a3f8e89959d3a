package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"

	"brandlift-pipeline-server/modules/common/gemini"
)

// QA 단계에 주입하는 콘텐츠 가드레일 요약
const qaGuardrailsSummary = "All generated content must be factually accurate, visually consistent, benefit-focused, and adhere to specified formatting rules."

// promptWithRefs - 프롬프트 텍스트 + 참조 이미지 전체를 생성 요청 parts로 구성
// 모든 텍스트 단계는 참조 이미지를 함께 보낸다.
func promptWithRefs(prompt string, refs [][]byte) []gemini.Part {
	parts := []gemini.Part{{Text: prompt}}
	for _, ref := range refs {
		parts = append(parts, gemini.Part{ImageData: ref})
	}
	return parts
}

// renderPrompt - 템플릿의 {placeholder}를 치환
// 템플릿이 없으면 치환 값만 이어붙여 프롬프트를 구성한다 (브랜드별 템플릿 미등록 허용).
func renderPrompt(template string, pairs ...string) string {
	if template == "" {
		values := make([]string, 0, len(pairs)/2)
		for i := 1; i < len(pairs); i += 2 {
			if pairs[i] != "" {
				values = append(values, pairs[i])
			}
		}
		return strings.Join(values, "\n")
	}

	for i := 0; i+1 < len(pairs); i += 2 {
		template = strings.ReplaceAll(template, "{"+pairs[i]+"}", pairs[i+1])
	}
	return template
}

// runMetadataStage - Step 1: 상품 메타데이터 생성 (항상 실행)
func (s *Service) runMetadataStage(ctx context.Context, st *runState) {
	log.Printf("📝 [Step 1] Generating metadata for %s", st.productID)

	template := s.repo.FetchPrompt(ctx, st.brandID, "step1_metadata.txt")
	prompt := renderPrompt(template,
		"product_title", stringField(st.product, "title", ""),
		"product_id", st.productID,
	)
	prompt += "\n\nContext Product Data: " + toJSONString(st.product)

	text := s.generator.GenerateText(ctx, promptWithRefs(prompt, st.refs), true)
	st.outputs[StageMetadata] = ExtractJSON(text)
}

// runAttributesStage - Step 2: 구조화 속성 추출 (ecommerce 모드)
func (s *Service) runAttributesStage(ctx context.Context, st *runState) {
	log.Printf("📝 [Step 2] Extracting attributes for %s", st.productID)

	template := s.repo.FetchPrompt(ctx, st.brandID, "step2_attributes.txt")
	prompt := renderPrompt(template,
		"product_title", stringField(st.product, "title", ""),
	)
	prompt += "\n\nMetadata so far: " + toJSONString(st.outputs[StageMetadata])

	text := s.generator.GenerateText(ctx, promptWithRefs(prompt, st.refs), true)
	st.outputs[StageAttributes] = ExtractJSON(text)
}

// runEcommercePromptsStage - Step 3: 이커머스 이미지 프롬프트 생성 (ecommerce 모드)
func (s *Service) runEcommercePromptsStage(ctx context.Context, st *runState) []map[string]interface{} {
	log.Printf("📝 [Step 3] Generating ecommerce prompts for %s", st.productID)

	template := s.repo.FetchPrompt(ctx, st.brandID, "step3_ecommerce_prompts.txt")
	prompt := renderPrompt(template,
		"attributes_json", toJSONString(st.outputs[StageAttributes]),
		"metadata_json", toJSONString(st.outputs[StageMetadata]),
	)

	text := s.generator.GenerateText(ctx, promptWithRefs(prompt, st.refs), true)
	result := ExtractJSON(text)
	st.outputs[StageEcommercePrompts] = result

	return NormalizePromptItems(result, "image_prompts")
}

// runEcommerceImagesStage - Step 4: 이커머스 이미지 생성 fan-out (ecommerce 모드)
func (s *Service) runEcommerceImagesStage(ctx context.Context, st *runState, items []map[string]interface{}) {
	log.Printf("🎨 [Step 4] Generating %d ecommerce images for %s", len(items), st.productID)

	template := s.repo.FetchPrompt(ctx, st.brandID, "ecommerce_image_generation.txt")

	tasks := make([]ImageTask, 0, len(items))
	for _, item := range items {
		label := stringField(item, "prompt_for_attribute", "unknown")
		detailed := strings.TrimSpace(
			stringField(item, "setting", "") + " " + stringField(item, "model_description", ""))

		tasks = append(tasks, ImageTask{
			Label: label,
			Prompt: renderPrompt(template,
				"detailed_prompt", detailed,
				"focus_attribute", label,
			),
			Refs: firstRefs(st.refs, 2),
		})
	}

	results := s.generateImages(ctx, st.brand, st.workingID, "ecommerce", tasks)

	records := make([]interface{}, len(results))
	for i, r := range results {
		records[i] = r.toRecord("attribute")
	}

	st.outputs[StageEcommerceImages] = map[string]interface{}{
		"product_id":        st.productID,
		"ecommerce_images":  records,
		"generation_method": s.generator.ImageModel(),
	}
}

// runLookbookPromptsStage - Step 5: 룩북 시나리오 프롬프트 생성 (lookbook 모드)
func (s *Service) runLookbookPromptsStage(ctx context.Context, st *runState) []map[string]interface{} {
	log.Printf("📝 [Step 5] Generating lookbook prompts for %s", st.productID)

	template := s.repo.FetchPrompt(ctx, st.brandID, "step5_lookbook_prompts.txt")
	prompt := renderPrompt(template,
		"metadata_json", toJSONString(st.outputs[StageMetadata]),
		"product_title", stringField(st.product, "title", ""),
	)

	text := s.generator.GenerateText(ctx, promptWithRefs(prompt, st.refs), true)
	result := ExtractJSON(text)
	st.outputs[StageLookbookPrompts] = result

	return NormalizePromptItems(result, "lookbook_prompts")
}

// runLookbookImagesStage - Step 6: 룩북 이미지 생성 fan-out (lookbook 모드)
func (s *Service) runLookbookImagesStage(ctx context.Context, st *runState, items []map[string]interface{}) {
	log.Printf("🎨 [Step 6] Generating %d lookbook images for %s", len(items), st.productID)

	template := s.repo.FetchPrompt(ctx, st.brandID, "lookbook_image_generation.txt")

	tasks := make([]ImageTask, 0, len(items))
	for i, item := range items {
		label := stringField(item, "scenario_name", fmt.Sprintf("Scenario %d", i+1))

		detailed := strings.Join([]string{
			"Scenario: " + stringField(item, "scenario_description", ""),
			"Model & Mood: " + stringField(item, "model_action_and_mood", ""),
			"Wearing: Product shown in reference images",
			"Style: Natural lighting, candid moment, high-end fashion photography",
			"Requirements: Photorealistic, no text or logos",
		}, "\n")

		tasks = append(tasks, ImageTask{
			Label: label,
			Prompt: renderPrompt(template,
				"detailed_prompt", detailed,
				"scenario_name", label,
			),
			Refs: firstRefs(st.refs, 2),
		})
	}

	results := s.generateImages(ctx, st.brand, st.workingID, "lookbook", tasks)

	records := make([]interface{}, len(results))
	for i, r := range results {
		records[i] = r.toRecord("scenario")
	}

	st.outputs[StageLookbookImages] = map[string]interface{}{
		"lookbook_images": records,
	}
}

// runQAStage - Step 7: QA 리포트 생성 (항상 실행, 실패해도 run을 죽이지 않음)
func (s *Service) runQAStage(ctx context.Context, st *runState) {
	log.Printf("📊 [Step 7] Generating QA report for %s", st.productID)
	st.outputs[StageQAReport] = s.buildQAReport(ctx, st)
}

// buildQAReport - QA 생성 시도, 어떤 실패든 기본 리포트로 강등
func (s *Service) buildQAReport(ctx context.Context, st *runState) (report map[string]interface{}) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️  QA stage panicked for %s: %v", st.productID, r)
			report = defaultQAReport(st.productID, fmt.Sprintf("QA stage failed: %v", r))
		}
	}()

	template := s.repo.FetchPrompt(ctx, st.brandID, "step7_qa.txt")
	prompt := renderPrompt(template,
		"source_product_data", toJSONString(st.product),
		"guardrails_summary", qaGuardrailsSummary,
		"metadata_json", toJSONString(st.outputs[StageMetadata]),
		"attributes_json", toJSONString(st.outputs[StageAttributes]),
		"ecommerce_prompts_json", toJSONString(st.outputs[StageEcommercePrompts]),
		"lookbook_prompts_json", toJSONString(st.outputs[StageLookbookPrompts]),
		"product_id", st.productID,
	)

	text := s.generator.GenerateText(ctx, promptWithRefs(prompt, st.refs), true)
	if text == "" {
		return defaultQAReport(st.productID, "QA generation produced no content")
	}

	if m, ok := ExtractJSON(text).(map[string]interface{}); ok && len(m) > 0 {
		return m
	}
	return defaultQAReport(st.productID, "QA response was not a JSON report")
}

// defaultQAReport - QA 실패 시 대체 리포트
func defaultQAReport(productID, summary string) map[string]interface{} {
	return map[string]interface{}{
		"qa_report_id":   "QA_" + productID,
		"overall_status": "Error",
		"summary":        summary,
		"checks":         []interface{}{},
	}
}

// firstRefs - 참조 이미지 최대 n장 선택
func firstRefs(refs [][]byte, n int) [][]byte {
	if len(refs) <= n {
		return refs
	}
	return refs[:n]
}

// hasMode - 모드 포함 여부 (순서 무관)
func hasMode(modes []string, mode string) bool {
	for _, m := range modes {
		if m == mode {
			return true
		}
	}
	return false
}
