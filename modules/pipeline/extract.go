package pipeline

import (
	"encoding/json"
	"strings"
)

// ExtractJSON - 모델 텍스트 응답에서 JSON 구조 추출
// 순서: 직접 파싱 → ```json 펜스 → 일반 ``` 펜스 → sentinel 맵
// 파싱에 전부 실패해도 에러를 내지 않고 sentinel로 강등한다.
func ExtractJSON(text string) interface{} {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return map[string]interface{}{}
	}

	// 1. 직접 파싱
	if parsed, ok := tryParse(trimmed); ok {
		return parsed
	}

	// 2. ```json 펜스
	if inner, found := fencedBlock(trimmed, "```json"); found {
		if parsed, ok := tryParse(inner); ok {
			return parsed
		}
	}

	// 3. 일반 ``` 펜스
	if inner, found := fencedBlock(trimmed, "```"); found {
		if parsed, ok := tryParse(inner); ok {
			return parsed
		}
	}

	// 4. sentinel - 다운스트림이 이 형태로 파싱 실패를 감지함
	return map[string]interface{}{
		"error": "Failed to parse JSON",
		"raw":   text,
	}
}

// tryParse - JSON 파싱 시도 (객체/배열만 인정)
func tryParse(text string) (interface{}, bool) {
	var parsed interface{}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, false
	}

	switch parsed.(type) {
	case map[string]interface{}, []interface{}:
		return parsed, true
	default:
		return nil, false
	}
}

// fencedBlock - 첫 번째 펜스 쌍 사이의 내용 추출
func fencedBlock(text, marker string) (string, bool) {
	start := strings.Index(text, marker)
	if start < 0 {
		return "", false
	}

	inner := text[start+len(marker):]
	end := strings.Index(inner, "```")
	if end < 0 {
		return "", false
	}

	return strings.TrimSpace(inner[:end]), true
}

// NormalizePromptItems - 단계 결과를 프롬프트 아이템 리스트로 정규화
// 결과가 리스트면 그대로, 맵이면 listKey 하위 리스트를 사용한다.
// 맵이 아닌 아이템은 에러 없이 건너뛴다.
func NormalizePromptItems(result interface{}, listKey string) []map[string]interface{} {
	var rawItems []interface{}

	switch v := result.(type) {
	case []interface{}:
		rawItems = v
	case map[string]interface{}:
		if list, ok := v[listKey].([]interface{}); ok {
			rawItems = list
		}
	}

	items := make([]map[string]interface{}, 0, len(rawItems))
	for _, raw := range rawItems {
		if item, ok := raw.(map[string]interface{}); ok {
			items = append(items, item)
		}
	}

	return items
}

// stringField - 맵에서 문자열 필드 추출 (없으면 기본값)
func stringField(m map[string]interface{}, key, defaultValue string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return defaultValue
}

// toJSONString - 단계 결과를 프롬프트에 넣을 JSON 문자열로 변환 (없는 결과는 빈 객체)
func toJSONString(v interface{}) string {
	if v == nil {
		return "{}"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
