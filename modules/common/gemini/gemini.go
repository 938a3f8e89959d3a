package gemini

import (
	"context"
	"fmt"
	"log"
	"time"

	"google.golang.org/genai"

	"brandlift-pipeline-server/modules/common/config"
)

// Part - 생성 요청에 넣을 입력 조각 (텍스트 또는 이미지 바이너리)
type Part struct {
	Text      string
	ImageData []byte
}

type Client struct {
	genaiClient *genai.Client
	textModel   string
	imageModel  string
	timeout     time.Duration
}

// NewClient - Gemini 클라이언트 생성
func NewClient(ctx context.Context) (*Client, error) {
	cfg := config.GetConfig()

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	log.Printf("✅ Gemini client ready (text: %s, image: %s)", cfg.GeminiTextModel, cfg.GeminiImageModel)

	return &Client{
		genaiClient: genaiClient,
		textModel:   cfg.GeminiTextModel,
		imageModel:  cfg.GeminiImageModel,
		timeout:     cfg.GenerateTimeout,
	}, nil
}

// ImageModel - 이미지 생성에 쓰는 모델명
func (c *Client) ImageModel() string {
	return c.imageModel
}

// GenerateText - 텍스트 생성 (최대 3회 재시도, 전부 실패 시 빈 문자열)
// 파이프라인이 단계 실패로 멈추지 않도록 에러 대신 빈 문자열을 반환한다.
func (c *Client) GenerateText(ctx context.Context, parts []Part, strictJSON bool) string {
	const maxRetries = 3

	contents := toContents(parts)

	genConfig := &genai.GenerateContentConfig{}
	if strictJSON {
		genConfig.ResponseMIMEType = "application/json"
	}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		result, err := c.genaiClient.Models.GenerateContent(callCtx, c.textModel, contents, genConfig)
		cancel()

		if err == nil {
			text := firstText(result)
			if text != "" {
				return text
			}
			err = fmt.Errorf("no text in response")
		}

		log.Printf("⚠️  Gemini text call failed (attempt %d/%d): %v", attempt, maxRetries, err)

		// 마지막 시도가 아니면 시도 횟수에 비례해 대기
		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * 2 * time.Second)
		}
	}

	log.Printf("❌ Gemini text call exhausted all %d attempts", maxRetries)
	return ""
}

// GenerateImage - 이미지 1장 생성 (재시도 없음, 실패 격리는 호출자 몫)
func (c *Client) GenerateImage(ctx context.Context, parts []Part) ([]byte, error) {
	contents := toContents(parts)

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.genaiClient.Models.GenerateContent(callCtx, c.imageModel, contents, &genai.GenerateContentConfig{})
	if err != nil {
		return nil, fmt.Errorf("Gemini API call failed: %w", err)
	}

	if len(result.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}

		for _, part := range candidate.Content.Parts {
			// 이미지는 InlineData로 반환됨
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				log.Printf("✅ Received image from Gemini: %d bytes", len(part.InlineData.Data))
				return part.InlineData.Data, nil
			}
		}
	}

	return nil, fmt.Errorf("no image data in response")
}

// toContents - Part 리스트를 genai 요청 형식으로 변환
func toContents(parts []Part) []*genai.Content {
	genaiParts := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if len(p.ImageData) > 0 {
			genaiParts = append(genaiParts, genai.NewPartFromBytes(p.ImageData, "image/png"))
			continue
		}
		genaiParts = append(genaiParts, genai.NewPartFromText(p.Text))
	}

	return []*genai.Content{{Parts: genaiParts}}
}

// firstText - 응답에서 첫 번째 텍스트 part 추출
func firstText(result *genai.GenerateContentResponse) string {
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				return part.Text
			}
		}
	}
	return ""
}
