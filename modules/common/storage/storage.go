package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // JPEG 디코더 등록
	"image/png"
	"io"
	"log"
	"net/http"
	"strings"

	_ "github.com/kolesa-team/go-webp/decoder" // WebP 디코더 등록
	storage_go "github.com/supabase-community/storage-go"

	"brandlift-pipeline-server/modules/common/config"
)

type Client struct {
	storage *storage_go.Client
}

// NewClient - Storage 클라이언트 생성
func NewClient() *Client {
	cfg := config.GetConfig()

	storageClient := storage_go.NewClient(
		cfg.SupabaseURL+"/storage/v1",
		cfg.SupabaseServiceKey,
		nil,
	)

	return &Client{
		storage: storageClient,
	}
}

// List - 버킷의 prefix 하위 파일 경로 목록 조회
func (c *Client) List(bucket, prefix string) ([]string, error) {
	files, err := c.storage.ListFiles(bucket, prefix, storage_go.FileSearchOptions{
		Limit: 100,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s/%s: %w", bucket, prefix, err)
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		// Supabase가 빈 폴더 유지용으로 만드는 placeholder는 제외
		if f.Name == ".emptyFolderPlaceholder" {
			continue
		}
		paths = append(paths, prefix+"/"+f.Name)
	}

	return paths, nil
}

// Remove - 버킷에서 파일 삭제
func (c *Client) Remove(bucket string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	_, err := c.storage.RemoveFile(bucket, paths)
	if err != nil {
		return fmt.Errorf("failed to remove %d files from %s: %w", len(paths), bucket, err)
	}

	log.Printf("🗑️  Removed %d files from %s", len(paths), bucket)
	return nil
}

// Upload - 버킷에 파일 업로드 (동일 경로 덮어쓰기)
func (c *Client) Upload(bucket, path string, data []byte, contentType string) error {
	upsert := true

	_, err := c.storage.UploadFile(bucket, path, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s/%s: %w", bucket, path, err)
	}

	log.Printf("📤 Uploaded to %s/%s (%d bytes)", bucket, path, len(data))
	return nil
}

// PublicURL - 버킷 파일의 공개 URL 생성
func (c *Client) PublicURL(bucket, path string) string {
	return c.storage.GetPublicUrl(bucket, path).SignedURL
}

// DownloadImage - URL에서 이미지 다운로드 후 PNG로 정규화
func (c *Client) DownloadImage(ctx context.Context, url string) ([]byte, error) {
	cfg := config.GetConfig()

	ctx, cancel := context.WithTimeout(ctx, cfg.DownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	httpResp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		log.Printf("❌ Download failed - Status: %d, URL: %s", httpResp.StatusCode, url)
		return nil, fmt.Errorf("failed to download image: status %d, body: %s", httpResp.StatusCode, string(body))
	}

	imageData, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return NormalizePNG(imageData)
}

// NormalizePNG - JPEG/WebP 이미지를 PNG 바이너리로 변환 (PNG는 그대로)
func NormalizePNG(imageData []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if strings.EqualFold(format, "png") {
		return imageData, nil
	}

	var pngBuffer bytes.Buffer
	if err := png.Encode(&pngBuffer, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}

	log.Printf("🔄 Image normalized: %s → PNG (%d bytes → %d bytes)",
		format, len(imageData), pngBuffer.Len())

	return pngBuffer.Bytes(), nil
}
