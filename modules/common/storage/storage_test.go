package storage

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"testing"
)

func testImageBytes(t *testing.T, encode func(*bytes.Buffer, image.Image) error) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	if err := encode(&buf, img); err != nil {
		t.Fatalf("테스트 이미지 인코딩 실패: %v", err)
	}
	return buf.Bytes()
}

func TestNormalizePNG(t *testing.T) {
	t.Run("PNG는 원본 그대로", func(t *testing.T) {
		original := testImageBytes(t, func(buf *bytes.Buffer, img image.Image) error {
			return png.Encode(buf, img)
		})

		normalized, err := NormalizePNG(original)
		if err != nil {
			t.Fatalf("정규화 실패: %v", err)
		}
		if !bytes.Equal(normalized, original) {
			t.Error("PNG 입력이 변형되었습니다")
		}
	})

	t.Run("JPEG는 PNG로 변환", func(t *testing.T) {
		jpegData := testImageBytes(t, func(buf *bytes.Buffer, img image.Image) error {
			return jpeg.Encode(buf, img, nil)
		})

		normalized, err := NormalizePNG(jpegData)
		if err != nil {
			t.Fatalf("정규화 실패: %v", err)
		}

		if _, err := png.Decode(bytes.NewReader(normalized)); err != nil {
			t.Errorf("변환 결과가 PNG가 아닙니다: %v", err)
		}
	})

	t.Run("이미지가 아닌 데이터는 에러", func(t *testing.T) {
		if _, err := NormalizePNG([]byte("not an image")); err == nil {
			t.Error("디코딩 불가 데이터에 에러가 없습니다")
		}
	})
}
