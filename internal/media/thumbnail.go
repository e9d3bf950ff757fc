package media

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"
)

// thumbnailMaxEdge はサムネイルの最長辺のピクセル数。
const thumbnailMaxEdge = 320

// makeThumbnail は画像データから最長辺320pxのJPEGサムネイルを生成する。
// 元画像が既に320px以下の場合も再エンコードして返す。
func makeThumbnail(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid image dimensions: %dx%d", w, h)
	}

	tw, th := w, h
	if w > thumbnailMaxEdge || h > thumbnailMaxEdge {
		if w >= h {
			tw = thumbnailMaxEdge
			th = h * thumbnailMaxEdge / w
		} else {
			th = thumbnailMaxEdge
			tw = w * thumbnailMaxEdge / h
		}
		if tw < 1 {
			tw = 1
		}
		if th < 1 {
			th = 1
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	for y := 0; y < th; y++ {
		sy := bounds.Min.Y + y*h/th
		for x := 0; x < tw; x++ {
			sx := bounds.Min.X + x*w/tw
			dst.Set(x, y, color.RGBAModel.Convert(src.At(sx, sy)))
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
