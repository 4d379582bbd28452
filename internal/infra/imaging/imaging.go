package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
	"golang.org/x/image/webp"

	"bidforge/internal/domain"
	"bidforge/internal/domain/model"
)

// MaxDimension is the longest edge we hand to vision providers. Larger
// uploads are downscaled before encoding.
const MaxDimension = 2048

const jpegQuality = 85

var visualExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".pdf":  true,
}

// IsVisualFile reports whether a filename looks like a sketch upload we
// can turn into provider-ready images.
func IsVisualFile(filename string) bool {
	return visualExtensions[strings.ToLower(filepath.Ext(filename))]
}

// DetectContentType prefers the declared header but falls back to
// content sniffing when the client sent nothing useful.
func DetectContentType(header string, data []byte) string {
	header = strings.TrimSpace(header)
	if header != "" && header != "application/octet-stream" {
		return header
	}
	return http.DetectContentType(data)
}

// Decode parses PNG, JPEG, GIF and WebP payloads.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", domain.ErrEmptyImage
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, "webp", nil
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// Optimize normalizes an upload into a provider-ready JPEG: downscaled
// to MaxDimension on the longest edge and flattened to RGB.
func Optimize(data []byte) (model.SketchImage, error) {
	img, _, err := Decode(data)
	if err != nil {
		return model.SketchImage{}, err
	}

	img = resize(img, MaxDimension)
	bounds := img.Bounds()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return model.SketchImage{}, fmt.Errorf("encode image: %w", err)
	}

	return model.SketchImage{
		Data:     buf.Bytes(),
		MIMEType: "image/jpeg",
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
	}, nil
}

func resize(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		// Still flatten to RGBA so alpha channels do not leak into the JPEG.
		if _, ok := img.(*image.RGBA); ok {
			return img
		}
		dst := image.NewRGBA(bounds)
		draw.Copy(dst, image.Point{}, img, bounds, draw.Src, nil)
		return dst
	}

	scale := float64(maxDim) / float64(w)
	if h > w {
		scale = float64(maxDim) / float64(h)
	}
	nw := int(float64(w) * scale)
	nh := int(float64(h) * scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}

// FromPDF extracts the embedded raster images from the first page of a
// PDF and optimizes each for vision analysis. Pages without embedded
// images yield an empty slice rather than an error.
func FromPDF(data []byte, log *zerolog.Logger) ([]model.SketchImage, int, error) {
	rs := bytes.NewReader(data)

	pages, err := api.PageCount(rs, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("read pdf: %w", err)
	}

	var out []model.SketchImage
	digest := func(img pdfmodel.Image, singleImgPerPage bool, maxPageDigits int) error {
		raw, err := io.ReadAll(img)
		if err != nil {
			return err
		}
		opt, err := Optimize(raw)
		if err != nil {
			log.Warn().Int("page", img.PageNr).Err(err).Msg("skip undecodable pdf image")
			return nil
		}
		out = append(out, opt)
		return nil
	}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, pages, err
	}
	if err := api.ExtractImages(rs, []string{"1"}, digest, nil); err != nil {
		return nil, pages, fmt.Errorf("extract pdf images: %w", err)
	}
	return out, pages, nil
}
