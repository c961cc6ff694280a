// Package ocr reads coordinate readouts from screenshots with Tesseract.
package ocr

import (
	"fmt"
	"image"
	"strings"

	"blue-scan/pkg/geometry"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

// ReadoutChars restricts recognition to what coordinate readouts contain.
const ReadoutChars = "0123456789-:=()TLXYPtlxyp "

// Engine provides OCR functionality using Tesseract.
type Engine struct {
	client *gosseract.Client
}

// NewEngine creates a new OCR engine.
func NewEngine() (*Engine, error) {
	client := gosseract.NewClient()

	if err := client.SetLanguage("eng"); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}

	// Readout labels aren't dictionary words.
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")
	_ = client.SetVariable("language_model_penalty_non_dict_word", "0")

	return &Engine{client: client}, nil
}

// Close releases OCR resources.
func (e *Engine) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// Fragments recognizes each text line of a readout screenshot. The result
// feeds anchor.ParseReadout in place of page text.
func (e *Engine) Fragments(img image.Image) ([]string, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()
	return e.FragmentsMat(mat)
}

// FragmentsMat is Fragments for an already loaded BGR matrix.
func (e *Engine) FragmentsMat(img gocv.Mat) ([]string, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	processed := preprocessForOCR(img)
	defer processed.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, processed)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	if err := e.client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return nil, fmt.Errorf("failed to set PSM: %w", err)
	}
	if err := e.client.SetWhitelist(ReadoutChars); err != nil {
		return nil, fmt.Errorf("failed to set whitelist: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("failed to get boxes: %w", err)
	}
	lines := make([]string, 0, len(boxes)+1)
	for _, box := range boxes {
		lines = append(lines, box.Word)
	}
	// Readouts are often split over several lines, so the whole block is
	// offered as a last fragment.
	lines = append(lines, strings.Join(lines, " "))
	return CleanFragments(lines), nil
}

// RegionFragments is Fragments restricted to bounds, clipped to the image.
func (e *Engine) RegionFragments(img image.Image, bounds geometry.RectInt) ([]string, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()
	return e.RecognizeRegion(mat, bounds)
}

// RecognizeRegion performs OCR on a region of a loaded matrix.
func (e *Engine) RecognizeRegion(img gocv.Mat, bounds geometry.RectInt) ([]string, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	x, y, w, h := bounds.X, bounds.Y, bounds.Width, bounds.Height
	imgH, imgW := img.Rows(), img.Cols()

	x = max(0, x)
	y = max(0, y)
	w = min(w, imgW-x)
	h = min(h, imgH-y)

	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid region bounds")
	}

	region := img.Region(image.Rect(x, y, x+w, y+h))
	defer region.Close()
	return e.FragmentsMat(region)
}

// preprocessForOCR upscales, binarizes and, for light-on-dark readouts,
// inverts the image so Tesseract sees dark text on a light background.
func preprocessForOCR(region gocv.Mat) gocv.Mat {
	h, w := region.Rows(), region.Cols()

	// Readout text is small; aim for ~100px line height.
	var scaled gocv.Mat
	minDim := min(h, w)
	if minDim > 0 && minDim < 100 {
		scale := 100.0 / float64(minDim)
		scaled = gocv.NewMat()
		gocv.Resize(region, &scaled, image.Point{}, scale, scale, gocv.InterpolationCubic)
	} else {
		scaled = region.Clone()
	}

	gray := gocv.NewMat()
	gocv.CvtColor(scaled, &gray, gocv.ColorBGRToGray)
	scaled.Close()

	binary := gocv.NewMat()
	gocv.Threshold(gray, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	gray.Close()

	whiteCount := gocv.CountNonZero(binary)
	totalPixels := binary.Rows() * binary.Cols()
	if totalPixels > 0 && float64(whiteCount)/float64(totalPixels) < 0.5 {
		gocv.BitwiseNot(binary, &binary)
	}

	result := gocv.NewMat()
	gocv.CvtColor(binary, &result, gocv.ColorGrayToBGR)
	binary.Close()

	return result
}
