package completion

import (
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Params is the per-call configuration for chat and text completions
type Params struct {
	Model       string
	MaxTokens   int // 0 leaves the limit to the service
	Temperature float32
	Stream      bool
}

// ImageSize is one of the sizes accepted by the image endpoint
type ImageSize string

const (
	ImageSize256x256   ImageSize = openai.CreateImageSize256x256
	ImageSize512x512   ImageSize = openai.CreateImageSize512x512
	ImageSize1024x1024 ImageSize = openai.CreateImageSize1024x1024
	ImageSize1792x1024 ImageSize = openai.CreateImageSize1792x1024
	ImageSize1024x1792 ImageSize = openai.CreateImageSize1024x1792
)

// ImageQuality selects the rendering quality of generated images
type ImageQuality string

const (
	ImageQualityStandard ImageQuality = openai.CreateImageQualityStandard
	ImageQualityHD       ImageQuality = openai.CreateImageQualityHD
)

// ImageFormat selects whether images come back as URLs or inline base64
type ImageFormat string

const (
	ImageFormatURL    ImageFormat = openai.CreateImageResponseFormatURL
	ImageFormatBase64 ImageFormat = openai.CreateImageResponseFormatB64JSON
)

// ImageOptions configures GenerateImage
type ImageOptions struct {
	Model   string
	N       int
	Size    ImageSize
	Quality ImageQuality
	Format  ImageFormat // defaults to URL
}

// ImageRef points at one generated image. Exactly one of URL or B64JSON is set.
type ImageRef struct {
	URL           string
	B64JSON       string
	RevisedPrompt string
}

// Usage is the token accounting the service reports for one call
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CallRecord describes a finished remote call. Input holds the text that was
// sent so recorders can fingerprint it; it is never meant to be stored verbatim.
type CallRecord struct {
	Op       string
	Model    string
	Input    []string
	Usage    Usage
	Duration time.Duration
	Err      error
}

// wireTemperature keeps an explicit 0 in the request body. go-openai drops a
// zero temperature, which would leave the service default in place.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

func usageFrom(u openai.Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

func validSize(s ImageSize) bool {
	switch s {
	case ImageSize256x256, ImageSize512x512, ImageSize1024x1024, ImageSize1792x1024, ImageSize1024x1792:
		return true
	}
	return false
}

func validQuality(q ImageQuality) bool {
	return q == ImageQualityStandard || q == ImageQualityHD
}
