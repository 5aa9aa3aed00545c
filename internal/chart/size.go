package chart

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrImageSizeRequired means the phone sent no image size.
	ErrImageSizeRequired = errors.New("phone image size required")
	// ErrImageSizeInvalid means the size is not WIDTHxHEIGHTxDENSITY.
	ErrImageSizeInvalid = errors.New("phone image size invalid")
)

// Upper bounds of a phone image size header.
const (
	MaxImageSide    = 4096
	MaxImageDensity = 8.0
)

// PhoneImageSize is the drawable area reported by a phone client.
type PhoneImageSize struct {
	Width   int
	Height  int
	Density float64
}

func (s PhoneImageSize) String() string {
	return fmt.Sprintf("%dx%dx%s", s.Width, s.Height, strconv.FormatFloat(s.Density, 'f', -1, 64))
}

// ParsePhoneImageSize parses "WIDTHxHEIGHTxDENSITY", e.g. "1080x1920x2.625".
func ParsePhoneImageSize(s string) (PhoneImageSize, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PhoneImageSize{}, ErrImageSizeRequired
	}

	parts := strings.Split(s, "x")
	if len(parts) != 3 {
		return PhoneImageSize{}, fmt.Errorf("%w: %q", ErrImageSizeInvalid, s)
	}
	width, err := strconv.Atoi(parts[0])
	if err != nil || width <= 0 || width > MaxImageSide {
		return PhoneImageSize{}, fmt.Errorf("%w: width %q", ErrImageSizeInvalid, parts[0])
	}
	height, err := strconv.Atoi(parts[1])
	if err != nil || height <= 0 || height > MaxImageSide {
		return PhoneImageSize{}, fmt.Errorf("%w: height %q", ErrImageSizeInvalid, parts[1])
	}
	density, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || density <= 0 || density > MaxImageDensity || math.IsNaN(density) {
		return PhoneImageSize{}, fmt.Errorf("%w: density %q", ErrImageSizeInvalid, parts[2])
	}
	return PhoneImageSize{Width: width, Height: height, Density: density}, nil
}
