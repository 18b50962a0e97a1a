package main

import (
	"fmt"
	"image"
	"strings"
)

// EngineKind names one of the interchangeable blur algorithms.
type EngineKind int

const (
	EngineAccelerated EngineKind = iota
	EngineStack
	EngineFast
)

var engineNames = map[EngineKind]string{
	EngineAccelerated: "accelerated",
	EngineStack:       "stack",
	EngineFast:        "fast",
}

func (k EngineKind) String() string {
	if s, ok := engineNames[k]; ok {
		return s
	}
	return fmt.Sprintf("EngineKind(%d)", int(k))
}

// Next cycles through the engine kinds in declaration order.
func (k EngineKind) Next() EngineKind {
	return (k + 1) % EngineKind(len(engineNames))
}

// ParseEngineKind parses an engine name as written in the config file.
func ParseEngineKind(s string) (EngineKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return EngineAccelerated, nil
	}
	for k, name := range engineNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown blur engine %q", s)
}

func (k EngineKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *EngineKind) UnmarshalText(b []byte) error {
	v, err := ParseEngineKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// BlurEngine blurs an image by an integer radius.
//
// A radius <= 0 or a zero-area image returns img unchanged. Engines may
// either allocate a new image or blur img in place and return it; callers
// must not rely on img being preserved.
type BlurEngine interface {
	Blur(img *image.RGBA, radius int) (*image.RGBA, error)
	Kind() EngineKind
}

// NewBlurEngine returns the engine for kind.
func NewBlurEngine(kind EngineKind) (BlurEngine, error) {
	switch kind {
	case EngineAccelerated:
		return acceleratedBlur{}, nil
	case EngineStack:
		return stackBlur{}, nil
	case EngineFast:
		return fastBlur{}, nil
	}
	return nil, fmt.Errorf("unknown blur engine %v", kind)
}

// skipBlur reports whether the blur is an identity for these inputs.
func skipBlur(img *image.RGBA, radius int) bool {
	return radius <= 0 || img == nil || img.Rect.Empty()
}
