package detect

import (
	"fmt"
	"strings"
)

// Layout identifies how a YOLO model lays out its output tensor.
type Layout string

const (
	// LayoutV8 is [1, 4+nc, N]: box then per-class scores, no objectness.
	LayoutV8 Layout = "yolov8"
	// LayoutV5 is [1, N, 5+nc]: box, objectness, per-class scores.
	LayoutV5 Layout = "yolov5"
)

// ParseLayout maps a config string to a Layout. Empty means LayoutV8.
func ParseLayout(s string) (Layout, error) {
	switch Layout(strings.ToLower(strings.TrimSpace(s))) {
	case "", LayoutV8:
		return LayoutV8, nil
	case LayoutV5:
		return LayoutV5, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLayout, s)
	}
}

// Box is a bounding box in normalized [x1, y1, x2, y2] coordinates.
type Box [4]float32

func (b Box) Width() float32  { return b[2] - b[0] }
func (b Box) Height() float32 { return b[3] - b[1] }

func (b Box) Area() float32 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Detection is one object found in an image.
type Detection struct {
	ID         string  `json:"id"`
	Class      string  `json:"class"`
	ClassID    int     `json:"class_id"`
	Confidence float32 `json:"confidence"`
	BBox       Box     `json:"bbox"`
}

// UnknownClass labels a class index with no configured name.
const UnknownClass = "unknown"

// Label returns the name for a class index.
func Label(names []string, classID int) string {
	if classID < 0 || classID >= len(names) || names[classID] == "" {
		return UnknownClass
	}
	return names[classID]
}
