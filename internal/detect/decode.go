package detect

import (
	"fmt"

	"github.com/google/uuid"
)

// DecodeOptions control how a raw output tensor is turned into detections.
type DecodeOptions struct {
	Layout         Layout
	InputWidth     int
	InputHeight    int
	ScoreThreshold float32
	NMSThreshold   float32
	ClassNames     []string
}

// Decode converts a model output tensor into labelled detections with
// normalized boxes, applies class-aware NMS and returns them sorted by
// confidence.
func Decode(data []float32, shape []int64, opts DecodeOptions) ([]Detection, error) {
	if len(shape) != 3 || shape[0] != 1 {
		return nil, fmt.Errorf("%w: %v", ErrOutputShape, shape)
	}
	if int64(len(data)) != shape[0]*shape[1]*shape[2] {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrOutputShape, len(data), shape)
	}

	var (
		cands []Detection
		err   error
	)
	switch opts.Layout {
	case LayoutV8, "":
		cands, err = decodeV8(data, int(shape[1]), int(shape[2]), opts)
	case LayoutV5:
		cands, err = decodeV5(data, int(shape[1]), int(shape[2]), opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownLayout, opts.Layout)
	}
	if err != nil {
		return nil, err
	}

	dets := NMS(cands, opts.NMSThreshold)
	for i := range dets {
		dets[i].ID = uuid.NewString()
		dets[i].Class = Label(opts.ClassNames, dets[i].ClassID)
	}

	return dets, nil
}

// decodeV8 reads a channel-major [4+nc, n] block: row c holds attribute c
// for every candidate.
func decodeV8(data []float32, channels, n int, opts DecodeOptions) ([]Detection, error) {
	nc := channels - 4
	if nc < 1 {
		return nil, fmt.Errorf("%w: %d channels leaves no class scores", ErrOutputShape, channels)
	}

	at := func(c, i int) float32 { return data[c*n+i] }

	var cands []Detection
	for i := 0; i < n; i++ {
		best, bestScore := -1, float32(0)
		for c := 0; c < nc; c++ {
			if s := at(4+c, i); s > bestScore {
				best, bestScore = c, s
			}
		}
		if best < 0 || bestScore < opts.ScoreThreshold {
			continue
		}

		cands = append(cands, Detection{
			ClassID:    best,
			Confidence: bestScore,
			BBox:       centerBox(at(0, i), at(1, i), at(2, i), at(3, i), opts),
		})
	}

	return cands, nil
}

// decodeV5 reads a row-major [n, 5+nc] block: each row is one candidate.
func decodeV5(data []float32, n, stride int, opts DecodeOptions) ([]Detection, error) {
	nc := stride - 5
	if nc < 1 {
		return nil, fmt.Errorf("%w: row of %d leaves no class scores", ErrOutputShape, stride)
	}

	var cands []Detection
	for i := 0; i < n; i++ {
		row := data[i*stride : (i+1)*stride]

		objectness := row[4]
		if objectness < opts.ScoreThreshold {
			continue
		}

		best, bestScore := -1, float32(0)
		for c := 0; c < nc; c++ {
			if s := row[5+c]; s > bestScore {
				best, bestScore = c, s
			}
		}
		if best < 0 {
			continue
		}

		score := objectness * bestScore
		if score < opts.ScoreThreshold {
			continue
		}

		cands = append(cands, Detection{
			ClassID:    best,
			Confidence: score,
			BBox:       centerBox(row[0], row[1], row[2], row[3], opts),
		})
	}

	return cands, nil
}

// centerBox converts a pixel-space center box to normalized corners.
func centerBox(cx, cy, w, h float32, opts DecodeOptions) Box {
	iw, ih := float32(opts.InputWidth), float32(opts.InputHeight)
	cx, w = cx/iw, w/iw
	cy, h = cy/ih, h/ih

	return Box{
		clamp01(cx - w/2),
		clamp01(cy - h/2),
		clamp01(cx + w/2),
		clamp01(cy + h/2),
	}
}

func clamp01(v float32) float32 {
	return max(0, min(1, v))
}
