package detect

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func opts(layout Layout, names ...string) DecodeOptions {
	return DecodeOptions{
		Layout:         layout,
		InputWidth:     640,
		InputHeight:    640,
		ScoreThreshold: 0.5,
		NMSThreshold:   0.45,
		ClassNames:     names,
	}
}

// v8Output builds a [1, 4+nc, n] tensor from per-candidate rows of
// cx, cy, w, h, scores...
func v8Output(rows [][]float32) ([]float32, []int64) {
	channels, n := len(rows[0]), len(rows)
	data := make([]float32, channels*n)
	for i, row := range rows {
		for c, v := range row {
			data[c*n+i] = v
		}
	}
	return data, []int64{1, int64(channels), int64(n)}
}

func TestDecodeV8(t *testing.T) {
	data, shape := v8Output([][]float32{
		{320, 320, 64, 64, 0.9, 0.1},
		{322, 322, 64, 64, 0.8, 0.1}, // overlaps the first, same class
		{100, 100, 40, 40, 0.1, 0.7},
		{500, 500, 20, 20, 0.2, 0.3}, // below threshold
	})

	dets, err := Decode(data, shape, opts(LayoutV8, "apple", "banana"))
	require.NoError(t, err)
	require.Len(t, dets, 2)

	assert.Equal(t, "apple", dets[0].Class)
	assert.InDelta(t, 0.9, dets[0].Confidence, 1e-6)
	assert.InDelta(t, 0.45, dets[0].BBox[0], 1e-6)
	assert.InDelta(t, 0.55, dets[0].BBox[2], 1e-6)
	assert.NotEmpty(t, dets[0].ID)

	assert.Equal(t, "banana", dets[1].Class)
	assert.Equal(t, 1, dets[1].ClassID)
	assert.NotEqual(t, dets[0].ID, dets[1].ID)
}

func TestDecodeV5(t *testing.T) {
	data := []float32{
		320, 320, 64, 64, 0.9, 0.9, 0.1,
		320, 320, 64, 64, 0.6, 0.1, 0.6, // objectness*score 0.36 < 0.5
		10, 10, 40, 40, 0.95, 0.0, 0.8, // clipped at the top-left corner
	}

	dets, err := Decode(data, []int64{1, 3, 7}, opts(LayoutV5, "apple"))
	require.NoError(t, err)
	require.Len(t, dets, 2)

	assert.Equal(t, "apple", dets[0].Class)
	assert.InDelta(t, 0.81, dets[0].Confidence, 1e-6)

	assert.Equal(t, UnknownClass, dets[1].Class)
	assert.InDelta(t, 0.76, dets[1].Confidence, 1e-6)
	assert.Equal(t, float32(0), dets[1].BBox[0])
	assert.Equal(t, float32(0), dets[1].BBox[1])
}

func TestDecode_SortedAndClamped(t *testing.T) {
	data, shape := v8Output([][]float32{
		{600, 600, 200, 200, 0.6},
		{50, 50, 20, 20, 0.99},
	})

	dets, err := Decode(data, shape, opts(LayoutV8))
	require.NoError(t, err)
	require.Len(t, dets, 2)

	assert.Greater(t, dets[0].Confidence, dets[1].Confidence)
	for _, d := range dets {
		for _, v := range d.BBox {
			assert.GreaterOrEqual(t, v, float32(0))
			assert.LessOrEqual(t, v, float32(1))
		}
	}
	assert.Equal(t, float32(1), dets[1].BBox[2])
}

func TestDecode_BadShape(t *testing.T) {
	_, err := Decode(make([]float32, 10), []int64{1, 84}, opts(LayoutV8))
	require.ErrorIs(t, err, ErrOutputShape)

	_, err = Decode(make([]float32, 10), []int64{1, 84, 8400}, opts(LayoutV8))
	require.ErrorIs(t, err, ErrOutputShape)

	_, err = Decode(make([]float32, 8), []int64{1, 4, 2}, opts(LayoutV8))
	require.ErrorIs(t, err, ErrOutputShape)

	_, err = Decode(make([]float32, 8), []int64{1, 2, 4}, opts("yolox"))
	require.ErrorIs(t, err, ErrUnknownLayout)
}

func TestNMS_ClassAware(t *testing.T) {
	box := Box{0.1, 0.1, 0.5, 0.5}
	dets := []Detection{
		{ClassID: 0, Confidence: 0.7, BBox: box},
		{ClassID: 1, Confidence: 0.8, BBox: box},
		{ClassID: 0, Confidence: 0.9, BBox: Box{0.11, 0.11, 0.5, 0.5}},
	}

	kept := NMS(dets, 0.45)
	require.Len(t, kept, 2)
	assert.InDelta(t, 0.9, kept[0].Confidence, 1e-6)
	assert.Equal(t, 1, kept[1].ClassID)

	assert.Empty(t, NMS(nil, 0.45))
}

func TestIoU(t *testing.T) {
	a := Box{0, 0, 0.5, 0.5}
	assert.InDelta(t, 1.0, IoU(a, a), 1e-6)
	assert.Zero(t, IoU(a, Box{0.6, 0.6, 1, 1}))
	assert.InDelta(t, 1.0/7.0, IoU(a, Box{0.25, 0.25, 0.75, 0.75}), 1e-6)
}

func TestLabel(t *testing.T) {
	names := []string{"apple", ""}
	assert.Equal(t, "apple", Label(names, 0))
	assert.Equal(t, UnknownClass, Label(names, 1))
	assert.Equal(t, UnknownClass, Label(names, 5))
	assert.Equal(t, UnknownClass, Label(nil, -1))
}

func TestParseLayout(t *testing.T) {
	l, err := ParseLayout("")
	require.NoError(t, err)
	assert.Equal(t, LayoutV8, l)

	l, err = ParseLayout(" YOLOv5 ")
	require.NoError(t, err)
	assert.Equal(t, LayoutV5, l)

	_, err = ParseLayout("detr")
	require.ErrorIs(t, err, ErrUnknownLayout)
}

func TestPreprocess_PlanarRGB(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 51, A: 255})
		}
	}

	blob := Preprocess(img, 2, 2)
	require.Len(t, blob, 12)

	want := []float32{1, 0, 0.2}
	for c, w := range want {
		for _, v := range blob[c*4 : (c+1)*4] {
			assert.InDelta(t, w, v, 0.01, "channel %d", c)
		}
	}
}

func TestDecodeImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 3, 2))))

	img, err := DecodeImage(&buf)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dx())

	_, err = DecodeImage(bytes.NewReader([]byte("not an image")))
	require.ErrorIs(t, err, ErrDecodeImage)
}
