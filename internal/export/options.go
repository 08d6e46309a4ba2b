package export

import (
	"github.com/ekisa-team/scanbill/mapsafe"
)

// Options are forwarded to the framework's export routine. Zero values are
// left to the framework's defaults.
type Options struct {
	ImgSize  int    `json:"imgsz,omitempty"`
	Half     bool   `json:"half,omitempty"`
	Int8     bool   `json:"int8,omitempty"`
	Dynamic  bool   `json:"dynamic,omitempty"`
	Simplify bool   `json:"simplify,omitempty"`
	Opset    int    `json:"opset,omitempty"`
	Batch    int    `json:"batch,omitempty"`
	Device   string `json:"device,omitempty"`

	// Force re-runs the export even when the marker says the artifact is current.
	Force bool `json:"-"`
}

// OptionsFromMap reads options from a loosely typed map such as a YAML block.
func OptionsFromMap(m map[string]any) Options {
	return Options{
		ImgSize:  mapsafe.Get(m, "imgsz", 0),
		Half:     mapsafe.Get(m, "half", false),
		Int8:     mapsafe.Get(m, "int8", false),
		Dynamic:  mapsafe.Get(m, "dynamic", false),
		Simplify: mapsafe.Get(m, "simplify", false),
		Opset:    mapsafe.Get(m, "opset", 0),
		Batch:    mapsafe.Get(m, "batch", 0),
		Device:   mapsafe.Get(m, "device", ""),
	}
}

// Parameters returns the non-zero options keyed by the framework's argument names.
func (o Options) Parameters() map[string]any {
	p := map[string]any{}
	if o.ImgSize > 0 {
		p["imgsz"] = o.ImgSize
	}
	if o.Half {
		p["half"] = true
	}
	if o.Int8 {
		p["int8"] = true
	}
	if o.Dynamic {
		p["dynamic"] = true
	}
	if o.Simplify {
		p["simplify"] = true
	}
	if o.Opset > 0 {
		p["opset"] = o.Opset
	}
	if o.Batch > 0 {
		p["batch"] = o.Batch
	}
	if o.Device != "" {
		p["device"] = o.Device
	}

	return p
}
