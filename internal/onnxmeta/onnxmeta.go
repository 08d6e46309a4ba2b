// Package onnxmeta reads the header of an exported ONNX model: producer,
// opsets, graph inputs and outputs, and the metadata properties written by
// the exporter. It never executes the graph.
package onnxmeta

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/advancedclimatesystems/gonnx"
	"github.com/advancedclimatesystems/gonnx/onnx"
	"google.golang.org/protobuf/proto"
)

// ErrNoGraph is returned for a protobuf that decodes but carries no graph.
var ErrNoGraph = errors.New("onnx model has no graph")

// Tensor describes a graph input or output.
type Tensor struct {
	Name     string   `json:"name"`
	ElemType string   `json:"elem_type"`
	Shape    []int64  `json:"shape"`
	DimNames []string `json:"dim_names,omitempty"`
}

// Dynamic reports whether any dimension is symbolic.
func (t Tensor) Dynamic() bool {
	for _, d := range t.Shape {
		if d < 0 {
			return true
		}
	}
	return false
}

// Info summarizes an ONNX model.
type Info struct {
	IRVersion       int64             `json:"ir_version"`
	ProducerName    string            `json:"producer_name"`
	ProducerVersion string            `json:"producer_version"`
	Opsets          map[string]int64  `json:"opsets"`
	Inputs          []Tensor          `json:"inputs"`
	Outputs         []Tensor          `json:"outputs"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	Nodes           int               `json:"nodes"`

	// GoRuntime reports whether the pure Go runtime can build this graph;
	// GoRuntimeError holds the reason when it cannot.
	GoRuntime      bool   `json:"go_runtime"`
	GoRuntimeError string `json:"go_runtime_error,omitempty"`
}

// Inspect reads and summarizes the model at path.
func Inspect(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read onnx model: %w", err)
	}

	return InspectBytes(data)
}

// InspectBytes summarizes a serialized model.
func InspectBytes(data []byte) (*Info, error) {
	mp := &onnx.ModelProto{}
	if err := proto.Unmarshal(data, mp); err != nil {
		return nil, fmt.Errorf("decode onnx model: %w", err)
	}

	graph := mp.GetGraph()
	if graph == nil {
		return nil, ErrNoGraph
	}

	info := &Info{
		IRVersion:       mp.GetIrVersion(),
		ProducerName:    mp.GetProducerName(),
		ProducerVersion: mp.GetProducerVersion(),
		Opsets:          map[string]int64{},
		Nodes:           len(graph.GetNode()),
	}

	for _, op := range mp.GetOpsetImport() {
		domain := op.GetDomain()
		if domain == "" {
			domain = "ai.onnx"
		}
		info.Opsets[domain] = op.GetVersion()
	}

	initializers := map[string]bool{}
	for _, init := range graph.GetInitializer() {
		initializers[init.GetName()] = true
	}
	for _, vi := range graph.GetInput() {
		// Older exporters list weights as inputs too.
		if initializers[vi.GetName()] {
			continue
		}
		info.Inputs = append(info.Inputs, tensorFromValueInfo(vi))
	}
	for _, vi := range graph.GetOutput() {
		info.Outputs = append(info.Outputs, tensorFromValueInfo(vi))
	}

	if props := mp.GetMetadataProps(); len(props) > 0 {
		info.Metadata = make(map[string]string, len(props))
		for _, p := range props {
			info.Metadata[p.GetKey()] = p.GetValue()
		}
	}

	if _, err := gonnx.NewModelFromBytes(data); err != nil {
		info.GoRuntimeError = err.Error()
	} else {
		info.GoRuntime = true
	}

	return info, nil
}

// Validate checks that the file at path is a decodable ONNX model with at
// least one input and one output.
func Validate(path string) error {
	info, err := Inspect(path)
	if err != nil {
		return err
	}
	if len(info.Inputs) == 0 || len(info.Outputs) == 0 {
		return fmt.Errorf("onnx model declares %d inputs and %d outputs", len(info.Inputs), len(info.Outputs))
	}

	return nil
}

func tensorFromValueInfo(vi *onnx.ValueInfoProto) Tensor {
	t := Tensor{Name: vi.GetName()}

	tt := vi.GetType().GetTensorType()
	if tt == nil {
		return t
	}
	t.ElemType = onnx.TensorProto_DataType(tt.GetElemType()).String()

	dims := tt.GetShape().GetDim()
	t.Shape = make([]int64, len(dims))
	hasNames := false
	names := make([]string, len(dims))
	for i, d := range dims {
		if param := d.GetDimParam(); param != "" {
			t.Shape[i] = -1
			names[i] = param
			hasNames = true
			continue
		}
		if v := d.GetDimValue(); v > 0 {
			t.Shape[i] = v
		} else {
			t.Shape[i] = -1
		}
	}
	if hasNames {
		t.DimNames = names
	}

	return t
}

// MaxClasses bounds the class indices read from model metadata. Larger
// indices are ignored.
const MaxClasses = 4096

var classEntry = regexp.MustCompile(`(\d+)\s*:\s*(?:'((?:[^'\\]|\\.)*)'|"((?:[^"\\]|\\.)*)")`)

// ClassNames decodes the "names" metadata written by the exporter, a Python
// dict literal such as {0: 'person', 1: 'bicycle'}, into an index-ordered
// slice. Missing indices are left empty. It returns nil when absent.
func (i *Info) ClassNames() []string {
	raw, ok := i.Metadata["names"]
	if !ok {
		return nil
	}

	byIndex := map[int]string{}
	size := 0
	for _, m := range classEntry.FindAllStringSubmatch(raw, -1) {
		idx, err := strconv.Atoi(m[1])
		if err != nil || idx >= MaxClasses {
			continue
		}
		name := m[2]
		if name == "" {
			name = m[3]
		}
		byIndex[idx] = name
		size = max(size, idx+1)
	}
	if size == 0 {
		return nil
	}

	names := make([]string, size)
	for idx, name := range byIndex {
		names[idx] = name
	}

	return names
}
