package main

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ekisa-team/scanbill/internal/onnxmeta"
)

var inspectJSON bool

var inspectCommand = &cli.Command{
	Name:      "inspect",
	Usage:     "Show the inputs, outputs and metadata of an exported ONNX model",
	ArgsUsage: "<model.onnx>",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "json", Usage: "Print the result as JSON", Destination: &inspectJSON},
	},
	Action: func(cCtx *cli.Context) error {
		if cCtx.NArg() != 1 {
			return errors.New("inspect expects exactly one model path")
		}

		info, err := onnxmeta.Inspect(cCtx.Args().First())
		if err != nil {
			return err
		}

		if inspectJSON {
			return writeJSON(cCtx.App.Writer, struct {
				*onnxmeta.Info
				ClassNames []string `json:"class_names,omitempty"`
			}{info, info.ClassNames()})
		}

		w := cCtx.App.Writer
		fmt.Fprintf(w, "producer:  %s %s\n", info.ProducerName, info.ProducerVersion)
		fmt.Fprintf(w, "ir:        %d\n", info.IRVersion)
		for _, domain := range slices.Sorted(maps.Keys(info.Opsets)) {
			fmt.Fprintf(w, "opset:     %s %d\n", domain, info.Opsets[domain])
		}
		fmt.Fprintf(w, "nodes:     %d\n", info.Nodes)
		for _, t := range info.Inputs {
			fmt.Fprintf(w, "input:     %s %s %s\n", t.Name, t.ElemType, formatShape(t))
		}
		for _, t := range info.Outputs {
			fmt.Fprintf(w, "output:    %s %s %s\n", t.Name, t.ElemType, formatShape(t))
		}
		if names := info.ClassNames(); len(names) > 0 {
			fmt.Fprintf(w, "classes:   %d (%s)\n", len(names), strings.Join(names[:min(5, len(names))], ", "))
		}
		fmt.Fprintf(w, "go runtime: %t\n", info.GoRuntime)
		return nil
	},
}

func formatShape(t onnxmeta.Tensor) string {
	dims := make([]string, len(t.Shape))
	for i, d := range t.Shape {
		switch {
		case d >= 0:
			dims[i] = fmt.Sprint(d)
		case i < len(t.DimNames) && t.DimNames[i] != "":
			dims[i] = t.DimNames[i]
		default:
			dims[i] = "?"
		}
	}
	return "[" + strings.Join(dims, ", ") + "]"
}
