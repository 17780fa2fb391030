package main

import (
	"errors"
	"fmt"

	"github.com/esimov/facemesh"
	"github.com/spf13/cobra"
)

// meshFlags holds the options shared by the image and webcam commands.
type meshFlags struct {
	faces     int
	attention bool
	render    bool
	backend   string
	cascade   string
	angle     float64
	minSize   int
	shape     string
	size      float32
	color     string
	boxes     bool
	boxColor  string
}

func (f *meshFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.IntVar(&f.faces, "faces", 1, "Maximum number of faces to detect")
	fl.BoolVar(&f.attention, "attention", true, "Refine the landmarks around the eyes and lips, adding the irises")
	fl.BoolVar(&f.render, "render", true, "Use the image rendered by the graph as background")
	fl.StringVar(&f.backend, "backend", string(facemesh.BackendLibMP), "Detection backend: libmp or pigo")
	fl.StringVar(&f.cascade, "cc", "", "Cascade classifier, used by the pigo backend")
	fl.Float64Var(&f.angle, "angle", 0.0, "Plane rotated faces angle, used by the pigo backend")
	fl.IntVar(&f.minSize, "min-size", 20, "Minimum face size in pixels, used by the pigo backend")
	fl.StringVar(&f.shape, "shape", string(facemesh.Square), "Landmark marker shape: square or circle")
	fl.Float32Var(&f.size, "size", 2, "Landmark marker size")
	fl.StringVar(&f.color, "color", "#00ff00", "Landmark marker color")
	fl.BoolVar(&f.boxes, "boxes", false, "Draw the face boxes")
	fl.StringVar(&f.boxColor, "box-color", "#ff0000", "Face box color")
}

// processor builds the face mesh processor out of the parsed flags.
func (f *meshFlags) processor() (*facemesh.Processor, error) {
	p := facemesh.NewProcessor()

	p.Graph.NumFaces = f.faces
	p.Graph.WithAttention = f.attention
	p.Graph.Render = f.render
	if err := p.Graph.Validate(); err != nil {
		return nil, err
	}

	switch backend := facemesh.Backend(f.backend); backend {
	case facemesh.BackendLibMP, facemesh.BackendPigo:
		p.Backend = backend
	default:
		return nil, fmt.Errorf("unknown backend %q", f.backend)
	}
	if p.Backend == facemesh.BackendPigo && len(f.cascade) == 0 {
		return nil, errors.New("please specify a face classifier with --cc when using the pigo backend")
	}

	switch shape := facemesh.ShapeType(f.shape); shape {
	case facemesh.Square, facemesh.Circle:
		p.ShapeType = shape
	default:
		return nil, fmt.Errorf("unknown marker shape %q", f.shape)
	}

	p.Classifier = f.cascade
	p.FaceAngle = f.angle
	p.MinFaceSize = f.minSize
	p.MarkerSize = f.size
	p.MarkerColor = f.color
	p.DrawBoxes = f.boxes || p.Backend == facemesh.BackendPigo
	p.BoxColor = f.boxColor
	return p, nil
}
