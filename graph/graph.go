// Package graph renders the face mesh calculator graph in the engine's text
// configuration format.
package graph

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// Default stream names of the face mesh graph.
const (
	InputVideo      = "input_video"
	OutputVideo     = "output_video"
	OutputLandmarks = "multi_face_landmarks"
)

// Options configures the generated graph.
type Options struct {
	// NumFaces is the maximum number of faces to track.
	NumFaces int
	// WithAttention enables the attention mesh model which refines the
	// landmarks around the eyes and lips and adds the iris points.
	WithAttention bool
	// Render adds the renderer subgraph producing an annotated video stream.
	Render bool
	// FlowLimiter throttles the input so that only one frame is in flight.
	// It is ignored without Render, the rendered video closes its loop.
	FlowLimiter bool

	InputStream     string
	OutputVideo     string
	OutputLandmarks string
}

// DefaultOptions returns the options used by the example programs.
func DefaultOptions() Options {
	return Options{
		NumFaces:        1,
		WithAttention:   true,
		Render:          true,
		FlowLimiter:     true,
		InputStream:     InputVideo,
		OutputVideo:     OutputVideo,
		OutputLandmarks: OutputLandmarks,
	}
}

// Outputs lists the streams which have to be observed by the caller.
func (o Options) Outputs() []string {
	if o.Render {
		return []string{o.OutputVideo, o.OutputLandmarks}
	}
	return []string{o.OutputLandmarks}
}

// Validate checks the options for values the engine would reject.
func (o Options) Validate() error {
	if o.NumFaces < 1 {
		return fmt.Errorf("graph: number of faces must be at least 1, got %d", o.NumFaces)
	}
	names := []string{o.InputStream, o.OutputLandmarks}
	if o.Render {
		names = append(names, o.OutputVideo)
	}
	reserved := map[string]struct{}{
		"num_faces":                  {},
		"with_attention":             {},
		"face_detections":            {},
		"face_rects_from_landmarks":  {},
		"face_rects_from_detections": {},
		"throttled_" + o.InputStream: {},
	}
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n == "" {
			return errors.New("graph: stream name cannot be empty")
		}
		if strings.ContainsAny(n, "\"' \t\r\n:") {
			return fmt.Errorf("graph: invalid stream name %q", n)
		}
		if _, ok := reserved[n]; ok {
			return fmt.Errorf("graph: stream name %q is used inside the graph", n)
		}
		if _, ok := seen[n]; ok {
			return fmt.Errorf("graph: duplicate stream name %q", n)
		}
		seen[n] = struct{}{}
	}
	return nil
}

var faceMesh = template.Must(template.New("face_mesh").Parse(`# Face mesh graph generated by facemesh.
input_stream: "{{.InputStream}}"
{{- if .Render}}
output_stream: "{{.OutputVideo}}"
{{- end}}
output_stream: "{{.OutputLandmarks}}"
{{if .FlowLimiter}}
node {
  calculator: "FlowLimiterCalculator"
  input_stream: "{{.InputStream}}"
  input_stream: "FINISHED:{{.OutputVideo}}"
  input_stream_info: {
    tag_index: "FINISHED"
    back_edge: true
  }
  output_stream: "throttled_{{.InputStream}}"
}
{{end}}
node {
  calculator: "ConstantSidePacketCalculator"
  output_side_packet: "PACKET:0:num_faces"
  output_side_packet: "PACKET:1:with_attention"
  node_options: {
    [type.googleapis.com/mediapipe.ConstantSidePacketCalculatorOptions]: {
      packet { int_value: {{.NumFaces}} }
      packet { bool_value: {{.WithAttention}} }
    }
  }
}

node {
  calculator: "FaceLandmarkFrontCpu"
  input_stream: "IMAGE:{{.Frames}}"
  input_side_packet: "NUM_FACES:num_faces"
  input_side_packet: "WITH_ATTENTION:with_attention"
  output_stream: "LANDMARKS:{{.OutputLandmarks}}"
  output_stream: "ROIS_FROM_LANDMARKS:face_rects_from_landmarks"
  output_stream: "DETECTIONS:face_detections"
  output_stream: "ROIS_FROM_DETECTIONS:face_rects_from_detections"
}
{{if .Render}}
node {
  calculator: "FaceRendererCpu"
  input_stream: "IMAGE:{{.Frames}}"
  input_stream: "LANDMARKS:{{.OutputLandmarks}}"
  input_stream: "NORM_RECTS:face_rects_from_landmarks"
  input_stream: "DETECTIONS:face_detections"
  output_stream: "IMAGE:{{.OutputVideo}}"
}
{{end}}`))

// Render returns the graph configuration text for the given options.
func Render(o Options) (string, error) {
	if err := o.Validate(); err != nil {
		return "", err
	}

	// The landmark stream carries no packet on frames without a face, so it
	// cannot close the flow limiter loop. Only the rendered video can.
	if !o.Render {
		o.FlowLimiter = false
	}
	data := struct {
		Options
		Frames string
	}{
		Options: o,
		Frames:  o.InputStream,
	}
	if o.FlowLimiter {
		data.Frames = "throttled_" + o.InputStream
	}

	var buf bytes.Buffer
	if err := faceMesh.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("graph: could not render the configuration: %w", err)
	}
	return buf.String(), nil
}
