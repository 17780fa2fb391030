package facemesh

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sort"

	"github.com/esimov/facemesh/utils"
	pigo "github.com/esimov/pigo/core"
)

// unpackClassifier loads the pigo face cascade used by the pigo backend.
func (p *Processor) unpackClassifier() error {
	if len(p.Classifier) == 0 {
		return errors.New("please specify a face classifier when using the pigo backend")
	}
	cascadeFile, err := os.ReadFile(p.Classifier)
	if err != nil {
		return fmt.Errorf("could not read the cascade file: %w", err)
	}

	// Unpack the binary file. This will return the number of cascade trees,
	// the tree depth, the threshold and the prediction from tree's leaf nodes.
	p.FaceDetector, err = pigo.NewPigo().Unpack(cascadeFile)
	if err != nil {
		return fmt.Errorf("error unpacking the cascade file: %w", err)
	}
	return nil
}

// findFaces runs the pigo cascade over a grayscale frame and returns at most
// Graph.NumFaces detections, the best scoring first.
func (p *Processor) findFaces(gray []uint8, width, height int) []Detection {
	minSize := p.MinFaceSize
	if minSize <= 0 {
		minSize = 20
	}
	cParams := pigo.CascadeParams{
		MinSize:     minSize,
		MaxSize:     utils.Max(width, height),
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,

		ImageParams: pigo.ImageParams{
			Pixels: gray,
			Rows:   height,
			Cols:   width,
			Dim:    width,
		},
	}

	// Run the classifier over the obtained leaf nodes and return the detection results.
	// The result contains quadruplets representing the row, column, scale and detection score.
	faces := p.FaceDetector.RunCascade(cParams, p.FaceAngle)

	// Calculate the intersection over union (IoU) of two clusters.
	faces = p.FaceDetector.ClusterDetections(faces, 0.2)

	return selectDetections(faces, p.MinQuality, p.Graph.NumFaces, width, height)
}

// selectDetections filters the pigo detections by quality, keeps the best
// limit of them and converts them to rectangles inside the frame.
func selectDetections(faces []pigo.Detection, minQuality float32, limit, width, height int) []Detection {
	sort.SliceStable(faces, func(i, j int) bool {
		return faces[i].Q > faces[j].Q
	})

	frame := image.Rect(0, 0, width, height)
	dets := make([]Detection, 0, len(faces))
	for _, face := range faces {
		if face.Q < minQuality {
			continue
		}
		if limit > 0 && len(dets) == limit {
			break
		}
		half := face.Scale / 2
		r := image.Rect(face.Col-half, face.Row-half, face.Col+half, face.Row+half).Intersect(frame)
		if r.Empty() {
			continue
		}
		dets = append(dets, Detection{Rect: r, Score: face.Q})
	}
	return dets
}
