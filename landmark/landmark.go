// Package landmark decodes the normalized facial landmark lists produced by
// the face mesh graph. A list is a serialized mediapipe.NormalizedLandmarkList
// protocol buffer message; only the handful of fields used for drawing are
// decoded, everything else on the wire is skipped.
package landmark

import (
	"errors"
	"fmt"
	"image"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Landmark counts of a single face mesh.
const (
	NumFace          = 468
	NumFaceAttention = 478 // the attention model adds 5 points per iris
)

// Field numbers of mediapipe.NormalizedLandmark.
const (
	fieldX          protowire.Number = 1
	fieldY          protowire.Number = 2
	fieldZ          protowire.Number = 3
	fieldVisibility protowire.Number = 4
	fieldPresence   protowire.Number = 5
)

// fieldLandmark is the repeated landmark field of mediapipe.NormalizedLandmarkList.
const fieldLandmark protowire.Number = 1

// ErrMalformed is returned when the wire data cannot be parsed.
var ErrMalformed = errors.New("landmark: malformed message")

// Landmark is a single normalized 3D point. X and Y are relative to the image
// width and height, Z is the depth relative to the face center, using roughly
// the same scale as X.
type Landmark struct {
	X, Y, Z    float32
	Visibility float32
	Presence   float32
}

// List holds the landmarks of one face.
type List []Landmark

// Pixel converts the normalized landmark to a pixel coordinate inside a
// w x h frame. Points outside of the frame are clamped to its border.
func (l Landmark) Pixel(w, h int) image.Point {
	return image.Pt(
		clamp(int(math.Round(float64(l.X)*float64(w))), 0, w-1),
		clamp(int(math.Round(float64(l.Y)*float64(h))), 0, h-1),
	)
}

// Bounds returns the smallest rectangle containing every landmark of the list
// expressed in pixel coordinates of a w x h frame.
func (ls List) Bounds(w, h int) image.Rectangle {
	if len(ls) == 0 {
		return image.Rectangle{}
	}
	p := ls[0].Pixel(w, h)
	r := image.Rectangle{Min: p, Max: p}
	for _, l := range ls[1:] {
		p = l.Pixel(w, h)
		if p.X < r.Min.X {
			r.Min.X = p.X
		}
		if p.Y < r.Min.Y {
			r.Min.Y = p.Y
		}
		if p.X > r.Max.X {
			r.Max.X = p.X
		}
		if p.Y > r.Max.Y {
			r.Max.Y = p.Y
		}
	}
	r.Max = r.Max.Add(image.Pt(1, 1))
	return r
}

// Unmarshal decodes a serialized NormalizedLandmarkList.
func Unmarshal(b []byte) (List, error) {
	var list List
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		if num == fieldLandmark && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			l, err := unmarshalLandmark(v)
			if err != nil {
				return nil, err
			}
			list = append(list, l)
			b = b[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return list, nil
}

func unmarshalLandmark(b []byte) (Landmark, error) {
	var l Landmark
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return l, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		if typ == protowire.Fixed32Type {
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return l, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			f := math.Float32frombits(v)
			switch num {
			case fieldX:
				l.X = f
			case fieldY:
				l.Y = f
			case fieldZ:
				l.Z = f
			case fieldVisibility:
				l.Visibility = f
			case fieldPresence:
				l.Presence = f
			}
			b = b[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return l, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return l, nil
}

// Marshal encodes the list in the NormalizedLandmarkList wire format.
// Zero valued fields are omitted, like proto2 optional fields left unset.
func Marshal(ls List) []byte {
	var b []byte
	for _, l := range ls {
		var inner []byte
		inner = appendFloat(inner, fieldX, l.X)
		inner = appendFloat(inner, fieldY, l.Y)
		inner = appendFloat(inner, fieldZ, l.Z)
		inner = appendFloat(inner, fieldVisibility, l.Visibility)
		inner = appendFloat(inner, fieldPresence, l.Presence)

		b = protowire.AppendTag(b, fieldLandmark, protowire.BytesType)
		b = protowire.AppendBytes(b, inner)
	}
	return b
}

func appendFloat(b []byte, num protowire.Number, f float32) []byte {
	if f == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(f))
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
