package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/hjson/hjson-go/v4"
	"github.com/invopop/jsonschema"

	"lobby-crowd/server/internal/geom"
)

// File is the designer-facing route document. Points are [x, y, z] triples.
// Both strict JSON and hjson (comments, unquoted keys) are accepted.
type File struct {
	Routes map[string][][]float64 `json:"routes" jsonschema:"title=Patrol routes,description=Route id to ordered list of [x y z] waypoints walked in a loop.,required"`
}

// Parse decodes a route document.
func Parse(data []byte) (File, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	var file File
	if err := hjson.Unmarshal(data, &file); err != nil {
		return File{}, fmt.Errorf("routes: parse: %w", err)
	}
	for id, points := range file.Routes {
		if id == "" {
			return File{}, ErrEmptyID
		}
		for i, p := range points {
			if len(p) != 3 {
				return File{}, fmt.Errorf("routes: %s point %d has %d components, want 3", id, i, len(p))
			}
		}
	}
	return file, nil
}

// LoadFile reads path and installs every route into r, replacing routes with
// the same id. It returns the number of routes loaded.
func LoadFile(path string, r *Registry) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("routes: read %s: %w", path, err)
	}
	file, err := Parse(data)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return file.Apply(r)
}

// Apply installs the document's routes into r.
func (f File) Apply(r *Registry) (int, error) {
	for id, points := range f.Routes {
		if err := r.Set(id, fromTriples(points)); err != nil {
			return 0, err
		}
	}
	return len(f.Routes), nil
}

// Encode writes the document as indented JSON.
func (f File) Encode() ([]byte, error) {
	return json.MarshalIndent(f, "", "  ")
}

// Schema describes File for editor validation.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(File))
	schema.Title = "Lobby Patrol Routes"
	schema.Description = "Validates designer-authored patrol route files loaded by the crowd server"
	return schema
}

func fromTriples(points [][]float64) []geom.Vec3 {
	out := make([]geom.Vec3, 0, len(points))
	for _, p := range points {
		if len(p) < 3 {
			continue
		}
		out = append(out, geom.Vec3{p[0], p[1], p[2]})
	}
	return out
}

func toTriples(points []geom.Vec3) [][]float64 {
	out := make([][]float64, len(points))
	for i, p := range points {
		out[i] = []float64{p[0], p[1], p[2]}
	}
	return out
}

// Triples exposes points in the wire shape used by the HTTP and websocket
// surfaces.
func Triples(points []geom.Vec3) [][]float64 { return toTriples(points) }

// FromTriples converts wire points, dropping malformed entries.
func FromTriples(points [][]float64) []geom.Vec3 { return fromTriples(points) }
