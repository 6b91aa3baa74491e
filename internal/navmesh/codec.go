package navmesh

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Format selects the zone file encoding.
type Format string

const (
	FormatMsgpack Format = "msgpack"
	FormatJSON    Format = "json"
)

// FormatForPath picks the encoding from a file extension. Anything that is not
// .json is treated as msgpack.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	default:
		return FormatMsgpack
	}
}

// EncodeZone writes zone to w.
func EncodeZone(w io.Writer, zone *Zone, format Format) error {
	if zone == nil {
		return ErrEmptyGeometry
	}
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(zone)
	case FormatMsgpack, "":
		return msgpack.NewEncoder(w).Encode(zone)
	default:
		return fmt.Errorf("navmesh: unknown zone format %q", format)
	}
}

// DecodeZone reads and validates a zone from r.
func DecodeZone(r io.Reader, format Format) (*Zone, error) {
	var zone Zone
	var err error
	switch format {
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&zone)
	case FormatMsgpack, "":
		err = msgpack.NewDecoder(r).Decode(&zone)
	default:
		return nil, fmt.Errorf("navmesh: unknown zone format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("navmesh: decode zone: %w", err)
	}
	if err := zone.Validate(); err != nil {
		return nil, err
	}
	return &zone, nil
}

// SaveZoneFile writes zone to path in the encoding its extension implies.
func SaveZoneFile(path string, zone *Zone) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeZone(file, zone, FormatForPath(path)); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// LoadZoneFile reads a zone written by SaveZoneFile.
func LoadZoneFile(path string) (*Zone, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return DecodeZone(file, FormatForPath(path))
}
