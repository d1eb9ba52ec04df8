// Package objkey maps save files to object store keys.
//
// Keys are laid out as <owner>/<device>/<emulator>/<game>/<filename>. Every (emulator, game) pair
// also carries a sidecar record at <owner>/<device>/<emulator>/<game>/metadata.json holding the
// content hash of the last successful upload.
package objkey

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const (
	SidecarName = "metadata.json"
	separator   = "/"
	segments    = 5
)

var (
	ErrMalformedKey = errors.New("objkey: malformed key")
	ErrEmptySegment = errors.New("objkey: empty segment")
)

// Parts are the segments of an object key.
type Parts struct {
	Owner    string
	Device   string
	Emulator string
	Game     string
	Filename string
}

func (p Parts) Key() string {
	return Key(p.Owner, p.Device, p.Emulator, p.Game, p.Filename)
}

// Key is a pure function of its arguments. Segments must not be empty or contain a separator,
// which NewParts enforces for values coming from outside.
func Key(owner, device, emulator, game, filename string) string {
	return strings.Join([]string{owner, device, emulator, game, filename}, separator)
}

func MetadataKey(owner, device, emulator, game string) string {
	return Key(owner, device, emulator, game, SidecarName)
}

// OwnerPrefix is the listing prefix covering every device of an owner.
func OwnerPrefix(owner string) string {
	return owner + separator
}

// NewParts validates the segments before they are joined into a key.
func NewParts(owner, device, emulator, game, filename string) (Parts, error) {
	p := Parts{Owner: owner, Device: device, Emulator: emulator, Game: game, Filename: filename}
	for _, seg := range []string{owner, device, emulator, game, filename} {
		if seg == "" {
			return Parts{}, ErrEmptySegment
		}
		if strings.Contains(seg, separator) {
			return Parts{}, fmt.Errorf("%w: %q contains %q", ErrMalformedKey, seg, separator)
		}
	}
	return p, nil
}

// Parse splits a key into its segments. Keys with fewer than five segments are malformed. Extra
// segments are folded into the filename.
func Parse(key string) (Parts, error) {
	parts := strings.SplitN(key, separator, segments)
	if len(parts) < segments {
		return Parts{}, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	for _, seg := range parts {
		if seg == "" {
			return Parts{}, fmt.Errorf("%w: %q", ErrMalformedKey, key)
		}
	}
	return Parts{
		Owner:    parts[0],
		Device:   parts[1],
		Emulator: parts[2],
		Game:     parts[3],
		Filename: parts[4],
	}, nil
}

// IsSidecar reports whether key names a sidecar record rather than a save file.
func IsSidecar(key string) bool {
	return strings.HasSuffix(key, separator+SidecarName) || key == SidecarName
}

// Sidecar is the per-(emulator, game) metadata record written after each successful upload.
type Sidecar struct {
	Filename   string    `json:"filename"`
	Emulator   string    `json:"emulator"`
	Game       string    `json:"game_id"`
	Device     string    `json:"device_id"`
	Size       int64     `json:"file_size"`
	Hash       string    `json:"hash"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func (s *Sidecar) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

func UnmarshalSidecar(data []byte) (*Sidecar, error) {
	var s Sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode sidecar: %w", err)
	}
	return &s, nil
}
