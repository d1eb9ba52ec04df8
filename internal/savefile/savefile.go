package savefile

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
)

const (
	EmulatorRetroArch = "retroarch"
	EmulatorUnknown   = "unknown"
)

// extensions is the allow-list of save file extensions, mapped to the emulator that writes them.
// Extensions mapped to EmulatorUnknown are still synced, we just can't tell who wrote them.
var extensions = map[string]string{
	".srm":   EmulatorRetroArch, // SNES/Genesis saves
	".sav":   EmulatorRetroArch, // general saves
	".state": EmulatorRetroArch, // save states
	".st":    EmulatorRetroArch, // save states (alternative)
	".eep":   EmulatorRetroArch, // EEPROM
	".fla":   EmulatorRetroArch, // flash
	".mpk":   EmulatorRetroArch, // N64 controller pak
	".rtc":   EmulatorRetroArch, // real-time clock
	".dss":   EmulatorUnknown,   // DeSmuME save states
	".dsv":   EmulatorUnknown,   // DeSmuME saves
	".sps":   EmulatorUnknown,   // PCSX2 save states
	".gci":   EmulatorUnknown,   // GameCube saves
	".raw":   EmulatorUnknown,   // memory card raw
}

// Record is a save file as seen by the sync engine. It is derived from the file location on every
// operation and never persisted.
type Record struct {
	Path     string
	Emulator string
	Game     string
	Filename string
}

func (r Record) String() string {
	return fmt.Sprintf("%s/%s/%s", r.Emulator, r.Game, r.Filename)
}

// IsSaveFile reports whether path carries an allow-listed extension. Matching is case-insensitive.
func IsSaveFile(path string) bool {
	_, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extensions returns the allow-listed extensions.
func Extensions() []string {
	exts := make([]string, 0, len(extensions))
	for ext := range extensions {
		exts = append(exts, ext)
	}
	return exts
}

// Detect derives the record for a save file path. The game identifier is the filename stem.
func Detect(path string) (Record, error) {
	if !IsSaveFile(path) {
		return Record{}, fmt.Errorf("not a save file: %s", path)
	}

	filename := filepath.Base(path)
	ext := filepath.Ext(filename)
	game := strings.TrimSuffix(filename, ext)
	if game == "" {
		return Record{}, fmt.Errorf("save file has no name: %s", path)
	}

	return Record{
		Path:     path,
		Emulator: extensions[strings.ToLower(ext)],
		Game:     game,
		Filename: filename,
	}, nil
}

// Scan walks root recursively and calls fn for every save file found. Unreadable entries are logged
// and skipped so one bad directory does not hide the rest of the tree.
func Scan(root string, fn func(path string) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return fmt.Errorf("walk %s: %w", root, walkErr)
			}
			slog.Warn("savefile scan", "path", path, "error", walkErr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		if !IsSaveFile(path) {
			return nil
		}

		return fn(path)
	})
}
