package strategy

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// fsView reads files under an optional root prefix so strategies can be
// pointed at a fake /proc and /sys tree in tests.
type fsView struct {
	root string
}

func (f fsView) path(p string) string {
	if f.root == "" {
		return p
	}
	return filepath.Join(f.root, p)
}

func (f fsView) readFile(p string) (string, error) {
	raw, err := os.ReadFile(f.path(p))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (f fsView) readTrimmed(p string) (string, error) {
	s, err := f.readFile(p)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

func (f fsView) readUint(p string) (uint64, error) {
	s, err := f.readTrimmed(p)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(s, 10, 64)
}

func (f fsView) exists(p string) bool {
	_, err := os.Stat(f.path(p))
	return err == nil
}

// parseKeyedUints parses "key value" or "key: value unit" lines such as
// /proc/meminfo or cgroup v1 memory.stat into a map of raw numbers. The
// multiplier converts the file's native unit into the caller's (meminfo
// reports kB, so callers pass 1024).
func parseKeyedUints(content string, multiplier uint64) map[string]uint64 {
	out := map[string]uint64{}
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		key := strings.TrimSuffix(fields[0], ":")
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		out[key] = v * multiplier
	}
	return out
}
