package motion

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// ArchivePath returns the path of a session's compressed motion
// log inside dir.
func ArchivePath(dir, key string) string {
	return filepath.Join(dir, "motion_"+key+".jsonl.zst")
}

// WriteArchive writes samples as zstd-compressed JSON lines and
// returns the archive path.
func WriteArchive(dir, key string, samples []Sample) (string, error) {
	if key == "" {
		return "", fmt.Errorf("motion archive: empty session key")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	path := ArchivePath(dir, key)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f)
	if err != nil {
		return "", fmt.Errorf("create zstd encoder: %w", err)
	}

	je := json.NewEncoder(enc)
	for _, s := range samples {
		if err := je.Encode(s); err != nil {
			enc.Close()
			return "", fmt.Errorf("encode sample: %w", err)
		}
	}

	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("finalize compression: %w", err)
	}
	return path, nil
}

// ReadArchive decodes a file written by WriteArchive.
func ReadArchive(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	var out []Sample
	scanner := bufio.NewScanner(dec)
	for scanner.Scan() {
		var s Sample
		if err := json.Unmarshal(scanner.Bytes(), &s); err != nil {
			return nil, fmt.Errorf("decode sample: %w", err)
		}
		out = append(out, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	return out, nil
}
