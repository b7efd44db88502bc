// Package replaycatalog lists the replay bundles stored under a directory.
package replaycatalog

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"portalshift/engine/internal/replay"
)

// Entry captures a replay header alongside the bundle it belongs to.
type Entry struct {
	BundlePath string        `json:"bundle_path"`
	HeaderPath string        `json:"header_path"`
	Header     replay.Header `json:"header"`
	Bytes      int64         `json:"bytes"`
}

// List walks root and returns every bundle whose header.json parses. Bundles
// that are still being written have no header yet and are skipped.
func List(root string) ([]Entry, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("root directory must be provided")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root must be a directory")
	}

	var entries []Entry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || d.Name() != "header.json" {
			return nil
		}
		header, err := replay.ReadHeader(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		bundle := filepath.Dir(path)
		size, err := bundleSize(bundle)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{BundlePath: bundle, HeaderPath: path, Header: header, Bytes: size})
		return nil
	})
	if err != nil {
		return nil, err
	}
	//1.- Bundle directories end in a UTC timestamp, so path order is recording order per session.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Header.Level == entries[j].Header.Level {
			return entries[i].BundlePath < entries[j].BundlePath
		}
		return entries[i].Header.Level < entries[j].Header.Level
	})
	return entries, nil
}

func bundleSize(dir string) (int64, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		info, err := file.Info()
		if err != nil {
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}

// MarshalEntries produces a stable JSON representation of the entries for CLI output.
func MarshalEntries(entries []Entry) ([]byte, error) {
	return json.MarshalIndent(entries, "", "  ")
}
