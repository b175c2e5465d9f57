// Package storage persists analysis outputs to disk: the metrics
// record as JSON, the lesion masks as a compressed archive, and the
// per-slice statistics as CSV. Formats are stable; the analysis core
// itself never touches the filesystem.
package storage

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/gocarina/gocsv"

	"ctperf/pkg/perfusion"
	"ctperf/pkg/volume"
)

// SaveMetrics writes the metrics record as indented JSON.
func SaveMetrics(path string, rec *perfusion.Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling metrics: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing metrics file: %w", err)
	}
	return nil
}

// maskHeader describes the archive layout: mask names in storage order
// with their dimensions.
type maskHeader struct {
	Names  []string          `json:"names"`
	Shapes map[string][3]int `json:"shapes"`
}

// SaveMasks writes the boolean masks as a gzip archive: one JSON header
// line naming the masks and their shapes, followed by one byte per
// voxel (0 or 1, z-major) per mask in header order.
func SaveMasks(path string, masks map[string]*volume.Mask) error {
	header := maskHeader{Shapes: make(map[string][3]int, len(masks))}
	for name := range masks {
		header.Names = append(header.Names, name)
	}
	sort.Strings(header.Names)
	for _, name := range header.Names {
		m := masks[name]
		header.Shapes[name] = [3]int{m.Slices, m.Rows, m.Cols}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating mask archive: %w", err)
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	headerLine, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("error marshaling mask header: %w", err)
	}
	if _, err := zw.Write(append(headerLine, '\n')); err != nil {
		return fmt.Errorf("error writing mask header: %w", err)
	}

	buf := make([]byte, 0, 1<<16)
	for _, name := range header.Names {
		buf = buf[:0]
		for _, set := range masks[name].Data {
			if set {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
			if len(buf) == cap(buf) {
				if _, err := zw.Write(buf); err != nil {
					return fmt.Errorf("error writing mask %s: %w", name, err)
				}
				buf = buf[:0]
			}
		}
		if _, err := zw.Write(buf); err != nil {
			return fmt.Errorf("error writing mask %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("error finalizing mask archive: %w", err)
	}
	return nil
}

// LoadMasks reads a mask archive written by SaveMasks.
func LoadMasks(path string) (map[string]*volume.Mask, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening mask archive: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("error reading mask archive: %w", err)
	}
	defer zr.Close()

	r := bufio.NewReader(zr)
	headerLine, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("error reading mask header: %w", err)
	}
	var header maskHeader
	if err := json.Unmarshal(headerLine, &header); err != nil {
		return nil, fmt.Errorf("error parsing mask header: %w", err)
	}

	masks := make(map[string]*volume.Mask, len(header.Names))
	for _, name := range header.Names {
		shape, ok := header.Shapes[name]
		if !ok {
			return nil, fmt.Errorf("mask %s has no shape in header", name)
		}
		m := volume.NewMask(shape[0], shape[1], shape[2])
		raw := make([]byte, len(m.Data))
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, fmt.Errorf("error reading mask %s: %w", name, err)
		}
		for i, b := range raw {
			m.Data[i] = b != 0
		}
		masks[name] = m
	}
	return masks, nil
}

// SaveSliceStats writes the per-slice lesion area table as CSV.
func SaveSliceStats(path string, stats []perfusion.SliceStat) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating slice stats file: %w", err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&stats, f); err != nil {
		return fmt.Errorf("error writing slice stats: %w", err)
	}
	return nil
}
