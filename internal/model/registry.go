package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/crossflow/internal/domain"
)

const (
	modelFile    = "model.json"
	metadataFile = "metadata.json"
)

// Metadata describes a saved model version. Metrics are stored as strings
// so the registry never has to interpret them.
type Metadata struct {
	Name       string            `json:"name"`
	Version    int               `json:"version"`
	RunID      string            `json:"run_id"`
	FeatureSet string            `json:"feature_set"`
	Columns    []string          `json:"columns"`
	Metrics    map[string]string `json:"metrics"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Registry stores model artifacts under dir/<name>/<version>/.
type Registry struct {
	dir    string
	logger *slog.Logger
}

func NewRegistry(dir string, logger *slog.Logger) *Registry {
	return &Registry{dir: dir, logger: logger}
}

// Save writes the model and its metadata as the next version of name and
// returns the assigned version. Versions only ever grow.
func (r *Registry) Save(name string, reg Regressor, meta Metadata) (int, error) {
	version, err := r.latestVersion(name)
	if err != nil {
		return 0, err
	}
	version++

	dir := filepath.Join(r.dir, name, strconv.Itoa(version))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create model dir: %w", err)
	}

	meta.Name = name
	meta.Version = version
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = domain.Now()
	}
	if err := writeJSON(filepath.Join(dir, modelFile), reg); err != nil {
		return 0, err
	}
	if err := writeJSON(filepath.Join(dir, metadataFile), meta); err != nil {
		return 0, err
	}
	r.logger.Info("saved model", "name", name, "version", version)
	return version, nil
}

// Latest loads the newest version of name.
func (r *Registry) Latest(name string) (*Ridge, Metadata, error) {
	version, err := r.latestVersion(name)
	if err != nil {
		return nil, Metadata{}, err
	}
	if version == 0 {
		return nil, Metadata{}, fmt.Errorf("no versions of model %s under %s", name, r.dir)
	}
	return r.Load(name, version)
}

// Load reads one specific model version.
func (r *Registry) Load(name string, version int) (*Ridge, Metadata, error) {
	dir := filepath.Join(r.dir, name, strconv.Itoa(version))
	var reg Ridge
	if err := readJSON(filepath.Join(dir, modelFile), &reg); err != nil {
		return nil, Metadata{}, err
	}
	var meta Metadata
	if err := readJSON(filepath.Join(dir, metadataFile), &meta); err != nil {
		return nil, Metadata{}, err
	}
	return &reg, meta, nil
}

// latestVersion scans the name's directory for the highest numeric
// subdirectory; 0 means no versions exist yet.
func (r *Registry) latestVersion(name string) (int, error) {
	entries, err := os.ReadDir(filepath.Join(r.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("scan model dir: %w", err)
	}

	latest := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		v, err := strconv.Atoi(e.Name())
		if err != nil || v <= 0 {
			continue
		}
		if v > latest {
			latest = v
		}
	}
	return latest, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read model artifact: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
