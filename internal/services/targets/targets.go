// Package targets supplies target allocations produced outside the rebalancer.
package targets

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

// StaticSupplier returns a fixed allocation list.
type StaticSupplier struct {
	targets []domain.TargetAllocation
}

// NewStaticSupplier creates a supplier from a configured list.
func NewStaticSupplier(targets []domain.TargetAllocation) *StaticSupplier {
	out := make([]domain.TargetAllocation, len(targets))
	copy(out, targets)
	return &StaticSupplier{targets: out}
}

// Targets returns a copy of the configured allocation.
func (s *StaticSupplier) Targets(context.Context) ([]domain.TargetAllocation, error) {
	out := make([]domain.TargetAllocation, len(s.targets))
	copy(out, s.targets)
	return out, nil
}

// document accepted file layout; a bare list is accepted too.
type document struct {
	Allocations []domain.TargetAllocation `json:"allocations" yaml:"allocations"`
}

// FileSupplier re-reads a YAML or JSON allocation file on every call.
// The file is typically written by an AI tool call or a policy engine.
type FileSupplier struct {
	path string
}

// NewFileSupplier creates a file supplier.
func NewFileSupplier(path string) *FileSupplier {
	return &FileSupplier{path: path}
}

// Targets reads and decodes the allocation file.
func (s *FileSupplier) Targets(context.Context) ([]domain.TargetAllocation, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read targets file %s", s.path)
	}

	targets, err := Decode(payload, strings.EqualFold(filepath.Ext(s.path), ".json"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode targets file %s", s.path)
	}
	return targets, nil
}

// Decode parses an allocation document, either {"allocations": [...]} or a bare list.
func Decode(payload []byte, isJSON bool) ([]domain.TargetAllocation, error) {
	unmarshal := yaml.Unmarshal
	if isJSON {
		unmarshal = json.Unmarshal
	}

	var doc document
	if err := unmarshal(payload, &doc); err == nil && len(doc.Allocations) > 0 {
		return doc.Allocations, nil
	}

	var list []domain.TargetAllocation
	if err := unmarshal(payload, &list); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.New("no allocations found")
	}
	return list, nil
}
