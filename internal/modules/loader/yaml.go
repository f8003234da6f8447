// Package loader reads program and treaty book definitions from YAML files
// and bordereaux from spreadsheets, and writes augmented bordereaux back.
package loader

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aristath/cession/internal/domain"
	"github.com/aristath/cession/internal/modules/inuring"
	"github.com/aristath/cession/internal/modules/treaty"
)

// treatyBookFile is the on-disk shape of a treaty book
type treatyBookFile struct {
	Treaties map[string]*domain.Program `yaml:"treaties"`
}

// LoadProgram reads and validates a program definition
func LoadProgram(path string) (*domain.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseProgram(data)
}

// ParseProgram decodes and validates a YAML program definition
func ParseProgram(data []byte) (*domain.Program, error) {
	var program domain.Program
	if err := yaml.Unmarshal(data, &program); err != nil {
		return nil, fmt.Errorf("unmarshal program: %w", err)
	}
	if err := inuring.Validate(&program); err != nil {
		return nil, err
	}
	return &program, nil
}

// LoadTreatyBook reads a treaty book and validates every yearly program and
// the book-wide claim basis
func LoadTreatyBook(path string) (domain.TreatyBook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseTreatyBook(data)
}

// ParseTreatyBook decodes and validates a YAML treaty book
func ParseTreatyBook(data []byte) (domain.TreatyBook, error) {
	var file treatyBookFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unmarshal treaty book: %w", err)
	}

	book := domain.TreatyBook(file.Treaties)
	for year, program := range book {
		if program != nil && program.Name == "" {
			program.Name = year
		}
		if err := inuring.Validate(program); err != nil {
			return nil, fmt.Errorf("treaty %s: %w", year, err)
		}
	}
	if _, err := treaty.ClaimBasisOf(book); err != nil {
		return nil, err
	}
	return book, nil
}
