package repository

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Common repository errors
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicate    = errors.New("record already exists")
	ErrInvalidInput = errors.New("invalid input")
)

// NewID returns a prefixed identifier that fits a varchar(32) column
func NewID(prefix string) string {
	clean := strings.ReplaceAll(uuid.New().String(), "-", "")
	if prefix == "" {
		return clean
	}
	return prefix + "_" + clean[:26]
}
