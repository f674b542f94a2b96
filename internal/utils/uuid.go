package utils

import "github.com/google/uuid"

// UUIDGenerator hands out time-ordered (v7) identifiers for records and
// queue entries, falling back to random v4 when v7 generation fails.
type UUIDGenerator struct {
}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (g *UUIDGenerator) Generate() string {
	v7, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return v7.String()
}
