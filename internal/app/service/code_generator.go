package service

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	codeAlphabet      = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz_-"
	defaultCodeLength = 8
)

// CodeGenerator creates candidate short codes.
type CodeGenerator interface {
	NewCode() (string, error)
}

// NanoIDGenerator produces random codes from the short code alphabet.
type NanoIDGenerator struct {
	length int
}

// NewNanoIDGenerator returns a generator of the given length (8 when out of range).
func NewNanoIDGenerator(length int) *NanoIDGenerator {
	if length < minCodeLength || length > maxCodeLength {
		length = defaultCodeLength
	}
	return &NanoIDGenerator{length: length}
}

func (g *NanoIDGenerator) NewCode() (string, error) {
	return gonanoid.Generate(codeAlphabet, g.length)
}

var _ CodeGenerator = (*NanoIDGenerator)(nil)
