package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	GiftCardCodePrefix  = "MKD-"
	OrderNumberPrefix   = "NH-"
	DefaultCodeAttempts = 20

	codeAlphabet            = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	giftCardCodeLength      = 8
	orderNumberSuffixLength = 6
)

// CodeExistsFunc reports whether a candidate code is already taken.
type CodeExistsFunc func(ctx context.Context, code string) (bool, error)

type CodeGenerator struct {
	random io.Reader
}

func NewCodeGenerator() *CodeGenerator {
	return &CodeGenerator{random: rand.Reader}
}

// Generate returns a gift card code such as MKD-7HQ2MZXA.
func (g *CodeGenerator) Generate() (string, error) {
	suffix, err := g.randomString(giftCardCodeLength)
	if err != nil {
		return "", err
	}
	return GiftCardCodePrefix + suffix, nil
}

// EnsureUnique draws codes until exists reports a free one.
func (g *CodeGenerator) EnsureUnique(ctx context.Context, exists CodeExistsFunc, maxAttempts int) (string, error) {
	if exists == nil {
		return "", errors.New("code existence check is nil")
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultCodeAttempts
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		code, err := g.Generate()
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}

	return "", ErrCodeSpaceExhausted
}

// OrderNumber returns NH-YYYYMMDD-XXXXXX for the given day.
func (g *CodeGenerator) OrderNumber(at time.Time) (string, error) {
	suffix, err := g.randomString(orderNumberSuffixLength)
	if err != nil {
		return "", err
	}
	return OrderNumberPrefix + at.Format("20060102") + "-" + suffix, nil
}

func (g *CodeGenerator) randomString(length int) (string, error) {
	reader := g.random
	if reader == nil {
		reader = rand.Reader
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	// 256 is a multiple of the 32-symbol alphabet, so the modulo is unbiased.
	var builder strings.Builder
	builder.Grow(length)
	for _, b := range buf {
		builder.WriteByte(codeAlphabet[int(b)%len(codeAlphabet)])
	}
	return builder.String(), nil
}

func IsGiftCardCode(code string) bool {
	if len(code) != len(GiftCardCodePrefix)+giftCardCodeLength || !strings.HasPrefix(code, GiftCardCodePrefix) {
		return false
	}
	for _, r := range code[len(GiftCardCodePrefix):] {
		if !strings.ContainsRune(codeAlphabet, r) {
			return false
		}
	}
	return true
}
