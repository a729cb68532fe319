package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/user/linkpulse/internal/config"
	"github.com/user/linkpulse/internal/metrics"
	"go.uber.org/zap"
)

// ===========================================
// Short Code Generation
// ===========================================
// Random codes are base62 (0-9, A-Z, a-z): URL-safe and case-sensitive.
// Eight characters give 62^8 (about 218 trillion) codes, so collisions
// are rare and a handful of retries is plenty.
//
// The Exists pre-check only avoids obvious collisions. The unique index
// on links.short_code is the real guarantee; LinkService handles a
// late conflict at insert time.

const base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

var base62Len = big.NewInt(int64(len(base62Chars)))

// CodeGenerator hands out short codes that are free at the time of the call.
type CodeGenerator struct {
	links       LinkStore
	length      int
	maxAttempts int
	random      io.Reader
	log         *zap.Logger
}

// NewCodeGenerator creates a generator using crypto/rand.
func NewCodeGenerator(links LinkStore, cfg config.ShortenerConfig, log *zap.Logger) *CodeGenerator {
	length := cfg.DefaultCodeLength
	if length <= 0 {
		length = 8
	}
	attempts := cfg.MaxGenerationAttempts
	if attempts <= 0 {
		attempts = 10
	}
	return &CodeGenerator{
		links:       links,
		length:      length,
		maxAttempts: attempts,
		random:      rand.Reader,
		log:         log,
	}
}

// Generate returns customCode unchanged if no link uses it, or a fresh
// random code when customCode is empty.
//
// Errors: ErrCodeConflict (custom code taken), ErrGenerationExhausted
// (no free random code within the attempt budget), *StorageError.
func (g *CodeGenerator) Generate(ctx context.Context, customCode string) (string, error) {
	if customCode != "" {
		taken, err := g.links.Exists(ctx, customCode)
		if err != nil {
			return "", storageError("check short code", err)
		}
		if taken {
			g.log.Info("Custom short code already in use", zap.String("short_code", customCode))
			return "", ErrCodeConflict
		}
		return customCode, nil
	}

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		metrics.CodeGenerationAttempts.Inc()

		code, err := g.randomCode()
		if err != nil {
			return "", err
		}

		taken, err := g.links.Exists(ctx, code)
		if err != nil {
			return "", storageError("check short code", err)
		}
		if !taken {
			return code, nil
		}

		g.log.Debug("Generated short code collided", zap.Int("attempt", attempt))
	}

	metrics.CodeGenerationExhausted.Inc()
	g.log.Error("Short code generation exhausted",
		zap.Int("attempts", g.maxAttempts),
		zap.Int("length", g.length),
	)
	return "", ErrGenerationExhausted
}

// randomCode draws one code. rand.Int rejects out-of-range samples, so
// every character is uniformly distributed (a plain byte%62 is not).
func (g *CodeGenerator) randomCode() (string, error) {
	code := make([]byte, g.length)
	for i := range code {
		n, err := rand.Int(g.random, base62Len)
		if err != nil {
			return "", fmt.Errorf("failed to generate random code: %w", err)
		}
		code[i] = base62Chars[n.Int64()]
	}
	return string(code), nil
}
