// Package idgen issues the human-readable identifiers used across checkout.
package idgen

import (
	"crypto/rand"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const (
	orderPrefix       = "ORD"
	transactionPrefix = "TXN"
	orderNumberPrefix = "SF"

	orderTokenLen       = 6
	transactionTokenLen = 9
	orderNumberDigits   = 6

	base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	// largest multiple of 36 that fits in a byte; bytes at or above it are rejected
	base36Cutoff = 252
)

// Generator builds identifiers from an explicit clock and random source.
type Generator struct {
	now    func() time.Time
	random io.Reader
}

// New returns a Generator. nil arguments fall back to time.Now and crypto/rand.
func New(now func() time.Time, random io.Reader) *Generator {
	if now == nil {
		now = time.Now
	}
	if random == nil {
		random = rand.Reader
	}
	return &Generator{now: now, random: random}
}

// OrderID returns ORD_<unix ms>_<6 base36>, uppercased.
func (g *Generator) OrderID() (string, error) {
	return g.timestamped(orderPrefix, orderTokenLen)
}

// TransactionID returns TXN_<unix ms>_<9 base36>, uppercased.
func (g *Generator) TransactionID() (string, error) {
	return g.timestamped(transactionPrefix, transactionTokenLen)
}

// OrderNumber returns SF-<yymmdd>-<6 digits> for display on receipts.
func (g *Generator) OrderNumber() (string, error) {
	buf := make([]byte, orderNumberDigits)
	if _, err := io.ReadFull(g.random, buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	var b strings.Builder
	b.Grow(orderNumberDigits)
	for _, v := range buf {
		b.WriteByte('0' + v%10)
	}
	return fmt.Sprintf("%s-%s-%s", orderNumberPrefix, g.now().UTC().Format("060102"), b.String()), nil
}

func (g *Generator) timestamped(prefix string, tokenLen int) (string, error) {
	token, err := g.base36(tokenLen)
	if err != nil {
		return "", err
	}
	ms := strconv.FormatInt(g.now().UnixMilli(), 10)
	return strings.ToUpper(prefix + "_" + ms + "_" + token), nil
}

func (g *Generator) base36(n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := io.ReadFull(g.random, buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, v := range buf {
			if v >= base36Cutoff {
				continue
			}
			out = append(out, base36Alphabet[v%36])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
