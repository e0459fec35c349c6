// Package seed resolves the random seed of a device configuration.
package seed

import (
	crand "crypto/rand"
	"encoding/binary"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
)

// Resolve returns *p, or a seed drawn from the operating system's entropy
// source when p is nil.
func Resolve(p *uint64) (uint64, error) {
	if p != nil {
		return *p, nil
	}
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return 0, errors.Wrap(err, "seed: reading entropy")
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// Source returns a PCG source seeded from p as Resolve does.
func Source(p *uint64) (rand.Source, uint64, error) {
	s, err := Resolve(p)
	if err != nil {
		return nil, 0, err
	}
	return rand.NewSource(s), s, nil
}
