package preview

import (
	"errors"
	"fmt"
	"strings"
)

// seedPrefix is the literal the engine expects in front of the seed.
const seedPrefix = "eseed "

// handshakeTrailer terminates the seed message on the wire.
var handshakeTrailer = []byte{0x01, 0x21}

var (
	ErrSeedEmpty   = errors.New("seed is empty")
	ErrSeedNUL     = errors.New("seed contains a NUL byte")
	ErrSeedTooLong = errors.New("seed too long for one-byte length prefix")
)

// ValidateSeed checks the constraints the wire format imposes: non-empty,
// no embedded NUL, and prefix+seed must fit the single length byte.
func ValidateSeed(seed string) error {
	if seed == "" {
		return ErrSeedEmpty
	}
	if strings.IndexByte(seed, 0) >= 0 {
		return ErrSeedNUL
	}
	if len(seedPrefix)+len(seed) > 255 {
		return fmt.Errorf("%w: %d bytes", ErrSeedTooLong, len(seed))
	}
	return nil
}

// handshake builds the one-shot message sent to the engine on connect:
// a one-byte length, the prefixed seed, and the two-byte trailer.
func handshake(seed string) ([]byte, error) {
	if err := ValidateSeed(seed); err != nil {
		return nil, err
	}
	msg := seedPrefix + seed
	buf := make([]byte, 0, 1+len(msg)+len(handshakeTrailer))
	buf = append(buf, byte(len(msg)))
	buf = append(buf, msg...)
	buf = append(buf, handshakeTrailer...)
	return buf, nil
}
