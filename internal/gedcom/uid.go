package gedcom

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewUID returns a _UID value: 32 upper-case hex digits of a random UUID
// followed by the 4-digit checksum that PAF, Legacy and RootsMagic expect.
func NewUID() string {
	id := uuid.New()
	hex := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
	return hex + UIDChecksum(id[:])
}

// UIDChecksum computes the two running byte sums over the 16 UID bytes.
func UIDChecksum(b []byte) string {
	var a, s int
	for _, c := range b {
		a += int(c)
		s += a & 0xFF
	}
	return fmt.Sprintf("%02X%02X", a&0xFF, s&0xFF)
}
