// Package ids generates the human-readable identifiers used across the
// registry: record ids and carbon credit serial numbers.
package ids

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record id prefixes.
const (
	PrefixProject      = "PRJ"
	PrefixStakeholder  = "STK"
	PrefixUpload       = "UPL"
	PrefixVerification = "VER"
	PrefixCredit       = "CRD"
	PrefixListing      = "LST"
	PrefixTransaction  = "TXN"
)

// New returns "<prefix>-<base36 millis><8 hex>", e.g. PRJ-LZ3K9Q1A7F03B2C1.
func New(prefix string) string {
	millis := strconv.FormatInt(time.Now().UnixMilli(), 36)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return strings.ToUpper(fmt.Sprintf("%s-%s%s", prefix, millis, suffix))
}

// SerialGenerator issues credit serial numbers. Serials derive from the
// project, the vintage and a monotonic millisecond clock, followed by a
// random tail so generators in different processes do not collide.
type SerialGenerator struct {
	mu     sync.Mutex
	last   int64
	now    func() time.Time
	random func() string
}

func NewSerialGenerator() *SerialGenerator {
	return &SerialGenerator{now: time.Now, random: randomTail}
}

// Next returns a serial of the form CC-<vintage>-<project tail>-<millis>-<random>.
func (g *SerialGenerator) Next(projectID, vintage string) string {
	g.mu.Lock()
	ts := g.now().UnixMilli()
	if ts <= g.last {
		ts = g.last + 1
	}
	g.last = ts
	g.mu.Unlock()

	return fmt.Sprintf("CC-%s-%s-%d-%s", vintage, projectTail(projectID), ts, g.random())
}

func randomTail() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func projectTail(projectID string) string {
	clean := strings.ToUpper(strings.ReplaceAll(projectID, "-", ""))
	if len(clean) > 6 {
		clean = clean[len(clean)-6:]
	}
	if clean == "" {
		return "NOPROJ"
	}
	return clean
}
