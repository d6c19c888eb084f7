package engine

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/zeebo/xxh3"
)

// namer hands out staging-relation names that are collision-free across
// concurrent merge calls in this process (monotonic counter) and across
// processes sharing one backing store (per-process nonce).
type namer struct {
	nonce string
	seq   atomic.Uint64
}

func newNamer() *namer {
	host, _ := os.Hostname()
	seed := fmt.Sprintf("%s|%d|%d", host, os.Getpid(), time.Now().UnixNano())
	return &namer{nonce: strconv.FormatUint(xxh3.HashString(seed), 36)}
}

// next derives a fresh staging name scoped to the destination relation, e.g.
// "stg_sales_1k2j3h_7".
func (n *namer) next(dest string) string {
	return fmt.Sprintf("stg_%s_%s_%d", sanitizeTag(dest), n.nonce, n.seq.Add(1))
}

// sanitizeTag reduces a relation name to a short identifier-safe tag for
// embedding in staging names.
func sanitizeTag(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
		if b.Len() >= 24 {
			break
		}
	}
	if b.Len() == 0 {
		return "rel"
	}
	return b.String()
}
