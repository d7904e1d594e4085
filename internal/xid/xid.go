// Package xid generates prefixed identifiers for client-side artifacts
// (sessions and the like) without a coordination point. Server-assigned
// identifiers come back from the commit service instead.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

func New(prefix string) string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// Degraded but still unique enough for a single terminal.
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%x-%s", prefix, time.Now().Unix(), hex.EncodeToString(buf))
}
