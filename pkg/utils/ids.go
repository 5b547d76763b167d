package utils

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// GenMessageID returns a new ULID string (26 chars). ULIDs are
// lexicographically sortable and collision-resistant under rapid concurrent
// appends, unlike plain timestamp-derived ids.
func GenMessageID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader).String()
}
