// Package id hands out process-unique identifiers for orders and positions.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu   sync.Mutex
	mono io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	// Monotonic entropy keeps ids generated within the same millisecond
	// strictly increasing, so insertion order and id order agree.
	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns a new ULID string. It is safe for concurrent use; optimizer
// workers create orders from many goroutines at once.
func New() string {
	mu.Lock()
	defer mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), mono)
	if err != nil {
		// Only possible if the monotonic entropy overflows within one
		// millisecond; bump the clock and try once more.
		id = ulid.MustNew(ulid.Timestamp(time.Now().UTC().Add(time.Millisecond)), mono)
	}
	return id.String()
}

// Time extracts the generation time encoded in an id produced by New.
func Time(s string) (time.Time, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
