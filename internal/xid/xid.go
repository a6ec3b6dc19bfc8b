package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const storeCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// StoreCodeLength is the length of the join code handed out to new stores.
const StoreCodeLength = 6

func New(prefix string) string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixMilli())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixMilli(), hex.EncodeToString(buf))
}

func SaleNumber() string {
	return New("SALE")
}

// BatchNumber is the default label for a restock that did not name its batch.
func BatchNumber(at time.Time) string {
	return fmt.Sprintf("BATCH-%d", at.UnixMilli())
}

func StoreCode() string {
	buf := make([]byte, StoreCodeLength)
	if _, err := rand.Read(buf); err != nil {
		nanos := time.Now().UnixNano()
		for i := range buf {
			buf[i] = byte(nanos >> (8 * i))
		}
	}
	out := make([]byte, StoreCodeLength)
	for i, b := range buf {
		out[i] = storeCodeAlphabet[int(b)%len(storeCodeAlphabet)]
	}
	return string(out)
}
