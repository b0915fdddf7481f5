package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Alphabet without 0/O and 1/I so staff can read codes back over the phone.
const giftCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateGiftCardCode returns a code like GC-XXXX-XXXX-XXXX. Codes are only
// ever minted server-side.
func GenerateGiftCardCode() string {
	max := big.NewInt(int64(len(giftCodeAlphabet)))
	buf := make([]byte, 12)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// Fallback to a timestamp code if random generation fails
			return fmt.Sprintf("GC-%d", time.Now().UnixNano())
		}
		buf[i] = giftCodeAlphabet[n.Int64()]
	}
	return fmt.Sprintf("GC-%s-%s-%s", buf[0:4], buf[4:8], buf[8:12])
}
