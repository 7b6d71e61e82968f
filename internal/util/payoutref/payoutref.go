package payoutref

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"time"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Generate returns a payout reference such as "RF2610-K7QX3M2A". The prefix
// carries the raffle period (YYMM) so treasurers can match transfers to a
// draw at a glance.
func Generate(period time.Time) (string, error) {
	var buf [5]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("RF%s-%s", period.Format("0601"), encoding.EncodeToString(buf[:])), nil
}
