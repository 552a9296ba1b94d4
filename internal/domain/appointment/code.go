package appointment

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

const maxCodeAttempts = 10

// NewCode formats APT + yyyyMMdd + 4 digits.
func NewCode(now time.Time, n int) string {
	return fmt.Sprintf("APT%s%04d", now.Format("20060102"), n%10000)
}

// fallbackCode takes its suffix from the wall clock's microseconds since
// the injected clock may be second-truncated.
func fallbackCode(now time.Time) string {
	return fmt.Sprintf("APT%s%06d", now.Format("20060102"), time.Now().UnixMicro()%1000000)
}

// GenerateCode tries random suffixes, then falls back to a time-derived one.
func GenerateCode(
	ctx context.Context,
	now time.Time,
	exists func(ctx context.Context, code string) (bool, error),
) (string, error) {

	for i := 0; i < maxCodeAttempts; i++ {
		code := NewCode(now, rand.IntN(10000))
		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return fallbackCode(now), nil
}
