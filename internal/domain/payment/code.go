package payment

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

const maxCodeAttempts = 10

// NewIntentCode formats PI-yyyyMMddHHmmss-######.
func NewIntentCode(now time.Time, n int) string {
	return fmt.Sprintf("PI-%s-%06d", now.Format("20060102150405"), n%1000000)
}

func GenerateIntentCode(
	ctx context.Context,
	now time.Time,
	exists func(ctx context.Context, code string) (bool, error),
) (string, error) {

	for i := 0; i < maxCodeAttempts; i++ {
		code := NewIntentCode(now, rand.IntN(1000000))
		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not allocate a payment intent code after %d attempts", maxCodeAttempts)
}
