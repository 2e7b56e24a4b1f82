package reporters

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

func paramYear(params map[string]string, key string) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(params[key]))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, params[key], err)
	}
	return year, nil
}

func paramAmount(params map[string]string, key string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(params[key]))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", key, params[key], err)
	}
	return amount, nil
}
