package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// CorrelationKey produces a stable hash over a correlation value set.
// Two events carrying the same correlation values always hash to the
// same key, independent of map iteration order.
func CorrelationKey(values map[string]interface{}) string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		fmt.Fprintf(h, "%s=%v;", name, values[name])
	}

	return hex.EncodeToString(h.Sum(nil))
}
