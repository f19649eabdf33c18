package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Key layout:
//
//	tax:{tenant}:tree:{taxonomy}:{depth}   materialized trees
//	tax:{tenant}:detail:{taxonomy}         single taxonomy lookups
//	tax:{tenant}:list:{hash}               paginated list queries
//
// Every key starts with the tenant segment so one tenant's entries can be
// invalidated without touching another's.

const keyPrefix = "tax"

// TreeKey builds the cache key for a materialized tree at the given depth.
// depth 0 means unbounded.
func TreeKey(tenantID, taxonomyID uuid.UUID, depth int) string {
	return fmt.Sprintf("%s:%s:tree:%s:%d", keyPrefix, tenantID, taxonomyID, depth)
}

// DetailKey builds the cache key for a single taxonomy lookup.
func DetailKey(tenantID, taxonomyID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:detail:%s", keyPrefix, tenantID, taxonomyID)
}

// ListKey builds the cache key for a list query. Parameters are serialized
// deterministically (sorted key=value pairs) and hashed so that equivalent
// queries share one entry regardless of parameter ordering.
func ListKey(tenantID uuid.UUID, params map[string]string) string {
	pairs := make([]string, 0, len(params))
	for k, v := range params {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)

	sum := sha256.Sum256([]byte(strings.Join(pairs, "&")))
	return fmt.Sprintf("%s:%s:list:%s", keyPrefix, tenantID, hex.EncodeToString(sum[:16]))
}

// TaxonomyPattern matches every tree and detail key for one taxonomy.
func TaxonomyPattern(tenantID, taxonomyID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:*:%s*", keyPrefix, tenantID, taxonomyID)
}

// ListPattern matches every list key for one tenant.
func ListPattern(tenantID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:list:*", keyPrefix, tenantID)
}
