package shared

import "fmt"

// ProductLockKey builds redis keys for the per-product costing section.
func ProductLockKey(productID string) string {
	return fmt.Sprintf("inventory:product:%s:lock", productID)
}

// IdempotencyKey namespaces request keys per module.
func IdempotencyKey(module, key string) string {
	return fmt.Sprintf("idempotency:%s:%s", module, key)
}
