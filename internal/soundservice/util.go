package soundservice

import "fmt"

// storePointerTag derives a stable-for-the-process-lifetime string from
// a pack store's identity, used only to keep triplet suffixes distinct
// across multiple open stores — never persisted or compared across
// process restarts.
func storePointerTag(v any) string {
	return fmt.Sprintf("%p", v)
}
