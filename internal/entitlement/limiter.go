package entitlement

// WithinLimit reports whether consuming delta more units stays inside
// the limit. Unlimited always passes. This is pure arithmetic: callers
// own the atomicity of the subsequent increment (see UsageStore).
func WithinLimit(limit, currentUsage, delta int64) bool {
	if limit == Unlimited {
		return true
	}
	return currentUsage+delta <= limit
}
