package tillfront

// Hooks are lightweight callbacks for high-signal cache events.
// Implementations MUST be cheap and non-blocking; the cache calls them on
// hot paths. Wrap with hooks/async to decouple slow sinks.
type Hooks interface {
	// An entry was deleted by the cache on read.
	// reason ∈ {"corrupt", "expired", "tag_mismatch", "rev_mismatch", "value_decode"}
	SelfHeal(storageKey, reason string)

	// A SetWithRev was skipped because the revision moved under it.
	StaleWriteSkipped(storageKey string)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)

	// RevStore errors (snapshot or bump).
	RevSnapshotError(storageKey string, err error)
	RevBumpError(storageKey string, err error)

	// Both rev bump and delete failed during Invalidate (likely backend outage).
	InvalidateOutage(key string, bumpErr, delErr error)
}

// NopHooks is the default no-op.
type NopHooks struct{}

func (NopHooks) SelfHeal(string, string)               {}
func (NopHooks) StaleWriteSkipped(string)              {}
func (NopHooks) ProviderSetRejected(string)            {}
func (NopHooks) RevSnapshotError(string, error)        {}
func (NopHooks) RevBumpError(string, error)            {}
func (NopHooks) InvalidateOutage(string, error, error) {}
