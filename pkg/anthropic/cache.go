package anthropic

// CachedSystem returns a single system block with a prompt-cache breakpoint
// at the given TTL ("5m" when empty).
func CachedSystem(text, ttl string) []SystemBlock {
	if ttl == "" {
		ttl = "5m"
	}
	return []SystemBlock{{Text: text, CacheControl: &CacheControl{TTL: ttl}}}
}
