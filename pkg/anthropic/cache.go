package anthropic

// BuildCachedSystemBlocks wraps a static system prompt in a single block
// with an ephemeral cache breakpoint, so repeated pair comparisons within a
// scan reuse the cached prefix.
func BuildCachedSystemBlocks(text, ttl string) []SystemBlock {
	if ttl == "" {
		ttl = "5m"
	}
	return []SystemBlock{{Text: text, CacheControl: &CacheControl{TTL: ttl}}}
}
