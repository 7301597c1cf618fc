package redis

const (
	// KeyPrefix namespaces everything the service writes.
	KeyPrefix = "lookout:"
	// DefaultHashKey is the hash holding the settings map.
	DefaultHashKey = KeyPrefix + "settings"
)

// HashKey returns the settings hash for a profile. The empty profile maps to
// DefaultHashKey so a single deployment needs no extra configuration.
func HashKey(profile string) string {
	if profile == "" {
		return DefaultHashKey
	}
	return DefaultHashKey + ":" + profile
}
