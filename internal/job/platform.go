package job

// Platform identifies the streaming service a poster was discovered on.
// It doubles as the partition key for deterministic job IDs.
type Platform string

const (
	PlatformNetflix    Platform = "NETFLIX"
	PlatformPrimeVideo Platform = "PRIME_VIDEO"
	PlatformDisneyPlus Platform = "DISNEY_PLUS"
	PlatformHulu       Platform = "HULU"
	PlatformHBOMax     Platform = "HBO_MAX"
	PlatformAppleTV    Platform = "APPLE_TV"
)

var platforms = map[Platform]struct{}{
	PlatformNetflix:    {},
	PlatformPrimeVideo: {},
	PlatformDisneyPlus: {},
	PlatformHulu:       {},
	PlatformHBOMax:     {},
	PlatformAppleTV:    {},
}

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	_, ok := platforms[p]
	return ok
}
