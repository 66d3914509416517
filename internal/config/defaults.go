package config

import "time"

const (
	// Matching
	DefaultRequeueDelay     = 500 * time.Millisecond
	DefaultMaxMessageLength = 2000
	DefaultChatRate         = 5.0
	DefaultChatBurst        = 10

	// Sessions
	DefaultJWTTTL = 72 * time.Hour
	JWTIssuer     = "dilse-signaling"

	// Ban
	BanThresholdWeight = 300
	BanMinReporters    = 3
	BanWindow          = 24 * time.Hour
	BanLevel1Duration  = 30 * time.Minute
	BanLevel2Duration  = 6 * time.Hour
	BanLevel3Duration  = 24 * time.Hour

	// Emotion wall
	DefaultPostsLimit = 20
	MaxPostsLimit     = 100
	MaxPostLength     = 1000
)

// ComplaintWeights maps a complaint severity to the weight it adds toward a ban.
var ComplaintWeights = map[string]int{
	"low":      5,
	"medium":   50,
	"critical": 250,
}

// BanDuration returns how long a ban of the given escalation level lasts.
func BanDuration(level int) time.Duration {
	switch {
	case level <= 1:
		return BanLevel1Duration
	case level == 2:
		return BanLevel2Duration
	default:
		return BanLevel3Duration
	}
}
