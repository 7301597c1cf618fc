package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/lookout/internal/discovery"
	"github.com/MrSnakeDoc/lookout/internal/logger"
	"github.com/MrSnakeDoc/lookout/internal/registry"
)

type Deps struct {
	Logger           logger.Logger
	StartTime        time.Time
	Version          string
	Commit           string
	BuildDate        string
	GoVersion        string
	TimeNow          func() time.Time   // for testing, defaults to time.Now
	AllowedHosts     []string           // Host headers allowed to access the server
	AllowedCIDRS     []string           // IPs allowed to access the API
	TrustProxy       bool               // true if running behind a trusted reverse proxy (e.g., cloudflared)
	RateBurst        int                // snapshot/discovery burst per client
	RatePerMin       int                // snapshot/discovery refill per client
	RequestTimeout   time.Duration      // per-request timeout for command routes
	Registry         *registry.Registry // Source registry
	SnapshotDir      string             // Default directory for snapshot exports
	RetryTrigger     chan struct{}      // Channel to trigger a manual retry of errored sources
	DiscoveryTimeout time.Duration      // mDNS browse window
	Discover         DiscoverFunc       // nil disables discovery
}

// DiscoverFunc browses the network for candidate sources.
type DiscoverFunc func(ctx context.Context, timeout time.Duration, log logger.Logger) ([]discovery.Candidate, error)

// Now returns d.TimeNow() or time.Now() when unset.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
