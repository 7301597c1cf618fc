// Package discovery browses the local network for RTSP sources announced over
// mDNS and turns them into candidate source configurations.
package discovery

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/MrSnakeDoc/lookout/internal/domain"
	"github.com/MrSnakeDoc/lookout/internal/logger"
)

const (
	Service = "_rtsp._tcp"
	Domain  = "local."

	DefaultTimeout = 3 * time.Second
)

// Candidate is a discovered source, ready to be added after the user
// supplies credentials.
type Candidate struct {
	Instance string
	Config   domain.SourceConfig
}

// Discover browses for Service until timeout and returns the unique
// candidates found, sorted by instance name.
func Discover(ctx context.Context, timeout time.Duration, log logger.Logger) ([]Candidate, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("init mdns resolver: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	results := make(chan []Candidate, 1)
	go func() {
		results <- collect(ctx, entries, log)
	}()

	if err := resolver.Browse(ctx, Service, Domain, entries); err != nil {
		cancel()
		<-results
		return nil, fmt.Errorf("browse %s: %w", Service, err)
	}

	<-ctx.Done()
	found := <-results
	log.Info("mdns discovery finished", logger.Int("found", len(found)))
	return found, nil
}

func collect(ctx context.Context, entries <-chan *zeroconf.ServiceEntry, log logger.Logger) []Candidate {
	seen := make(map[string]Candidate)
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return sorted(seen)
			}
			c, ok := candidateFrom(entry)
			if !ok {
				continue
			}
			key := net.JoinHostPort(c.Config.Host, strconv.Itoa(c.Config.Port))
			if _, dup := seen[key]; !dup {
				log.Debug("discovered source", logger.String("instance", c.Instance), logger.String("host", key))
				seen[key] = c
			}
		case <-ctx.Done():
			return sorted(seen)
		}
	}
}

func sorted(seen map[string]Candidate) []Candidate {
	out := make([]Candidate, 0, len(seen))
	for _, c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instance < out[j].Instance })
	return out
}

// candidateFrom maps an mDNS entry to a source config. The host is the first
// IPv4 address, falling back to the advertised host name.
func candidateFrom(entry *zeroconf.ServiceEntry) (Candidate, bool) {
	if entry == nil {
		return Candidate{}, false
	}

	host := strings.TrimSuffix(entry.HostName, ".")
	if len(entry.AddrIPv4) > 0 {
		host = entry.AddrIPv4[0].String()
	}
	if host == "" || entry.Port <= 0 {
		return Candidate{}, false
	}

	cfg := domain.SourceConfig{
		Name:     entry.Instance,
		Protocol: domain.DefaultProtocol,
		Host:     host,
		Port:     entry.Port,
		Path:     txtValue(entry.Text, "path"),
	}.WithDefaults(0)

	return Candidate{Instance: entry.Instance, Config: cfg}, true
}

func txtValue(txt []string, key string) string {
	prefix := key + "="
	for _, kv := range txt {
		if strings.HasPrefix(kv, prefix) {
			return strings.TrimPrefix(kv, prefix)
		}
	}
	return ""
}
