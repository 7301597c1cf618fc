package source

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/lookout/internal/credential"
	"github.com/MrSnakeDoc/lookout/internal/domain"
	"github.com/MrSnakeDoc/lookout/internal/logger"
)

// ErrMalformed is wrapped by FromPersisted when an entry cannot be restored.
var ErrMalformed = errors.New("malformed source entry")

// Serialize returns the at-rest form. The password is encoded.
func (r *Record) Serialize() domain.PersistedSource {
	r.mu.Lock()
	defer r.mu.Unlock()

	return domain.PersistedSource{
		ID:             r.id,
		Name:           r.cfg.Name,
		Protocol:       r.cfg.Protocol,
		Username:       r.cfg.Username,
		Password:       credential.Encode(r.cfg.Password),
		Host:           r.cfg.Host,
		Port:           r.cfg.Port,
		Path:           r.cfg.Path,
		Resolution:     r.cfg.Resolution,
		ConnectTimeout: int(r.cfg.ConnectTimeout / time.Second),
		Location:       r.cfg.Location,
		State:          r.state,
		LastError:      r.lastError,
	}
}

// FromPersisted restores a record.
//
// A password that passes credential.LooksEncoded is decoded, anything else is
// taken verbatim as a plaintext value written before encoding existed. A
// record persisted as active comes back STOPPED with WasActive set, since no
// worker survives a restart. defaultTimeout fills a missing connect timeout.
func FromPersisted(p domain.PersistedSource, defaultTimeout time.Duration, newWorker WorkerFactory, log logger.Logger) (*Record, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrMalformed)
	}

	state, err := domain.ParseState(string(p.State))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, p.ID, err)
	}

	password := p.Password
	if credential.LooksEncoded(password) {
		password = credential.Decode(password)
	}

	cfg := domain.SourceConfig{
		Name:           p.Name,
		Location:       p.Location,
		Protocol:       p.Protocol,
		Host:           p.Host,
		Port:           p.Port,
		Path:           p.Path,
		Username:       p.Username,
		Password:       password,
		Resolution:     p.Resolution,
		ConnectTimeout: time.Duration(p.ConnectTimeout) * time.Second,
	}.WithDefaults(defaultTimeout)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, p.ID, err)
	}

	r := New(p.ID, cfg, newWorker, log)
	switch {
	case state.Active():
		r.wasActive = true
	case state == domain.StateError:
		r.state = domain.StateError
		r.lastError = p.LastError
	}
	return r, nil
}
