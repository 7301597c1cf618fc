package source

import (
	"time"

	"github.com/MrSnakeDoc/lookout/internal/domain"
)

// View is a read-only snapshot for consumers. It never carries the password
// or the credentialed address.
type View struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Location       string            `json:"location"`
	Protocol       string            `json:"protocol"`
	Host           string            `json:"host"`
	Port           int               `json:"port"`
	Path           string            `json:"path"`
	Username       string            `json:"username,omitempty"`
	HasPassword    bool              `json:"has_password"`
	Resolution     domain.Resolution `json:"resolution"`
	ConnectTimeout int               `json:"connect_timeout"`
	Address        string            `json:"address"`
	State          domain.State      `json:"state"`
	LastError      string            `json:"last_error,omitempty"`
}

func (r *Record) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()

	return View{
		ID:             r.id,
		Name:           r.cfg.Name,
		Location:       r.cfg.Location,
		Protocol:       r.cfg.Protocol,
		Host:           r.cfg.Host,
		Port:           r.cfg.Port,
		Path:           r.cfg.Path,
		Username:       r.cfg.Username,
		HasPassword:    r.cfg.Password != "",
		Resolution:     r.cfg.Resolution,
		ConnectTimeout: int(r.cfg.ConnectTimeout / time.Second),
		Address:        r.addressLocked(false),
		State:          r.state,
		LastError:      r.lastError,
	}
}
