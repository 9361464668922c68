package capture

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gsindri/kaupa-skil-sub003/pkg/api"
)

// DefaultGracePeriod bounds how long a session waits for a network-derived
// price before falling back to one DOM extraction attempt.
const DefaultGracePeriod = 800 * time.Millisecond

// SessionState is the capture session lifecycle.
type SessionState int

const (
	StateIdle SessionState = iota
	StateAwaiting
	StateSent
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaiting:
		return "awaiting"
	case StateSent:
		return "sent"
	default:
		return "unknown"
	}
}

// DOMExtractor runs the DOM fallback. It may return nil when the page
// yields nothing; that nil is still reported.
type DOMExtractor func() *api.NormalizedPriceObservation

// ReportFunc receives the session's single result. Called at most once.
type ReportFunc func(*api.NormalizedPriceObservation)

// SessionConfig wires one capture session.
type SessionConfig struct {
	URL    string
	Grace  time.Duration // zero means DefaultGracePeriod
	DOM    DOMExtractor
	Report ReportFunc
	Logger zerolog.Logger
}

// Session is the orchestration state machine for a single capture attempt.
// Network-derived prices win over DOM-derived ones: BeginCapture replays
// any bodies observed so far, every later body arrival re-attempts
// extraction, and only when the grace timer elapses without a network hit
// does the DOM fallback run. StateSent is terminal and guarantees at most
// one report.
//
// All state lives on the session itself; create one per capture request
// and drop it once sent.
type Session struct {
	mu     sync.Mutex
	state  SessionState
	bodies [][]byte
	timer  *time.Timer
	cfg    SessionConfig
}

// NewSession creates an idle session.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Grace <= 0 {
		cfg.Grace = DefaultGracePeriod
	}
	return &Session{cfg: cfg}
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ObserveBody records an intercepted network body. Bodies may arrive
// before BeginCapture; they are kept and replayed then. While awaiting,
// each arrival re-attempts network extraction.
func (s *Session) ObserveBody(body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSent {
		return
	}
	s.bodies = append(s.bodies, body)
	if s.state == StateAwaiting {
		s.tryNetworkLocked()
	}
}

// BeginCapture starts the session: an immediate network attempt over the
// observed bodies, then the grace timer arming the DOM fallback. Calling
// it twice is a no-op.
func (s *Session) BeginCapture() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return
	}
	s.state = StateAwaiting
	if s.tryNetworkLocked() {
		return
	}
	s.timer = time.AfterFunc(s.cfg.Grace, s.onGraceElapsed)
}

func (s *Session) tryNetworkLocked() bool {
	for _, body := range s.bodies {
		np := ExtractNetworkPrice(body)
		if np == nil {
			continue
		}
		obs := s.networkObservation(np)
		s.sendLocked(&obs)
		return true
	}
	return false
}

func (s *Session) networkObservation(np *NetworkPrice) api.NormalizedPriceObservation {
	// Native product APIs carry exact decimals; no text parsing needed.
	return api.NormalizedPriceObservation{
		URL:          s.cfg.URL,
		Source:       api.SourceNetwork,
		PriceDisplay: np.Price,
		Currency:     strings.ToUpper(strings.TrimSpace(np.Currency)),
		VATFlag:      api.VATUnknown,
		CapturedAt:   time.Now().UTC(),
	}
}

func (s *Session) onGraceElapsed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAwaiting {
		return
	}
	var obs *api.NormalizedPriceObservation
	if s.cfg.DOM != nil {
		obs = s.cfg.DOM()
	}
	if obs == nil {
		s.cfg.Logger.Debug().Str("url", s.cfg.URL).Msg("DOM fallback produced no observation")
	}
	s.sendLocked(obs)
}

func (s *Session) sendLocked(obs *api.NormalizedPriceObservation) {
	s.state = StateSent
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.bodies = nil
	if s.cfg.Report != nil {
		s.cfg.Report(obs)
	}
}
