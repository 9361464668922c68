package capture

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsindri/kaupa-skil-sub003/pkg/api"
)

const testGrace = 50 * time.Millisecond

type sessionHarness struct {
	session  *Session
	reports  chan *api.NormalizedPriceObservation
	domCalls *int32
	domObs   *api.NormalizedPriceObservation
}

func newHarness(domObs *api.NormalizedPriceObservation) *sessionHarness {
	h := &sessionHarness{
		reports:  make(chan *api.NormalizedPriceObservation, 4),
		domCalls: new(int32),
		domObs:   domObs,
	}
	h.session = NewSession(SessionConfig{
		URL:   "https://vendor.example/p/1",
		Grace: testGrace,
		DOM: func() *api.NormalizedPriceObservation {
			atomic.AddInt32(h.domCalls, 1)
			return h.domObs
		},
		Report: func(obs *api.NormalizedPriceObservation) { h.reports <- obs },
		Logger: zerolog.Nop(),
	})
	return h
}

func (h *sessionHarness) waitReport(t *testing.T) *api.NormalizedPriceObservation {
	t.Helper()
	select {
	case obs := <-h.reports:
		return obs
	case <-time.After(time.Second):
		t.Fatal("no report within deadline")
		return nil
	}
}

func TestSessionNetworkWinsOverDOM(t *testing.T) {
	h := newHarness(&api.NormalizedPriceObservation{Source: api.SourceDOM})

	h.session.BeginCapture()
	h.session.ObserveBody([]byte(`{"price":12.5,"currency":"eur"}`))

	obs := h.waitReport(t)
	require.NotNil(t, obs)
	assert.Equal(t, api.SourceNetwork, obs.Source)
	assert.Equal(t, 12.5, obs.PriceDisplay)
	assert.Equal(t, "EUR", obs.Currency)
	assert.Equal(t, StateSent, h.session.State())

	// The grace timer must never run the DOM fallback after a send.
	time.Sleep(2 * testGrace)
	assert.Zero(t, atomic.LoadInt32(h.domCalls))
	assert.Empty(t, h.reports)
}

func TestSessionReplaysBodiesObservedBeforeBegin(t *testing.T) {
	h := newHarness(nil)

	h.session.ObserveBody([]byte(`{"note":"no price here"}`))
	h.session.ObserveBody([]byte(`{"unit_price":3.75}`))
	h.session.BeginCapture()

	obs := h.waitReport(t)
	require.NotNil(t, obs)
	assert.Equal(t, 3.75, obs.PriceDisplay)
	assert.Equal(t, api.SourceNetwork, obs.Source)
}

func TestSessionDOMFallbackAfterGrace(t *testing.T) {
	domObs := &api.NormalizedPriceObservation{Source: api.SourceDOM, PriceDisplay: 9.99}
	h := newHarness(domObs)

	h.session.BeginCapture()
	h.session.ObserveBody([]byte(`{"sku":"a"}`)) // no price-like field

	obs := h.waitReport(t)
	require.NotNil(t, obs)
	assert.Equal(t, api.SourceDOM, obs.Source)
	assert.Equal(t, 9.99, obs.PriceDisplay)
	assert.Equal(t, int32(1), atomic.LoadInt32(h.domCalls))
}

func TestSessionReportsNilWhenDOMFindsNothing(t *testing.T) {
	h := newHarness(nil)

	h.session.BeginCapture()

	obs := h.waitReport(t)
	assert.Nil(t, obs)
	assert.Equal(t, StateSent, h.session.State())
}

func TestSessionReportsAtMostOnce(t *testing.T) {
	h := newHarness(&api.NormalizedPriceObservation{Source: api.SourceDOM})

	h.session.BeginCapture()
	h.session.ObserveBody([]byte(`{"price":1.0}`))
	h.waitReport(t)

	// Late bodies and an elapsed grace timer must report nothing more.
	h.session.ObserveBody([]byte(`{"price":2.0}`))
	time.Sleep(2 * testGrace)
	assert.Empty(t, h.reports)
	assert.Zero(t, atomic.LoadInt32(h.domCalls))
}

func TestSessionBeginTwiceIsNoop(t *testing.T) {
	h := newHarness(nil)

	h.session.BeginCapture()
	h.session.BeginCapture()

	h.waitReport(t)
	time.Sleep(2 * testGrace)
	assert.Empty(t, h.reports)
}
