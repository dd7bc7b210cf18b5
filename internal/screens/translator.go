package screens

import (
	"MedsetuPortal/internal/entities"
	"MedsetuPortal/internal/events"
	"MedsetuPortal/internal/medsetu"
	"MedsetuPortal/pkg/sl"
	"context"
	"strings"
	"sync"

	"golang.org/x/exp/slog"
)

type TranslatorState struct {
	Phase   Phase
	Query   string
	Results []entities.MappedDiagnosis
	Err     string
}

func (s TranslatorState) Submitting() bool {
	return s.Phase == PhaseLoading
}

func (s TranslatorState) Failed() bool {
	return s.Phase == PhaseFailed
}

// HasResults is false for an empty result, which is not an error either.
// Results of the last translation stay visible next to an empty-code error.
func (s TranslatorState) HasResults() bool {
	return s.Phase != PhaseLoading && len(s.Results) > 0
}

// Numbered reports whether candidates should be labelled "Option N".
func (s TranslatorState) Numbered() bool {
	return len(s.Results) > 1
}

// Translator is the code translator screen of one session.
type Translator struct {
	api     Mapper
	events  events.Publisher
	session string

	mu    sync.Mutex
	seq   uint64
	state TranslatorState
}

func NewTranslator(api Mapper, pub events.Publisher, session string) *Translator {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Translator{
		api:     api,
		events:  pub,
		session: session,
	}
}

// Submit starts a translation of code. The returned channel is closed once the
// request settles, whether or not its response was kept. An empty code is
// rejected with ErrEmptyCode before any request is made.
func (t *Translator) Submit(ctx context.Context, code string) (<-chan struct{}, error) {
	code = strings.TrimSpace(code)

	t.mu.Lock()
	t.seq++
	seq := t.seq

	// Query and Results are left as they were.
	if code == "" {
		t.state.Phase = PhaseFailed
		t.state.Err = MsgEmptyCode
		t.mu.Unlock()
		return closedChan(), ErrEmptyCode
	}

	t.state = TranslatorState{Phase: PhaseLoading, Query: code}
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		results, err := t.api.Map(context.WithoutCancel(ctx), code)
		t.settle(seq, code, results, err)
	}()

	return done, nil
}

func (t *Translator) settle(seq uint64, code string, results []entities.MappedDiagnosis, err error) {
	event := events.LookupEvent{
		Session:    t.session,
		Screen:     events.ScreenTranslator,
		Code:       code,
		Candidates: len(results),
	}

	t.mu.Lock()
	switch {
	case seq != t.seq:
		event.Outcome = events.OutcomeDiscarded
		slog.Debug("discarding stale translation", slog.String("code", code), slog.Uint64("seq", seq))
	case err != nil:
		event.Outcome = events.OutcomeFailed
		t.state.Phase = PhaseFailed
		t.state.Err = medsetu.Message(err, MsgMapUnavailable)
		slog.Warn("translation failed", slog.String("code", code), sl.Error(err))
	case len(results) == 0:
		event.Outcome = events.OutcomeEmpty
		t.state.Phase = PhaseEmpty
	default:
		event.Outcome = events.OutcomeSuccess
		t.state.Phase = PhaseSuccess
		t.state.Results = results
	}
	t.mu.Unlock()

	t.events.Publish(event)
}

func (t *Translator) State() TranslatorState {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.state
	s.Results = append([]entities.MappedDiagnosis(nil), t.state.Results...)
	return s
}
