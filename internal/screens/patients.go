package screens

import (
	"MedsetuPortal/internal/entities"
	"MedsetuPortal/internal/events"
	"MedsetuPortal/internal/medsetu"
	"MedsetuPortal/pkg/sl"
	"context"
	"fmt"
	"sync"

	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
)

// MappingState is the mapped-diagnosis sub-state of the selected patient.
// PhaseIdle means no lookup was issued.
type MappingState struct {
	Phase   Phase
	Mapping entities.MappedDiagnosis
	Err     string
}

func (m MappingState) Loading() bool  { return m.Phase == PhaseLoading }
func (m MappingState) Failed() bool   { return m.Phase == PhaseFailed }
func (m MappingState) Resolved() bool { return m.Phase == PhaseSuccess }

type DirectoryView struct {
	Phase    Phase
	Err      string
	Patients []entities.Patient
	Doctors  []entities.Doctor

	Selected  *entities.Patient
	Attending *entities.Doctor
	Mapping   MappingState
}

func (v DirectoryView) Loading() bool {
	return v.Phase == PhaseLoading
}

func (v DirectoryView) Failed() bool {
	return v.Phase == PhaseFailed
}

func (v DirectoryView) IsSelected(id entities.ID) bool {
	return v.Selected != nil && v.Selected.ID == id
}

// Directory is the patient directory screen of one session.
type Directory struct {
	api     API
	events  events.Publisher
	session string

	mu       sync.Mutex
	phase    Phase
	err      string
	patients []entities.Patient
	doctors  []entities.Doctor
	selected *entities.Patient
	mapping  MappingState
	seq      uint64
	loading  <-chan struct{}
}

func NewDirectory(api API, pub events.Publisher, session string) *Directory {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Directory{
		api:     api,
		events:  pub,
		session: session,
	}
}

// FetchDirectory loads patients and doctors concurrently. It returns only
// after both requests settle; the first failure wins.
func FetchDirectory(ctx context.Context, api API) ([]entities.Patient, []entities.Doctor, error) {
	var (
		patients []entities.Patient
		doctors  []entities.Doctor
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := api.Patients(gctx)
		if err != nil {
			return fmt.Errorf("failed to fetch patients: %w", err)
		}
		patients = p
		return nil
	})
	g.Go(func() error {
		d, err := api.Doctors(gctx)
		if err != nil {
			return fmt.Errorf("failed to fetch doctors: %w", err)
		}
		doctors = d
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return patients, doctors, nil
}

// Load replaces both lists in the background and clears the selection. On
// failure neither list is kept and the screen shows a single aggregate
// error. The returned channel is closed once both fetches settle.
func (d *Directory) Load(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	d.mu.Lock()
	d.phase = PhaseLoading
	d.err = ""
	d.seq++
	seq := d.seq
	d.selected = nil
	d.mapping = MappingState{}
	d.loading = done
	d.mu.Unlock()

	go func() {
		defer close(done)
		patients, doctors, err := FetchDirectory(context.WithoutCancel(ctx), d.api)
		d.settleLoad(seq, patients, doctors, err)
	}()

	return done
}

func (d *Directory) settleLoad(seq uint64, patients []entities.Patient, doctors []entities.Doctor, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if seq != d.seq {
		slog.Debug("discarding stale patient directory load", slog.Uint64("seq", seq))
		return
	}

	if err != nil {
		slog.Error("failed to load patient directory", sl.Error(err))
		d.phase = PhaseFailed
		d.err = MsgDirectoryFailed
		d.patients = nil
		d.doctors = nil
		return
	}

	d.phase = PhaseSuccess
	d.patients = patients
	d.doctors = doctors
}

// Pending returns the channel of the load in flight, or nil when there is none.
func (d *Directory) Pending() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.phase != PhaseLoading {
		return nil
	}
	return d.loading
}

// Started reports whether a load was ever issued.
func (d *Directory) Started() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase != PhaseIdle
}

// Loaded reports whether both lists are available for selection.
func (d *Directory) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase == PhaseSuccess
}

// SelectedID returns the id of the selected patient, if any.
func (d *Directory) SelectedID() (entities.ID, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.selected == nil {
		return "", false
	}
	return d.selected.ID, true
}

// Select makes id the selected patient and, when the patient has a diagnosis
// code, starts translating it. Any earlier lookup still in flight is
// discarded when it settles. The returned channel is closed once the lookup
// settles, or immediately when no lookup is needed.
func (d *Directory) Select(ctx context.Context, id entities.ID) (<-chan struct{}, error) {
	d.mu.Lock()

	if d.phase != PhaseSuccess {
		d.mu.Unlock()
		return nil, ErrNotLoaded
	}

	patient, ok := entities.FindPatient(d.patients, id)
	if !ok {
		d.mu.Unlock()
		return nil, ErrPatientNotFound
	}

	d.seq++
	seq := d.seq
	d.selected = &patient
	d.mapping = MappingState{}

	code := patient.Visit.Diagnosis.Code
	if code == "" {
		d.mu.Unlock()
		return closedChan(), nil
	}

	d.mapping.Phase = PhaseLoading
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		results, err := d.api.Map(context.WithoutCancel(ctx), code)
		d.settle(seq, code, results, err)
	}()

	return done, nil
}

func (d *Directory) settle(seq uint64, code string, results []entities.MappedDiagnosis, err error) {
	event := events.LookupEvent{
		Session:    d.session,
		Screen:     events.ScreenPatients,
		Code:       code,
		Candidates: len(results),
	}

	d.mu.Lock()
	switch {
	case seq != d.seq:
		event.Outcome = events.OutcomeDiscarded
		slog.Debug("discarding stale diagnosis mapping", slog.String("code", code), slog.Uint64("seq", seq))
	case err != nil:
		event.Outcome = events.OutcomeFailed
		d.mapping = MappingState{Phase: PhaseFailed, Err: medsetu.Message(err, MsgMapUnavailable)}
		slog.Warn("diagnosis mapping failed", slog.String("code", code), sl.Error(err))
	case len(results) == 0:
		event.Outcome = events.OutcomeEmpty
		d.mapping = MappingState{Phase: PhaseFailed, Err: MsgNoValidMapping}
	default:
		event.Outcome = events.OutcomeSuccess
		d.mapping = MappingState{Phase: PhaseSuccess, Mapping: results[0]}
	}
	d.mu.Unlock()

	d.events.Publish(event)
}

func (d *Directory) View() DirectoryView {
	d.mu.Lock()
	defer d.mu.Unlock()

	v := DirectoryView{
		Phase:    d.phase,
		Err:      d.err,
		Patients: append([]entities.Patient(nil), d.patients...),
		Doctors:  append([]entities.Doctor(nil), d.doctors...),
		Mapping:  d.mapping,
	}

	if d.selected != nil {
		selected := *d.selected
		v.Selected = &selected
		if doc, ok := entities.FindDoctor(d.doctors, selected.DoctorID); ok {
			v.Attending = &doc
		}
	}

	return v
}
