package screens

import (
	"MedsetuPortal/internal/entities"
	"MedsetuPortal/internal/events"
	"context"
	"errors"
	"sync"
)

var errTransport = errors.New("connection refused")

type fakeAPI struct {
	mu sync.Mutex

	doctors     []entities.Doctor
	doctorsErr  error
	patients    []entities.Patient
	patientsErr error
	mappings    map[string][]entities.MappedDiagnosis
	mapErr      error

	// gates block Map for a code until the channel is closed.
	gates map[string]chan struct{}
	// listGate, when set, blocks Doctors and Patients until closed.
	listGate chan struct{}

	doctorCalls  int
	patientCalls int
	mapCalls     []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		mappings: make(map[string][]entities.MappedDiagnosis),
		gates:    make(map[string]chan struct{}),
	}
}

func (f *fakeAPI) gate(code string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[code] = ch
	return ch
}

func (f *fakeAPI) gateLists() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listGate = make(chan struct{})
	return f.listGate
}

func (f *fakeAPI) waitLists() {
	f.mu.Lock()
	gate := f.listGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
}

func (f *fakeAPI) Doctors(ctx context.Context) ([]entities.Doctor, error) {
	f.waitLists()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.doctorCalls++
	return f.doctors, f.doctorsErr
}

func (f *fakeAPI) Patients(ctx context.Context) ([]entities.Patient, error) {
	f.waitLists()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patientCalls++
	return f.patients, f.patientsErr
}

func (f *fakeAPI) Map(ctx context.Context, code string) ([]entities.MappedDiagnosis, error) {
	f.mu.Lock()
	f.mapCalls = append(f.mapCalls, code)
	gate := f.gates[code]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mapErr != nil {
		return nil, f.mapErr
	}
	return f.mappings[code], nil
}

func (f *fakeAPI) MapCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.mapCalls...)
}

type recorder struct {
	mu     sync.Mutex
	events []events.LookupEvent
}

func (r *recorder) Publish(e events.LookupEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) Close() error { return nil }

func (r *recorder) Outcomes() map[string]events.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]events.Outcome, len(r.events))
	for _, e := range r.events {
		out[e.Code] = e.Outcome
	}
	return out
}
