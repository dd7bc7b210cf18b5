package screens

import (
	"MedsetuPortal/internal/entities"
	"MedsetuPortal/pkg/sl"
	"context"
	"sync"

	"golang.org/x/exp/slog"
)

type DoctorsView struct {
	Phase   Phase
	Doctors []entities.Doctor
	Err     string
}

func (v DoctorsView) Loading() bool {
	return v.Phase == PhaseLoading
}

// DoctorDirectory is the doctor directory screen of one session.
type DoctorDirectory struct {
	api DoctorLister

	mu    sync.Mutex
	seq   uint64
	state DoctorsView
	done  <-chan struct{}
}

func NewDoctorDirectory(api DoctorLister) *DoctorDirectory {
	return &DoctorDirectory{api: api}
}

// Load fetches the directory afresh in the background. The returned channel
// is closed once the fetch settles.
func (d *DoctorDirectory) Load(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	d.mu.Lock()
	d.seq++
	seq := d.seq
	d.state = DoctorsView{Phase: PhaseLoading}
	d.done = done
	d.mu.Unlock()

	go func() {
		defer close(done)
		doctors, err := d.api.Doctors(context.WithoutCancel(ctx))
		d.settle(seq, doctors, err)
	}()

	return done
}

// Pending returns the channel of the load in flight, or nil when there is none.
func (d *DoctorDirectory) Pending() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.Phase != PhaseLoading {
		return nil
	}
	return d.done
}

// Started reports whether a load was ever issued.
func (d *DoctorDirectory) Started() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Phase != PhaseIdle
}

func (d *DoctorDirectory) settle(seq uint64, doctors []entities.Doctor, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if seq != d.seq {
		slog.Debug("discarding stale doctor directory load", slog.Uint64("seq", seq))
		return
	}

	if err != nil {
		slog.Error("failed to load doctor directory", sl.Error(err))
		d.state = DoctorsView{Phase: PhaseFailed, Err: MsgDoctorsFailed}
		return
	}
	d.state = DoctorsView{Phase: PhaseSuccess, Doctors: doctors}
}

func (d *DoctorDirectory) View() DoctorsView {
	d.mu.Lock()
	defer d.mu.Unlock()

	v := d.state
	v.Doctors = append([]entities.Doctor(nil), d.state.Doctors...)
	return v
}
