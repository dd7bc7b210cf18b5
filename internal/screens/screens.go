// Package screens holds the state of the portal's three screens. Each screen
// owns its own state; nothing is shared between screens or sessions.
package screens

import (
	"MedsetuPortal/internal/entities"
	"context"
	"errors"
)

type Mapper interface {
	Map(ctx context.Context, code string) ([]entities.MappedDiagnosis, error)
}

type DoctorLister interface {
	Doctors(ctx context.Context) ([]entities.Doctor, error)
}

type PatientLister interface {
	Patients(ctx context.Context) ([]entities.Patient, error)
}

// API is the subset of the MedSetu client the screens need.
type API interface {
	Mapper
	DoctorLister
	PatientLister
}

const (
	MsgEmptyCode       = "Please enter a medical code to translate."
	MsgMapUnavailable  = "Unable to reach the translation service."
	MsgNoValidMapping  = "No valid mapping was returned from server"
	MsgDirectoryFailed = "Failed to fetch initial data. Please ensure the backend server is running and accessible."
	MsgDoctorsFailed   = "Failed to fetch doctor data."
)

var (
	ErrEmptyCode       = errors.New(MsgEmptyCode)
	ErrPatientNotFound = errors.New("patient not found")
	ErrNotLoaded       = errors.New("patient directory is not loaded")
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseSuccess
	PhaseEmpty
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseSuccess:
		return "success"
	case PhaseEmpty:
		return "empty"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
