package entities

// MappedDiagnosis is one translation candidate returned by /api/map.
type MappedDiagnosis struct {
	Code string `json:"code"`
	Term string `json:"term"`
}

type MapRequest struct {
	Code string `json:"code"`
}

type MapError struct {
	Error string `json:"error"`
}
