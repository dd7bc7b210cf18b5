// Package medsetutest provides an in-process fake of the MedSetu API for tests.
package medsetutest

import (
	"MedsetuPortal/internal/entities"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/gin-gonic/gin"
)

type Upstream struct {
	mu sync.Mutex

	doctors  []entities.Doctor
	patients []entities.Patient
	mappings map[string][]entities.MappedDiagnosis

	// failures maps an API path to the status it should answer with.
	failures map[string]int
	mapError string

	calls    map[string]int
	mapCodes []string

	server *httptest.Server
}

func New() *Upstream {
	gin.SetMode(gin.TestMode)

	u := &Upstream{
		mappings: make(map[string][]entities.MappedDiagnosis),
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}

	r := gin.New()
	r.GET("/api/doctors", u.handleDoctors)
	r.GET("/api/patients", u.handlePatients)
	r.POST("/api/map", u.handleMap)

	u.server = httptest.NewServer(r)
	return u
}

func (u *Upstream) URL() string {
	return u.server.URL
}

func (u *Upstream) Close() {
	u.server.Close()
}

func (u *Upstream) SetDoctors(doctors ...entities.Doctor) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.doctors = doctors
}

func (u *Upstream) SetPatients(patients ...entities.Patient) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.patients = patients
}

func (u *Upstream) SetMapping(code string, candidates ...entities.MappedDiagnosis) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if candidates == nil {
		candidates = []entities.MappedDiagnosis{}
	}
	u.mappings[code] = candidates
}

// Fail makes path answer with status. message is only used for /api/map.
func (u *Upstream) Fail(path string, status int, message string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.failures[path] = status
	if path == "/api/map" {
		u.mapError = message
	}
}

func (u *Upstream) Calls(path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls[path]
}

// MapCodes lists the codes received by /api/map in arrival order.
func (u *Upstream) MapCodes() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.mapCodes...)
}

func (u *Upstream) handleDoctors(c *gin.Context) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls[c.FullPath()]++

	if status, ok := u.failures[c.FullPath()]; ok {
		c.String(status, "upstream failure")
		return
	}
	c.JSON(http.StatusOK, nonNil(u.doctors))
}

func (u *Upstream) handlePatients(c *gin.Context) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls[c.FullPath()]++

	if status, ok := u.failures[c.FullPath()]; ok {
		c.String(status, "upstream failure")
		return
	}
	c.JSON(http.StatusOK, nonNil(u.patients))
}

func (u *Upstream) handleMap(c *gin.Context) {
	var req entities.MapRequest
	bindErr := c.ShouldBindJSON(&req)

	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls[c.FullPath()]++

	if bindErr != nil {
		c.JSON(http.StatusBadRequest, entities.MapError{Error: "invalid request body"})
		return
	}
	u.mapCodes = append(u.mapCodes, req.Code)

	if status, ok := u.failures[c.FullPath()]; ok {
		if u.mapError == "" {
			c.String(status, "")
			return
		}
		c.JSON(status, entities.MapError{Error: u.mapError})
		return
	}

	candidates, ok := u.mappings[req.Code]
	if !ok {
		c.JSON(http.StatusNotFound, entities.MapError{Error: "No mapping found for code " + req.Code})
		return
	}
	c.JSON(http.StatusOK, candidates)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
