package handlers

import (
	"MedsetuPortal/internal/entities"
	"MedsetuPortal/internal/screens"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	screenTranslator = "translator"
	screenPatients   = "patients"
	screenDoctors    = "doctors"

	msgPatientNotFound = "Patient not found."
	msgPageNotFound    = "Page not found."

	// pollParam marks a refresh of a loading page. It waits for the load in
	// flight instead of starting a new one.
	pollParam       = "wait"
	patientsPollURL = "/patients?" + pollParam + "=1"
	doctorsPollURL  = "/doctors?" + pollParam + "=1"
)

type Handler struct {
	renderWait time.Duration
}

func New(renderWait time.Duration) Handler {
	return Handler{
		renderWait: renderWait,
	}
}

// await blocks until done is closed or the render budget runs out, so fast
// lookups are rendered directly and slow ones render as in progress.
func (h Handler) await(ctx context.Context, done <-chan struct{}) {
	if done == nil {
		return
	}

	timer := time.NewTimer(h.renderWait)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
	case <-ctx.Done():
	}
}

func polling(ctx *gin.Context) bool {
	return ctx.Query(pollParam) != ""
}

// Translator renders without creating a session, so a first visit holds no state.
func (h Handler) Translator() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var state screens.TranslatorState
		if s, ok := existingSession(ctx); ok {
			state = s.Translator.State()
		}

		ctx.HTML(http.StatusOK, "translator.html", gin.H{
			"Title":      "Code Translator",
			"Active":     screenTranslator,
			"Refresh":    state.Submitting(),
			"RefreshURL": "/",
			"State":      state,
		})
	}
}

func (h Handler) Translate() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tr := currentSession(ctx).Translator

		done, err := tr.Submit(ctx.Request.Context(), ctx.PostForm("code"))
		if err == nil {
			h.await(ctx.Request.Context(), done)
		}

		ctx.Redirect(http.StatusSeeOther, "/")
	}
}

// Patients loads both lists afresh and clears the selection. A poll only
// waits for the load already running.
func (h Handler) Patients() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		dir := currentSession(ctx).Directory

		var done <-chan struct{}
		if polling(ctx) && dir.Started() {
			done = dir.Pending()
		} else {
			done = dir.Load(ctx.Request.Context())
		}
		h.await(ctx.Request.Context(), done)

		h.renderPatients(ctx, dir.View(), patientsPollURL)
	}
}

// Patient shows one patient. It only issues a lookup when the selection
// changes, so refreshing the page while a lookup runs does not restart it.
func (h Handler) Patient() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		dir := currentSession(ctx).Directory
		id := entities.ID(ctx.Param("id"))
		self := "/patients/" + id.String()

		if !h.ensureLoaded(ctx, dir, self) {
			return
		}

		if current, ok := dir.SelectedID(); !ok || current != id {
			done, err := dir.Select(ctx.Request.Context(), id)
			if err != nil {
				h.selectFailed(ctx, err, dir.View(), self)
				return
			}
			h.await(ctx.Request.Context(), done)
		}

		h.renderPatients(ctx, dir.View(), self)
	}
}

// SelectPatient always reissues the lookup, which is how a user retries.
func (h Handler) SelectPatient() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		dir := currentSession(ctx).Directory
		id := entities.ID(ctx.Param("id"))
		self := "/patients/" + id.String()

		if !h.ensureLoaded(ctx, dir, self) {
			return
		}

		done, err := dir.Select(ctx.Request.Context(), id)
		if err != nil {
			h.selectFailed(ctx, err, dir.View(), self)
			return
		}
		h.await(ctx.Request.Context(), done)

		ctx.Redirect(http.StatusSeeOther, self)
	}
}

// ensureLoaded waits for both directory lists, starting a load unless one is
// already running. When the lists are still loading or failed to load it
// renders that state and returns false.
func (h Handler) ensureLoaded(ctx *gin.Context, dir *screens.Directory, refreshURL string) bool {
	if dir.Loaded() {
		return true
	}

	done := dir.Pending()
	if done == nil {
		done = dir.Load(ctx.Request.Context())
	}
	h.await(ctx.Request.Context(), done)

	if dir.Loaded() {
		return true
	}
	h.renderPatients(ctx, dir.View(), refreshURL)
	return false
}

func (h Handler) selectFailed(ctx *gin.Context, err error, view screens.DirectoryView, refreshURL string) {
	if errors.Is(err, screens.ErrPatientNotFound) {
		h.NotFoundPage(ctx, screenPatients, msgPatientNotFound)
		return
	}
	h.renderPatients(ctx, view, refreshURL)
}

func (h Handler) renderPatients(ctx *gin.Context, view screens.DirectoryView, refreshURL string) {
	ctx.HTML(http.StatusOK, "patients.html", gin.H{
		"Title":      "Patient Records",
		"Active":     screenPatients,
		"Refresh":    view.Loading() || (view.Selected != nil && view.Mapping.Loading()),
		"RefreshURL": refreshURL,
		"View":       view,
	})
}

// Doctors fetches the directory afresh on every visit. A poll only waits for
// the fetch already running.
func (h Handler) Doctors() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		dir := currentSession(ctx).Doctors

		var done <-chan struct{}
		if polling(ctx) && dir.Started() {
			done = dir.Pending()
		} else {
			done = dir.Load(ctx.Request.Context())
		}
		h.await(ctx.Request.Context(), done)

		view := dir.View()
		ctx.HTML(http.StatusOK, "doctors.html", gin.H{
			"Title":      "Doctor Directory",
			"Active":     screenDoctors,
			"Refresh":    view.Loading(),
			"RefreshURL": doctorsPollURL,
			"View":       view,
		})
	}
}

func (h Handler) NotFound() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		h.NotFoundPage(ctx, "", msgPageNotFound)
	}
}

func (h Handler) NotFoundPage(ctx *gin.Context, active, message string) {
	ctx.HTML(http.StatusNotFound, "not_found.html", gin.H{
		"Title":   "Not Found",
		"Active":  active,
		"Message": message,
	})
}

func (h Handler) Health() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
