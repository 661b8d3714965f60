package handler

import (
	"log/slog"
	"net/http"

	"github.com/carnet-scolaire/carnet/internal/auth"
	"github.com/carnet-scolaire/carnet/internal/logging"
)

// DashboardPage is the template data for the dashboard view.
type DashboardPage struct {
	BasePage
	CanManageAttendance  bool
	CanManageAssignments bool
	CanManageAgenda      bool
}

// DashboardHandler serves the authenticated landing page.
type DashboardHandler struct {
	sessions *auth.Sessions
	csrf     *auth.CSRF
	log      *slog.Logger
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(s *auth.Sessions, csrf *auth.CSRF, log *slog.Logger) *DashboardHandler {
	return &DashboardHandler{sessions: s, csrf: csrf, log: logging.Or(log)}
}

// Show renders the dashboard, offering only the sections the user's role may manage.
func (h *DashboardHandler) Show(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	base, err := newBasePage(r, h.sessions, h.csrf, auth.DefaultCSRFName)
	if err != nil {
		h.log.Error("issue csrf token", logging.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	base.User = user

	render(w, "dashboard.html", DashboardPage{
		BasePage:             base,
		CanManageAttendance:  auth.CanManageAttendance(user),
		CanManageAssignments: auth.CanManageAssignments(user),
		CanManageAgenda:      auth.CanManageAgenda(user),
	})
}
