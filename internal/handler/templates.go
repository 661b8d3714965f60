package handler

import (
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/carnet-scolaire/carnet/internal/auth"
	"github.com/carnet-scolaire/carnet/internal/store"
	"github.com/carnet-scolaire/carnet/web"
)

// BasePage carries layout-level data available to every template.
type BasePage struct {
	User      *store.User // nil for unauthenticated pages
	Flash     string
	CSRFToken string // token for the logout form, or the page's own form
}

// pageCache maps a page file name (e.g. "login.html") to a compiled template
// set containing base.html + partials + that one page file. Each page gets its
// own set so {{define "content"}} blocks don't collide.
var pageCache map[string]*template.Template

var funcs = template.FuncMap{
	"roleLabel": roleLabel,
}

func init() {
	partials, err := fs.Glob(web.TemplateFS, "templates/partials/*.html")
	if err != nil {
		panic("glob partials: " + err.Error())
	}

	pageCache = make(map[string]*template.Template)
	err = fs.WalkDir(web.TemplateFS, "templates/pages", func(p string, d fs.DirEntry, e error) error {
		if e != nil || d.IsDir() || !strings.HasSuffix(p, ".html") {
			return e
		}

		files := make([]string, 0, 2+len(partials))
		files = append(files, "templates/base.html")
		files = append(files, partials...)
		files = append(files, p)

		t, err := template.New("").Funcs(funcs).ParseFS(web.TemplateFS, files...)
		if err != nil {
			return fmt.Errorf("parse %s: %w", p, err)
		}
		pageCache[filepath.Base(p)] = t
		return nil
	})
	if err != nil {
		panic("build page cache: " + err.Error())
	}
}

// render executes a full-page template (base layout + named page).
func render(w http.ResponseWriter, tmpl string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	t, ok := pageCache[tmpl]
	if !ok {
		http.Error(w, "template not found: "+tmpl, http.StatusInternalServerError)
		return
	}
	if err := t.ExecuteTemplate(w, "base", data); err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

// newBasePage fills the layout data. The flash is consumed here, so call it
// once per rendered page.
func newBasePage(r *http.Request, s *auth.Sessions, csrf *auth.CSRF, tokenName string) (BasePage, error) {
	ctx := r.Context()
	tok, err := csrf.Token(ctx, tokenName)
	if err != nil {
		return BasePage{}, err
	}
	return BasePage{
		User:      s.CurrentUser(ctx),
		Flash:     s.PopFlash(ctx),
		CSRFToken: tok,
	}, nil
}

func roleLabel(r store.Role) string {
	switch r {
	case store.RoleAdmin:
		return "Administration"
	case store.RoleTeacher:
		return "Teacher"
	case store.RoleStudent:
		return "Student"
	case store.RoleParent:
		return "Parent"
	case store.RoleSchoolStaff:
		return "School staff"
	}
	return r.String()
}
