package handler

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/HarveyThePooka404/jokes/internal/apperror"
	"github.com/HarveyThePooka404/jokes/internal/auth"
	"github.com/HarveyThePooka404/jokes/internal/model"
	"github.com/HarveyThePooka404/jokes/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

// commentDateLayout renders dates like "Tue Jan 02 2024".
const commentDateLayout = "Mon Jan 02 2006"

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string { return t.Format(commentDateLayout) },
}

// PageHandler serves the server-rendered joke and user pages and the form
// actions behind them.
type PageHandler struct {
	pages    map[string]*template.Template
	jokes    *service.JokeService
	comments *service.CommentService
	likes    *service.LikeService
	users    *service.UserService
	logger   *slog.Logger
}

// NewPageHandler parses every page together with the base layout once, at
// startup. Each page gets its own template set so their "content" blocks do
// not collide.
func NewPageHandler(
	jokes *service.JokeService,
	comments *service.CommentService,
	likes *service.LikeService,
	users *service.UserService,
	logger *slog.Logger,
) (*PageHandler, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{"joke.html", "users.html", "error.html"} {
		tmpl, err := template.New(name).Funcs(templateFuncs).ParseFS(templateFS, "templates/base.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &PageHandler{
		pages:    pages,
		jokes:    jokes,
		comments: comments,
		likes:    likes,
		users:    users,
		logger:   logger,
	}, nil
}

type pageData struct {
	Title string
	User  *model.User
}

type jokePage struct {
	pageData
	Joke    *JokeDetail
	IsOwner bool
}

type usersPage struct {
	pageData
	Users    []model.User
	Error    string
	Username string
}

type errorPage struct {
	pageData
	Message string
}

// HandleRandomJoke: GET /jokes
func (h *PageHandler) HandleRandomJoke(w http.ResponseWriter, r *http.Request) {
	joke, err := h.jokes.Random(r.Context())
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			h.renderError(w, r, http.StatusNotFound, "There are no jokes to display.")
			return
		}
		h.renderServiceError(w, r, "", err)
		return
	}
	h.renderJoke(w, r, joke.ID)
}

// HandleJoke: GET /jokes/{id}
func (h *PageHandler) HandleJoke(w http.ResponseWriter, r *http.Request) {
	h.renderJoke(w, r, chi.URLParam(r, "id"))
}

func (h *PageHandler) renderJoke(w http.ResponseWriter, r *http.Request, id string) {
	user := h.sessionUser(r)
	userID := ""
	if user != nil {
		userID = user.ID
	}

	detail, err := loadJokeDetail(r, h.jokes, h.comments, h.likes, id, userID)
	if err != nil {
		h.renderServiceError(w, r, id, err)
		return
	}

	h.render(w, r, http.StatusOK, "joke.html", jokePage{
		pageData: pageData{Title: detail.Name, User: user},
		Joke:     detail,
		IsOwner:  detail.OwnedBy(userID),
	})
}

// HandleJokeAction: POST /jokes/{id}. The form field _method picks the
// action: delete, like or addComment. Anything else is a 400.
func (h *PageHandler) HandleJokeAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := r.ParseForm(); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "What you're trying to do is not allowed.")
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())

	switch r.PostForm.Get("_method") {
	case "delete":
		if err := h.jokes.Delete(r.Context(), id, userID); err != nil {
			h.renderServiceError(w, r, id, err)
			return
		}
		http.Redirect(w, r, "/jokes", http.StatusSeeOther)

	case "like":
		if _, err := h.likes.Toggle(r.Context(), userID, id); err != nil {
			h.renderServiceError(w, r, id, err)
			return
		}
		http.Redirect(w, r, "/jokes/"+id, http.StatusSeeOther)

	case "addComment":
		username := r.PostForm.Get("username")
		text := r.PostForm.Get("comment")
		if _, err := h.comments.Add(r.Context(), id, username, text); err != nil {
			h.renderServiceError(w, r, id, err)
			return
		}
		http.Redirect(w, r, "/jokes/"+id, http.StatusSeeOther)

	default:
		h.renderError(w, r, http.StatusBadRequest, "What you're trying to do is not allowed.")
	}
}

// HandleUsers: GET /users
func (h *PageHandler) HandleUsers(w http.ResponseWriter, r *http.Request) {
	h.renderUsers(w, r, http.StatusOK, "", "")
}

// HandleRegisterUser: POST /users. Creates the account without signing in,
// then redirects back to the list.
func (h *PageHandler) HandleRegisterUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderUsers(w, r, http.StatusBadRequest, "invalid form", "")
		return
	}
	username := r.PostForm.Get("username")

	if _, err := h.users.Register(r.Context(), username, r.PostForm.Get("password")); err != nil {
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) {
			h.renderServiceError(w, r, "", err)
			return
		}
		status, _ := classify(err)
		msg := appErr.Message
		if errors.Is(err, apperror.ErrConflict) {
			msg = fmt.Sprintf("User with username %s already exists", username)
		}
		h.renderUsers(w, r, status, msg, username)
		return
	}
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}

func (h *PageHandler) renderUsers(w http.ResponseWriter, r *http.Request, status int, errMsg, username string) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.renderServiceError(w, r, "", err)
		return
	}
	h.render(w, r, status, "users.html", usersPage{
		pageData: pageData{Title: "Users", User: h.sessionUser(r)},
		Users:    users,
		Error:    errMsg,
		Username: username,
	})
}

// renderServiceError turns a service error into an error page. jokeID, when
// set, is quoted in the message.
func (h *PageHandler) renderServiceError(w http.ResponseWriter, r *http.Request, jokeID string, err error) {
	status, _ := classify(err)

	var msg string
	switch status {
	case http.StatusNotFound:
		msg = fmt.Sprintf("Huh? What the heck is %s?", jokeID)
	case http.StatusUnauthorized:
		msg = "You need to be logged in to do that."
	case http.StatusForbidden:
		msg = fmt.Sprintf("Sorry, but %s is not your joke.", jokeID)
	case http.StatusBadRequest:
		msg = "What you're trying to do is not allowed."
	default:
		h.logger.Error("page request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		msg = "Something went wrong. Please try again later."
	}
	h.renderError(w, r, status, msg)
}

func (h *PageHandler) renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.render(w, r, status, "error.html", errorPage{
		pageData: pageData{Title: "Oops", User: h.sessionUser(r)},
		Message:  msg,
	})
}

// render executes into a buffer first so a template error can still become
// a clean 500.
func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	var buf bytes.Buffer
	if err := h.pages[page].ExecuteTemplate(&buf, "base", data); err != nil {
		h.logger.Error("failed to render template",
			slog.String("template", page),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// sessionUser loads the signed-in user, or nil for anonymous visitors. A
// session pointing at a deleted user is treated as anonymous.
func (h *PageHandler) sessionUser(r *http.Request) *model.User {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return nil
	}
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			h.logger.Warn("loading session user failed", slog.String("error", err.Error()))
		}
		return nil
	}
	return user
}
