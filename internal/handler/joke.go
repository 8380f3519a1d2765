package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/HarveyThePooka404/jokes/internal/apperror"
	"github.com/HarveyThePooka404/jokes/internal/auth"
	"github.com/HarveyThePooka404/jokes/internal/model"
	"github.com/HarveyThePooka404/jokes/internal/service"
)

// JokeHandler serves the /api/jokes JSON endpoints.
type JokeHandler struct {
	jokes    *service.JokeService
	comments *service.CommentService
	likes    *service.LikeService
	logger   *slog.Logger
}

func NewJokeHandler(
	jokes *service.JokeService,
	comments *service.CommentService,
	likes *service.LikeService,
	logger *slog.Logger,
) *JokeHandler {
	return &JokeHandler{jokes: jokes, comments: comments, likes: likes, logger: logger}
}

type createJokeRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type addCommentRequest struct {
	Username string `json:"username"`
	Comment  string `json:"comment"`
}

// JokeDetail is a joke with everything its page shows.
type JokeDetail struct {
	model.Joke
	Likes    int64           `json:"likes"`
	Liked    bool            `json:"liked"`
	Comments []model.Comment `json:"comments"`
}

type likeResponse struct {
	Result string `json:"result"`
	Likes  int64  `json:"likes"`
}

// HandleList: GET /api/jokes?limit=&offset=
func (h *JokeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	jokes, err := h.jokes.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, jokes)
}

// HandleCreate: POST /api/jokes. Requires a session.
func (h *JokeHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createJokeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	joke, err := h.jokes.Create(r.Context(), userID, req.Name, req.Content)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("Location", "/api/jokes/"+joke.ID)
	writeJSON(w, http.StatusCreated, joke)
}

// HandleRandom: GET /api/jokes/random
func (h *JokeHandler) HandleRandom(w http.ResponseWriter, r *http.Request) {
	joke, err := h.jokes.Random(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, joke)
}

// HandleGet: GET /api/jokes/{id}
func (h *JokeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	detail, err := loadJokeDetail(r, h.jokes, h.comments, h.likes, chi.URLParam(r, "id"), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// HandleDelete: DELETE /api/jokes/{id}. Only the jokester may delete.
func (h *JokeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if err := h.jokes.Delete(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListComments: GET /api/jokes/{id}/comments
func (h *JokeHandler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.jokes.Get(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	comments, err := h.comments.List(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// HandleAddComment: POST /api/jokes/{id}/comments. Open to anyone.
func (h *JokeHandler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	var req addCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	comment, err := h.comments.Add(r.Context(), chi.URLParam(r, "id"), req.Username, req.Comment)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// HandleToggleLike: POST /api/jokes/{id}/like
func (h *JokeHandler) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID, _ := auth.UserIDFromContext(r.Context())

	result, err := h.likes.Toggle(r.Context(), userID, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	n, err := h.likes.Count(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, likeResponse{Result: result.String(), Likes: n})
}

// loadJokeDetail gathers a joke, its like count and its comments. Shared by
// the API and the HTML joke page.
func loadJokeDetail(
	r *http.Request,
	jokes *service.JokeService,
	comments *service.CommentService,
	likes *service.LikeService,
	id, userID string,
) (*JokeDetail, error) {
	ctx := r.Context()

	joke, err := jokes.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	n, err := likes.Count(ctx, id)
	if err != nil {
		return nil, err
	}
	liked, err := likes.HasLiked(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	cs, err := comments.List(ctx, id)
	if err != nil {
		return nil, err
	}

	return &JokeDetail{Joke: *joke, Likes: n, Liked: liked, Comments: cs}, nil
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperror.ValidationFailed(name, name+" must be an integer")
	}
	return n, nil
}
