package apifake

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-blog-client/apimodel"
	"github.com/jrsteele09/go-blog-client/internal/utils"
	"github.com/jrsteele09/go-blog-client/users"
)

// LoginHandler authenticates a registered user
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apimodel.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		identity, err := s.accounts.Authenticate(req.Username, req.Password)
		if err != nil {
			writeJSONError(w, "Invalid username or password", http.StatusUnauthorized)
			return
		}

		accessToken, err := s.MintAccessToken(identity)
		if err != nil {
			writeJSONError(w, "Failed to issue token", http.StatusInternalServerError)
			return
		}
		refreshToken, err := s.refreshTokens.Create(identity.ID)
		if err != nil {
			writeJSONError(w, "Failed to issue token", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, apimodel.LoginResponse{
			Token:        accessToken,
			RefreshToken: refreshToken,
			User:         identity,
			Username:     identity.Username,
		})
	}
}

// GuestLoginHandler starts a guest session. Guests get no refresh token.
func (s *Server) GuestLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := users.Identity{Username: users.GuestUsername, Role: users.RoleGuest, IsGuest: true}
		accessToken, err := s.MintAccessToken(identity)
		if err != nil {
			writeJSONError(w, "Failed to issue token", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, apimodel.LoginResponse{
			Token:    accessToken,
			User:     identity,
			Username: identity.Username,
		})
	}
}

func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apimodel.SignupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		_, err := s.accounts.Register(req)
		switch {
		case errors.Is(err, ErrMissingFields):
			writeJSONError(w, "All fields are required", http.StatusBadRequest)
		case errors.Is(err, ErrReservedUsername), errors.Is(err, users.ErrBlankUsername):
			writeJSONError(w, "Username is not allowed", http.StatusBadRequest)
		case errors.Is(err, ErrUsernameTaken):
			writeJSONError(w, "Username already taken", http.StatusConflict)
		case err != nil:
			writeJSONError(w, "Registration failed", http.StatusInternalServerError)
		default:
			writeJSON(w, http.StatusCreated, apimodel.ErrorResponse{Message: "User registered"})
		}
	}
}

// RefreshHandler exchanges a refresh token for a new access token
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apimodel.RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		status, failure, gate := s.nextRefreshOutcome()
		if gate != nil {
			gate.wait(r.Context())
		}
		if failure != nil {
			writeJSONError(w, failure.Message, status)
			return
		}

		stored, ok := s.refreshTokens.Get(req.RefreshToken)
		if !ok || stored.UserID != req.UserID {
			writeJSONError(w, apimodel.MessageRefreshInvalid, http.StatusUnauthorized)
			return
		}
		acc, ok := s.accounts.ByID(stored.UserID)
		if !ok {
			writeJSONError(w, apimodel.MessageRefreshInvalid, http.StatusUnauthorized)
			return
		}

		accessToken, err := s.MintAccessToken(acc.identity)
		if err != nil {
			writeJSONError(w, "Failed to issue token", http.StatusInternalServerError)
			return
		}

		var rotated string
		if s.rotate {
			if rotated, err = s.refreshTokens.Create(stored.UserID); err != nil {
				writeJSONError(w, "Failed to issue token", http.StatusInternalServerError)
				return
			}
		}
		writeJSON(w, http.StatusOK, apimodel.RefreshResponse{
			NewToken:     accessToken,
			RefreshToken: utils.NonZero(rotated),
		})
	}
}

// RevokeHandler forgets a refresh token. Unknown tokens are not an error.
func (s *Server) RevokeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apimodel.RevokeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		s.lock.Lock()
		s.revokeCalls++
		s.lock.Unlock()

		if stored, ok := s.refreshTokens.Get(req.RefreshToken); ok && stored.UserID == req.UserID {
			s.refreshTokens.Delete(req.RefreshToken)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// UserDataHandler serves GET /api/{username}/data to the owner of the profile or an admin
func (s *Server) UserDataHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("resource") != "data" {
			writeJSONError(w, "Not found", http.StatusNotFound)
			return
		}

		bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeJSONError(w, "Missing bearer token", http.StatusUnauthorized)
			return
		}
		introspection, err := s.inspector.Introspect(bearer)
		if err != nil || !introspection.Active {
			writeJSONError(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		username := r.PathValue("username")
		caller := introspection.Identity
		if caller.IsGuestSession() || (caller.Username != username && !caller.IsAdmin()) {
			writeJSONError(w, "Forbidden", http.StatusForbidden)
			return
		}

		acc, ok := s.accounts.ByName(username)
		if !ok {
			writeJSON(w, http.StatusOK, []apimodel.UserProfile{})
			return
		}
		writeJSON(w, http.StatusOK, []apimodel.UserProfile{acc.profile})
	}
}

func (s *Server) ListBlogsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.blogs)
	}
}

func (s *Server) GetBlogHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			writeJSONError(w, "Invalid blog id", http.StatusBadRequest)
			return
		}
		for _, blog := range s.blogs {
			if blog.ID == id {
				writeJSON(w, http.StatusOK, blog)
				return
			}
		}
		writeJSONError(w, "Blog not found", http.StatusNotFound)
	}
}

func (s *Server) BlogImagesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			writeJSONError(w, "Invalid blog id", http.StatusBadRequest)
			return
		}
		pictures := s.pictures[id]
		if pictures == nil {
			pictures = []apimodel.Picture{}
		}
		writeJSON(w, http.StatusOK, pictures)
	}
}

func (s *Server) NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, "Not found", http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, apimodel.ErrorResponse{Message: message})
}
