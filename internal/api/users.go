package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dharsanguruparan/AppCenter/internal/model"
	"github.com/dharsanguruparan/AppCenter/internal/users"
)

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type accountRequest struct {
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

type accountChanges struct {
	Username *string     `json:"username"`
	Email    *string     `json:"email"`
	Password *string     `json:"password"`
	Role     *model.Role `json:"role"`
}

type sessionUser struct {
	ID       string     `json:"id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Role     model.Role `json:"role"`
}

func toSessionUser(u *model.User) sessionUser {
	return sessionUser{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid login request")
		return
	}
	login := req.Username
	if strings.TrimSpace(req.Email) != "" {
		login = req.Email
	}
	sess, err := s.users.Authenticate(c.Request.Context(), login, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "login successful", gin.H{
		"token":     sess.Token,
		"expiresAt": sess.ExpiresAt,
		"user":      toSessionUser(sess.User),
	})
}

func (s *Server) register(c *gin.Context) {
	var req accountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid registration request")
		return
	}
	u, err := s.users.Register(c.Request.Context(), users.Credentials{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "registration successful", toSessionUser(u))
}

func (s *Server) verify(c *gin.Context) {
	respond(c, http.StatusOK, "token valid", gin.H{"user": toSessionUser(actorFrom(c))})
}

func (s *Server) listUsers(c *gin.Context) {
	list, err := s.users.List(c.Request.Context(), actorFrom(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "users loaded", list)
}

func (s *Server) listMyUsers(c *gin.Context) {
	list, err := s.users.ListCreatedBy(c.Request.Context(), actorFrom(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "users loaded", list)
}

func (s *Server) userStats(c *gin.Context) {
	stats, err := s.users.Stats(c.Request.Context(), actorFrom(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "user statistics loaded", stats)
}

func (s *Server) getUser(c *gin.Context) {
	u, err := s.users.Get(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "user loaded", u)
}

func (s *Server) createUser(c *gin.Context) {
	var req accountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid user request")
		return
	}
	u, err := s.users.Create(c.Request.Context(), actorFrom(c), users.Credentials(req))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "user created", u)
}

func (s *Server) updateUser(c *gin.Context) {
	var req accountChanges
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid user request")
		return
	}
	u, err := s.users.Update(c.Request.Context(), actorFrom(c), c.Param("id"), users.Changes(req))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "user updated", u)
}

func (s *Server) toggleUser(c *gin.Context) {
	u, err := s.users.ToggleStatus(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "user status updated", u)
}

func (s *Server) deleteUser(c *gin.Context) {
	if err := s.users.Delete(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "user deleted", nil)
}
