package http

import (
	"errors"
	"net/http"

	"github.com/dkeye/huddle/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	userKey     = "user"
	keyUserID   = "user_id"
	keyUsername = "username"
	keyAvatar   = "avatar"
)

// IdentityMiddleware resolves who is connecting. username and avatar come
// from the query string, falling back to the cookie session. The user id
// sticks to the session while the identity stays the same; a new username or
// avatar gets a new id.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessions.Default(c)
		prevName, _ := s.Get(keyUsername).(string)
		prevAvatar, _ := s.Get(keyAvatar).(string)
		username := c.Query(keyUsername)
		if username == "" {
			username = prevName
		}
		avatar := c.Query(keyAvatar)
		if avatar == "" {
			avatar = prevAvatar
		}

		user, err := domain.NewUser(username, avatar)
		if err != nil {
			msg := err.Error()
			if errors.Is(err, domain.ErrUsernameEmpty) || errors.Is(err, domain.ErrAvatarEmpty) {
				msg = "Missing username or avatar"
			}
			log.Warn().Err(err).Str("module", "adapters.http").Msg("handshake rejected")
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}
		if id, ok := s.Get(keyUserID).(string); ok && id != "" && user.Username == prevName && user.Avatar == prevAvatar {
			user.ID = domain.UserID(id)
		}

		s.Set(keyUserID, string(user.ID))
		s.Set(keyUsername, user.Username)
		s.Set(keyAvatar, user.Avatar)
		if err := s.Save(); err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
		}
		c.Set(userKey, *user)
		c.Next()
	}
}

func currentUser(c *gin.Context) domain.User {
	u, _ := c.MustGet(userKey).(domain.User)
	return u
}
