package rest

import (
	"errors"
	"net/http"

	"github.com/emberveil/companion-server/membership"
	"github.com/gin-gonic/gin"
)

// respondMembershipError translates membership service errors into HTTP
// responses. Unknown errors become a generic 500 so internals never leak.
func respondMembershipError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, membership.ErrNotAuthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, membership.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, membership.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, membership.ErrDuplicateName):
		c.JSON(http.StatusConflict, gin.H{"error": "name already taken"})
	case errors.Is(err, membership.ErrAlreadyInGuild):
		c.JSON(http.StatusConflict, gin.H{"error": "already in a guild"})
	case errors.Is(err, membership.ErrNotInGuild):
		c.JSON(http.StatusConflict, gin.H{"error": "not in a guild"})
	case errors.Is(err, membership.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
