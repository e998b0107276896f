package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h HandlerSet) AdminListUsers(c *gin.Context) {
	limit, offset := pagination(c)

	users, err := h.users.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	items := make([]userResponse, 0, len(users))
	for _, user := range users {
		items = append(items, toUserResponse(user))
	}

	c.JSON(http.StatusOK, gin.H{"users": items})
}

func (h HandlerSet) AdminListConversions(c *gin.Context) {
	limit, offset := pagination(c)

	conversions, err := h.conversions.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	items := make([]gin.H, 0, len(conversions))
	for _, conv := range conversions {
		items = append(items, gin.H{
			"id":        conv.ID,
			"userId":    conv.UserID,
			"filename":  conv.Filename,
			"fileType":  conv.FileType,
			"fileSize":  conv.FileSize,
			"status":    conv.Status,
			"createdAt": conv.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"conversions": items})
}
