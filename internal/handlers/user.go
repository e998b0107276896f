package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"convflow/api/internal/middleware"
	"convflow/api/internal/models"
)

type usageResponse struct {
	TotalConversions   int   `json:"totalConversions"`
	MonthlyConversions int   `json:"monthlyConversions"`
	DailyConversions   int   `json:"dailyConversions"`
	StorageUsed        int64 `json:"storageUsed"`
	PlanLimit          int   `json:"planLimit"`
}

func (h HandlerSet) UsageStats(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	stats, err := h.usage.Snapshot(c.Request.Context(), user.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, usageResponse{
		TotalConversions:   stats.TotalConversions,
		MonthlyConversions: stats.MonthlyConversions,
		DailyConversions:   stats.DailyConversions,
		StorageUsed:        stats.StorageUsed,
		PlanLimit:          stats.PlanLimit,
	})
}

type conversionResponse struct {
	ID           string     `json:"id"`
	Filename     string     `json:"filename"`
	FileType     string     `json:"fileType"`
	FileSize     int64      `json:"fileSize"`
	Status       string     `json:"status"`
	ErrorMessage *string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

func toConversionResponse(conv models.Conversion) conversionResponse {
	return conversionResponse{
		ID:           conv.ID,
		Filename:     conv.Filename,
		FileType:     conv.FileType,
		FileSize:     conv.FileSize,
		Status:       string(conv.Status),
		ErrorMessage: conv.ErrorMessage,
		CreatedAt:    conv.CreatedAt,
		CompletedAt:  conv.CompletedAt,
	}
}

func pagination(c *gin.Context) (limit, offset int) {
	limit = 50
	offset = 0
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v >= 1 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

func (h HandlerSet) ConversionHistory(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, offset := pagination(c)
	conversions, err := h.usage.History(c.Request.Context(), user.ID, limit, offset)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	items := make([]conversionResponse, 0, len(conversions))
	for _, conv := range conversions {
		items = append(items, toConversionResponse(conv))
	}

	c.JSON(http.StatusOK, gin.H{"conversions": items})
}
