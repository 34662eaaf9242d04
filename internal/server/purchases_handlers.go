package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/lumen/backend/internal/purchases"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type completePurchasePayload struct {
	UserID string `json:"userId"`
}

type completePurchaseResponse struct {
	Purchase purchases.Purchase `json:"purchase"`
	Created  bool               `json:"created"`
}

type courseAccessResponse struct {
	CourseID  string `json:"courseId"`
	HasAccess bool   `json:"hasAccess"`
}

type purchasesResponse struct {
	Purchases []purchases.Purchase `json:"purchases"`
}

// handleCompletePurchase finalizes a checkout. The body names the user the
// checkout belongs to and must match the session; repeated calls are safe.
func (h *httpHandler) handleCompletePurchase(c *gin.Context) {
	userID, ok := h.requester(c)
	if !ok {
		return
	}
	courseID := strings.TrimSpace(c.Param("courseId"))
	if courseID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_course_id"})
		return
	}
	var request completePurchasePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if requested := strings.TrimSpace(request.UserID); requested != "" && !isSessionIdentity(c, userID, requested) {
		h.logger.Warn("checkout completion for another user rejected",
			zap.String("user_id", userID),
			zap.String("requested_user_id", requested),
			zap.String("course_id", courseID))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	result, err := h.purchases.CompletePurchase(c.Request.Context(), userID, courseID)
	if err != nil {
		h.respondPurchasesError(c, "failed to complete purchase", err)
		return
	}
	c.JSON(http.StatusOK, completePurchaseResponse{Purchase: result.Purchase, Created: result.Created})
}

func (h *httpHandler) handleCourseAccess(c *gin.Context) {
	userID, ok := h.requester(c)
	if !ok {
		return
	}
	courseID := strings.TrimSpace(c.Param("courseId"))
	if courseID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_course_id"})
		return
	}
	hasAccess, err := h.purchases.HasPurchase(c.Request.Context(), userID, courseID)
	if err != nil {
		h.respondPurchasesError(c, "failed to check course access", err)
		return
	}
	c.JSON(http.StatusOK, courseAccessResponse{CourseID: courseID, HasAccess: hasAccess})
}

func (h *httpHandler) handleListPurchases(c *gin.Context) {
	userID, ok := h.requester(c)
	if !ok {
		return
	}
	stored, err := h.purchases.ListPurchases(c.Request.Context(), userID)
	if err != nil {
		h.respondPurchasesError(c, "failed to list purchases", err)
		return
	}
	if stored == nil {
		stored = []purchases.Purchase{}
	}
	c.JSON(http.StatusOK, purchasesResponse{Purchases: stored})
}

func (h *httpHandler) respondPurchasesError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, purchases.ErrCourseNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, purchases.ErrInvalidIdentifier):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
	default:
		h.respondServiceError(c, message, err)
	}
}
