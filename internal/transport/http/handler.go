package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richardliu001/ledgerx/internal/executor"
	"github.com/richardliu001/ledgerx/internal/ledgerx"
)

// RegisterHandlers wires the thin HTTP adapter onto r. It performs only
// caller-side syntactic validation (well-formed UUIDs, positive amount,
// source != destination); business rules live entirely in the Executor.
func RegisterHandlers(r *gin.Engine, exec *executor.Executor) {
	v1 := r.Group("/v1")
	{
		v1.POST("/transfers", createTransfer(exec))
		v1.POST("/deposits", createDeposit(exec))
		v1.GET("/users/:id/balance", getBalance(exec))
		v1.GET("/users/:id/history", getHistory(exec))
	}
}

type transferReq struct {
	IdempotencyKey string `json:"idempotency_key" binding:"required"`
	SourceID       string `json:"source_id" binding:"required"`
	DestID         string `json:"dest_id" binding:"required"`
	Amount         int64  `json:"amount" binding:"required"`
}

func createTransfer(exec *executor.Executor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req transferReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		key, err1 := uuid.Parse(req.IdempotencyKey)
		src, err2 := uuid.Parse(req.SourceID)
		dst, err3 := uuid.Parse(req.DestID)
		if err1 != nil || err2 != nil || err3 != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
			return
		}
		if req.Amount <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
			return
		}
		if src == dst {
			c.JSON(http.StatusBadRequest, gin.H{"error": "source and destination must differ"})
			return
		}
		entry, err := exec.ExecuteTransfer(c.Request.Context(), key, src, dst, req.Amount)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}

type depositReq struct {
	IdempotencyKey string `json:"idempotency_key" binding:"required"`
	UserID         string `json:"user_id" binding:"required"`
	Amount         int64  `json:"amount" binding:"required"`
}

func createDeposit(exec *executor.Executor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req depositReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		key, err1 := uuid.Parse(req.IdempotencyKey)
		dst, err2 := uuid.Parse(req.UserID)
		if err1 != nil || err2 != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
			return
		}
		if req.Amount <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
			return
		}
		entry, err := exec.ExecuteDeposit(c.Request.Context(), key, dst, req.Amount)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}

func getBalance(exec *executor.Executor) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		atStr := c.Query("at")
		if atStr == "" {
			bal, err := exec.BalanceNow(c.Request.Context(), id)
			if err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"balance": bal})
			return
		}
		at, err := time.Parse(time.RFC3339, atStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid at"})
			return
		}
		bal, err := exec.BalanceAt(c.Request.Context(), id, at)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"balance": bal})
	}
}

func getHistory(exec *executor.Executor) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		entries, err := exec.ListHistory(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}

func writeError(c *gin.Context, err error) {
	var le *ledgerx.Error
	if errors.As(err, &le) {
		switch le.Kind {
		case ledgerx.KindInsufficientFunds:
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": le.Kind, "detail": err.Error()})
		case ledgerx.KindValidation:
			c.JSON(http.StatusBadRequest, gin.H{"error": le.Kind, "detail": err.Error()})
		case ledgerx.KindConflict:
			c.JSON(http.StatusConflict, gin.H{"error": le.Kind, "detail": err.Error()})
		case ledgerx.KindCanceled:
			c.JSON(http.StatusRequestTimeout, gin.H{"error": le.Kind, "detail": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": le.Kind, "detail": err.Error()})
		}
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "detail": err.Error()})
}
