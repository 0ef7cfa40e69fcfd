package attendance

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler exposes a Store over HTTP.
type Handler struct {
	store  *Store
	logger *zap.Logger
}

// NewHandler returns a handler backed by store.
func NewHandler(store *Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// Register mounts the attendance routes on r.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/attendance_stats", h.stats)
	r.GET("/students", h.students)
	r.GET("/search_students/:query", h.search)
	r.GET("/get_user/:unique_id", h.user)
}

func (h *Handler) stats(ctx *gin.Context) {
	stats, err := h.store.Stats()
	switch {
	case errors.Is(err, ErrStudentListMissing), errors.Is(err, ErrVerifiedListMissing):
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Required files not found"})
	case err != nil:
		h.fail(ctx, "Error getting stats", err)
	default:
		ctx.JSON(http.StatusOK, stats)
	}
}

func (h *Handler) students(ctx *gin.Context) {
	students, present, err := h.store.Students()
	switch {
	case errors.Is(err, ErrStudentListMissing):
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Student list not found"})
	case err != nil:
		h.fail(ctx, "Error getting students", err)
	default:
		ctx.JSON(http.StatusOK, gin.H{"students": students, "present_students": present})
	}
}

func (h *Handler) search(ctx *gin.Context) {
	students, err := h.store.Search(ctx.Param("query"))
	switch {
	case errors.Is(err, ErrStudentListMissing):
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Student list not found"})
	case err != nil:
		h.fail(ctx, "Error searching students", err)
	default:
		ctx.JSON(http.StatusOK, gin.H{"students": students})
	}
}

func (h *Handler) user(ctx *gin.Context) {
	id := ctx.Param("unique_id")
	student, found, err := h.store.Lookup(id)
	switch {
	case errors.Is(err, ErrStudentListMissing):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "CSV not uploaded yet"})
	case errors.Is(err, ErrInvalidFormat):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid CSV format"})
	case err != nil:
		h.fail(ctx, "Error reading CSV", err)
	case !found:
		ctx.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	default:
		body := gin.H{"Registration Number": student.RegistrationNumber, "Name": student.Name}
		if student.IsPresent {
			body["warning"] = "Attendance already marked"
		}
		ctx.JSON(http.StatusOK, body)
	}
}

func (h *Handler) fail(ctx *gin.Context, msg string, err error) {
	h.logger.Error(msg, zap.String("path", ctx.Request.URL.Path), zap.Error(err))
	_ = ctx.Error(err)
	ctx.JSON(http.StatusInternalServerError, gin.H{"error": msg + ": " + err.Error()})
}
