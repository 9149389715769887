package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/taskhub/internal/access"
	"github.com/geocoder89/taskhub/internal/domain/task"
)

type TaskManager interface {
	Create(ctx context.Context, p access.Principal, ownerID string, in task.CreateInput) (task.Task, error)
	ListForOwner(ctx context.Context, p access.Principal, ownerID string) ([]task.Task, error)
	ToggleStatus(ctx context.Context, p access.Principal, taskID string) (task.Task, error)
	Delete(ctx context.Context, p access.Principal, taskID string) error
	ToggleMany(ctx context.Context, p access.Principal, taskIDs []string) (int, error)
	DeleteMany(ctx context.Context, p access.Principal, taskIDs []string) (int, error)
}

type TasksHandler struct {
	tasks TaskManager
}

func NewTasksHandler(tasks TaskManager) *TasksHandler {
	return &TasksHandler{tasks: tasks}
}

// CreateTaskRequest carries dates as YYYY-MM-DD. Field rules are checked by
// the task service so the API and the forms report the same messages.
type CreateTaskRequest struct {
	Name      string `json:"name" form:"name"`
	StartDate string `json:"startDate" form:"startDate"`
	DueDate   string `json:"dueDate" form:"dueDate"`
}

// input parses the dates. A malformed date is reported per field.
func (r CreateTaskRequest) input() (task.CreateInput, []FieldError) {
	var fields []FieldError
	in := task.CreateInput{Name: r.Name}

	if r.StartDate != "" {
		d, err := task.ParseDate(r.StartDate)
		if err != nil {
			fields = append(fields, FieldError{Field: "startDate", Rule: "date", Param: task.DateLayout, Message: "must be a date in YYYY-MM-DD format"})
		} else {
			in.StartDate = d
		}
	}

	due, err := parseOptionalDate(r.DueDate)
	if err != nil {
		fields = append(fields, FieldError{Field: "dueDate", Rule: "date", Param: task.DateLayout, Message: "must be a date in YYYY-MM-DD format"})
	}
	in.DueDate = due

	return in, fields
}

func (h *TasksHandler) List(ctx *gin.Context) {
	p, ok := principalOrAbort(ctx)
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	tasks, err := h.tasks.ListForOwner(cctx, p, ctx.Param("id"))
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": toTaskResponses(tasks)})
}

func (h *TasksHandler) Create(ctx *gin.Context) {
	p, ok := principalOrAbort(ctx)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if !BindJSON(ctx, &req) {
		return
	}

	in, fields := req.input()
	if len(fields) > 0 {
		RespondBadRequest(ctx, "Invalid request body", gin.H{"fields": fields})
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	t, err := h.tasks.Create(cctx, p, ctx.Param("id"), in)
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, toTaskResponse(t))
}

func (h *TasksHandler) ToggleStatus(ctx *gin.Context) {
	p, ok := principalOrAbort(ctx)
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	t, err := h.tasks.ToggleStatus(cctx, p, ctx.Param("id"))
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, toTaskResponse(t))
}

func (h *TasksHandler) Delete(ctx *gin.Context) {
	p, ok := principalOrAbort(ctx)
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	if err := h.tasks.Delete(cctx, p, ctx.Param("id")); err != nil {
		RespondServiceError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}
