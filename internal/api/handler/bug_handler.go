package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/bug-tracker/internal/api/metrics"
	"github.com/99minutos/bug-tracker/internal/core/ports"
)

// BugHandler handles HTTP requests for bug operations.
type BugHandler struct {
	service ports.BugService
}

func NewBugHandler(service ports.BugService) *BugHandler {
	return &BugHandler{service: service}
}

// List handles GET /bugs.
//
// @Summary      List bugs, newest first
// @Tags         bugs
// @Produce      json
// @Security     BearerAuth
// @Param        status      query     string  false  "Filter by status"    Enums(open, in-progress, resolved, closed)
// @Param        priority    query     string  false  "Filter by priority"  Enums(low, medium, high, critical)
// @Param        project     query     string  false  "Filter by project"
// @Param        reportedBy  query     string  false  "Filter by reporter id"
// @Param        assignedTo  query     string  false  "Filter by assignee id"
// @Success      200         {array}   bugResponse
// @Failure      400         {object}  map[string]string
// @Failure      401         {object}  map[string]string
// @Router       /bugs [get]
func (h *BugHandler) List(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	var q listBugsQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return err
	}
	if err := c.Validate(&q); err != nil {
		return err
	}

	bugs, err := h.service.ListBugs(c.Request().Context(), actor, toFilter(q))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBugResponses(bugs))
}

// Get handles GET /bugs/:id.
//
// @Summary      Get a bug by id
// @Tags         bugs
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Bug id"
// @Success      200  {object}  bugResponse
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /bugs/{id} [get]
func (h *BugHandler) Get(c echo.Context) error {
	if _, err := ctxActor(c); err != nil {
		return err
	}

	bug, err := h.service.GetBug(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBugResponse(bug))
}

// Create handles POST /bugs. The reporter is always the caller.
//
// @Summary      Report a new bug
// @Tags         bugs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createBugRequest  true  "Bug details"
// @Success      201   {object}  bugResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /bugs [post]
func (h *BugHandler) Create(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	var req createBugRequest
	if err := bindStrict(c, &req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	bug, err := h.service.CreateBug(c.Request().Context(), actor, toCreateInput(req))
	if err != nil {
		return err
	}

	metrics.BugsCreatedTotal.WithLabelValues(string(bug.Priority)).Inc()
	return c.JSON(http.StatusCreated, toBugResponse(bug))
}

// Update handles PUT /bugs/:id. Only keys present in the body change.
//
// @Summary      Update a bug
// @Tags         bugs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string            true  "Bug id"
// @Param        body  body      updateBugRequest  true  "Fields to change"
// @Success      200   {object}  bugResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /bugs/{id} [put]
func (h *BugHandler) Update(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	var req updateBugRequest
	if err := bindStrict(c, &req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	bug, err := h.service.UpdateBug(c.Request().Context(), c.Param("id"), actor, toPatch(req))
	metrics.BugMutationsTotal.WithLabelValues(string(ports.ActionUpdate), metrics.Result(err)).Inc()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBugResponse(bug))
}

// Delete handles DELETE /bugs/:id.
//
// @Summary      Delete a bug
// @Tags         bugs
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Bug id"
// @Success      200  {object}  deleteBugResponse
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /bugs/{id} [delete]
func (h *BugHandler) Delete(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	id, err := h.service.DeleteBug(c.Request().Context(), c.Param("id"), actor)
	metrics.BugMutationsTotal.WithLabelValues(string(ports.ActionDelete), metrics.Result(err)).Inc()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, deleteBugResponse{ID: id})
}
