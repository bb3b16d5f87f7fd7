package marketplace

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler exposes Service over echo routes. Routes are registered by
// internal/server; the JWT middleware must have set "user_id" and "role".
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func callerID(c echo.Context) string {
	id, _ := c.Get("user_id").(string)
	return id
}

func callerRole(c echo.Context) string {
	role, _ := c.Get("role").(string)
	return role
}

func bindAndValidate(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return NewError(ErrValidation, "Input data is not formed correctly")
	}
	return c.Validate(dst)
}

// CreateBid - POST /bids (worker)
func (h *Handler) CreateBid(c echo.Context) error {
	var in CreateBidInput
	if err := bindAndValidate(c, &in); err != nil {
		return err
	}
	bid, err := h.svc.CreateBid(c.Request().Context(), callerID(c), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, bid)
}

// ListBidsForJob - GET /bids/job/:jobId (job owner)
func (h *Handler) ListBidsForJob(c echo.Context) error {
	bids, err := h.svc.ListBidsForJob(c.Request().Context(), callerID(c), c.Param("jobId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bids)
}

// ListMyBids - GET /bids/my (worker)
func (h *Handler) ListMyBids(c echo.Context) error {
	bids, err := h.svc.ListMyBids(c.Request().Context(), callerID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bids)
}

// ListIncomingBids - GET /bids/incoming (client)
func (h *Handler) ListIncomingBids(c echo.Context) error {
	bids, err := h.svc.ListIncomingBids(c.Request().Context(), callerID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bids)
}

type statusInput struct {
	Status string `json:"status" validate:"required"`
}

// UpdateBidStatus - PATCH /bids/:bidId/status (job owner)
func (h *Handler) UpdateBidStatus(c echo.Context) error {
	var in statusInput
	if err := bindAndValidate(c, &in); err != nil {
		return err
	}
	res, err := h.svc.UpdateBidStatus(c.Request().Context(), callerID(c), c.Param("bidId"), in.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// CreateJob - POST /jobs (client)
func (h *Handler) CreateJob(c echo.Context) error {
	var in CreateJobInput
	if err := bindAndValidate(c, &in); err != nil {
		return err
	}
	job, err := h.svc.CreateJob(c.Request().Context(), callerID(c), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, job)
}

// ListJobs - GET /jobs?status=&category=
func (h *Handler) ListJobs(c echo.Context) error {
	jobs, err := h.svc.ListJobs(c.Request().Context(), JobFilter{
		Status:   c.QueryParam("status"),
		Category: c.QueryParam("category"),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, jobs)
}

// GetJob - GET /jobs/:id
func (h *Handler) GetJob(c echo.Context) error {
	job, err := h.svc.GetJob(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, job)
}

// MyJobs - GET /jobs/my
func (h *Handler) MyJobs(c echo.Context) error {
	jobs, err := h.svc.MyJobs(c.Request().Context(), callerID(c), callerRole(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, jobs)
}

// DeleteJob - DELETE /jobs/:id (job owner)
func (h *Handler) DeleteJob(c echo.Context) error {
	if err := h.svc.DeleteJob(c.Request().Context(), callerID(c), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Job deleted"})
}

// UpdateJobStatus - PATCH /jobs/:id/status (job owner)
func (h *Handler) UpdateJobStatus(c echo.Context) error {
	var in statusInput
	if err := bindAndValidate(c, &in); err != nil {
		return err
	}
	job, err := h.svc.UpdateJobStatus(c.Request().Context(), callerID(c), c.Param("id"), in.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, job)
}

// UpdateWorkerJobStatus - PATCH /jobs/:id/worker-status (assigned worker)
func (h *Handler) UpdateWorkerJobStatus(c echo.Context) error {
	var in UpdateWorkerJobStatusInput
	if err := bindAndValidate(c, &in); err != nil {
		return err
	}
	job, err := h.svc.UpdateWorkerJobStatus(c.Request().Context(), callerID(c), c.Param("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, job)
}

// GetProfile - GET /users/:id/profile
func (h *Handler) GetProfile(c echo.Context) error {
	p, err := h.svc.PublicProfile(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}
