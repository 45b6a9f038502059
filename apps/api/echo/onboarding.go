package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-onboarding/core"
	"github.com/trezcool/masomo-onboarding/core/approval"
	"github.com/trezcool/masomo-onboarding/core/onboarding"
)

type onboardingApi struct {
	svc      *onboarding.Service
	orch     *approval.Orchestrator
	validate *validator.Validate
}

func registerOnboardingAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *onboarding.Service,
	orch *approval.Orchestrator,
	validate *validator.Validate,
) {
	api := onboardingApi{
		svc:      svc,
		orch:     orch,
		validate: validate,
	}

	og := g.Group("/onboarding")

	// un-authed endpoints
	// TODO: rate limit `/requests` submissions
	og.POST("/requests", api.submit)

	// authed endpoints: the orchestrator authorizes reviews itself
	ag := og.Group("", jwt)
	ag.POST("/approve", api.approve)
	ag.POST("/requests/:id/reject", api.reject)

	// superadmin endpoints
	superAdmin := superAdminMiddleware(orch)
	ag.GET("/requests", api.query, superAdmin)
	ag.GET("/requests/:id", api.retrieve, superAdmin)
	ag.PUT("/requests/:id", api.update, superAdmin)
}

// Handlers

func (api *onboardingApi) submit(ctx echo.Context) error {
	var data onboarding.NewRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRequest")
	}

	req, err := api.svc.Submit(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "submitting onboarding request")
	}
	return ctx.JSON(http.StatusCreated, req)
}

func (api *onboardingApi) query(ctx echo.Context) error {
	filter, err := bindRequestFilter(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	reqs, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying onboarding requests")
	}
	if reqs == nil {
		reqs = []onboarding.Request{}
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (api *onboardingApi) retrieve(ctx echo.Context) error {
	req, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding onboarding request")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *onboardingApi) update(ctx echo.Context) error {
	var data onboarding.UpdateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRequest")
	}

	req, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating onboarding request")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *onboardingApi) approve(ctx echo.Context) error {
	var data ApproveRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ApproveRequest")
	}
	data.RequestID = core.CleanString(data.RequestID)
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	res, err := api.orch.Approve(ctx.Request().Context(), data.RequestID, contextCaller(ctx))
	if err != nil {
		return errors.Wrap(err, "approving onboarding request")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *onboardingApi) reject(ctx echo.Context) error {
	var data RejectRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RejectRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	req, err := api.orch.Reject(ctx.Request().Context(), ctx.Param("id"), contextCaller(ctx), data.Reason)
	if err != nil {
		return errors.Wrap(err, "rejecting onboarding request")
	}
	return ctx.JSON(http.StatusOK, req)
}

type (
	ApproveRequest struct {
		RequestID string `json:"requestId" validate:"required"`
	}

	RejectRequest struct {
		Reason string `json:"reason" validate:"max=1000"`
	}
)
