// Package session exposes conversion sessions over HTTP.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/amirasaad/fxdate/pkg/calendar"
	"github.com/amirasaad/fxdate/pkg/currency"
	"github.com/amirasaad/fxdate/pkg/service/conversion"
	"github.com/amirasaad/fxdate/webapi/common"
	"github.com/gofiber/fiber/v2"
)

// WaitTimeout bounds how long a request waits for a rate load.
const WaitTimeout = 30 * time.Second

// Routes registers the session endpoints.
func Routes(app *fiber.App, mgr *conversion.Manager) {
	g := app.Group("/api/sessions")
	g.Post("/", CreateSession(mgr))
	g.Get("/:id", GetSession(mgr))
	g.Delete("/:id", DeleteSession(mgr))
	g.Put("/:id/base", SelectBase(mgr))
	g.Put("/:id/target", SelectTarget(mgr))
	g.Put("/:id/amount/base", SetBaseAmount(mgr))
	g.Put("/:id/amount/target", SetTargetAmount(mgr))
	g.Post("/:id/swap", Swap(mgr))
	g.Post("/:id/date/:field/adjust", AdjustDate(mgr))
	g.Put("/:id/date/:field", SetDateField(mgr))
}

// CreateSession starts a session from the stored preferences and today's
// date.
// @Summary Create a conversion session
// @Description Start a session from the stored currency selection and today's date, and load its first rate table
// @Tags sessions
// @Produce json
// @Param wait query bool false "Wait for the rate load (default true)"
// @Success 201 {object} common.Response
// @Success 202 {object} common.Response
// @Failure 429 {object} common.ProblemDetails
// @Failure 500 {object} common.ProblemDetails
// @Router /api/sessions [post]
func CreateSession(mgr *conversion.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, pending := mgr.Create(c.UserContext())
		c.Location("/api/sessions/" + s.ID())
		return respondPending(c, s, pending, fiber.StatusCreated)
	}
}

// GetSession returns the current view of a session.
// @Summary Get a conversion session
// @Description Return the current view of a session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} common.Response
// @Failure 404 {object} common.ProblemDetails
// @Router /api/sessions/{id} [get]
func GetSession(mgr *conversion.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := mgr.Get(c.Params("id"))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Session not found", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Session fetched", s.View())
	}
}

// DeleteSession closes a session.
// @Summary Delete a conversion session
// @Description Close a session and cancel its pending rate load
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 204
// @Failure 404 {object} common.ProblemDetails
// @Router /api/sessions/{id} [delete]
func DeleteSession(mgr *conversion.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := mgr.Delete(c.Params("id")); err != nil {
			return common.ProblemDetailsJSON(c, "Session not found", err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// SelectBase changes the base currency and reloads rates.
// @Summary Select the base currency
// @Description Change the base currency by index or code and reload rates
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body SelectCurrencyRequest true "Currency selection"
// @Param wait query bool false "Wait for the rate load (default true)"
// @Success 200 {object} common.Response
// @Success 202 {object} common.Response
// @Failure 400 {object} common.ProblemDetails
// @Failure 404 {object} common.ProblemDetails
// @Failure 500 {object} common.ProblemDetails
// @Router /api/sessions/{id}/base [put]
func SelectBase(mgr *conversion.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, index, err := selection(c, mgr)
		if s == nil {
			return err
		}
		pending, err := s.SelectBase(c.UserContext(), index)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid base currency", err)
		}
		return respondPending(c, s, pending, fiber.StatusOK)
	}
}

// SelectTarget changes the target currency. No fetch is needed.
// @Summary Select the target currency
// @Description Change the target currency by index or code using the loaded table
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body SelectCurrencyRequest true "Currency selection"
// @Success 200 {object} common.Response
// @Failure 400 {object} common.ProblemDetails
// @Failure 404 {object} common.ProblemDetails
// @Router /api/sessions/{id}/target [put]
func SelectTarget(mgr *conversion.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, index, err := selection(c, mgr)
		if s == nil {
			return err
		}
		view, err := s.SelectTarget(c.UserContext(), index)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid target currency", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Target currency selected", view)
	}
}

// SetBaseAmount applies text typed into the base amount field.
// @Summary Set the base amount
// @Description Apply text typed into the base amount field and derive the target amount
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body AmountRequest true "Amount text"
// @Success 200 {object} common.Response
// @Failure 400 {object} common.ProblemDetails
// @Failure 404 {object} common.ProblemDetails
// @Router /api/sessions/{id}/amount/base [put]
func SetBaseAmount(mgr *conversion.Manager) fiber.Handler {
	return amountHandler(mgr, (*conversion.Session).SetBaseAmount)
}

// SetTargetAmount applies text typed into the target amount field.
// @Summary Set the target amount
// @Description Apply text typed into the target amount field and back-derive the base amount
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body AmountRequest true "Amount text"
// @Success 200 {object} common.Response
// @Failure 400 {object} common.ProblemDetails
// @Failure 404 {object} common.ProblemDetails
// @Router /api/sessions/{id}/amount/target [put]
func SetTargetAmount(mgr *conversion.Manager) fiber.Handler {
	return amountHandler(mgr, (*conversion.Session).SetTargetAmount)
}

func amountHandler(
	mgr *conversion.Manager,
	set func(*conversion.Session, string) (conversion.View, error),
) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := mgr.Get(c.Params("id"))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Session not found", err)
		}
		input, err := common.BindAndValidate[AmountRequest](c)
		if input == nil {
			return err
		}
		view, err := set(s, input.Amount)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid amount", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Amount updated", view)
	}
}

// Swap exchanges base and target and reloads rates for the new base.
// @Summary Swap currencies
// @Description Exchange the base and target currencies and reload rates for the new base
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Param wait query bool false "Wait for the rate load (default true)"
// @Success 200 {object} common.Response
// @Success 202 {object} common.Response
// @Failure 404 {object} common.ProblemDetails
// @Failure 500 {object} common.ProblemDetails
// @Router /api/sessions/{id}/swap [post]
func Swap(mgr *conversion.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := mgr.Get(c.Params("id"))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Session not found", err)
		}
		return respondPending(c, s, s.Swap(c.UserContext()), fiber.StatusOK)
	}
}

// AdjustDate steps the day, month or year and reloads rates.
// @Summary Step a date field
// @Description Move the day, month or year by one and reload rates
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param field path string true "Date field" Enums(day, month, year)
// @Param request body AdjustDateRequest true "Direction"
// @Param wait query bool false "Wait for the rate load (default true)"
// @Success 200 {object} common.Response
// @Success 202 {object} common.Response
// @Failure 400 {object} common.ProblemDetails
// @Failure 404 {object} common.ProblemDetails
// @Failure 500 {object} common.ProblemDetails
// @Router /api/sessions/{id}/date/{field}/adjust [post]
func AdjustDate(mgr *conversion.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, field, err := dateField(c, mgr)
		if s == nil {
			return err
		}
		input, err := common.BindAndValidate[AdjustDateRequest](c)
		if input == nil {
			return err
		}
		pending, err := s.AdjustDate(c.UserContext(), field, input.Direction)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid date adjustment", err)
		}
		return respondPending(c, s, pending, fiber.StatusOK)
	}
}

// SetDateField applies text typed into a date field and reloads rates.
// @Summary Set a date field
// @Description Apply text typed into the day, month or year field and reload rates
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param field path string true "Date field" Enums(day, month, year)
// @Param request body DateFieldRequest true "Field text"
// @Param wait query bool false "Wait for the rate load (default true)"
// @Success 200 {object} common.Response
// @Success 202 {object} common.Response
// @Failure 400 {object} common.ProblemDetails
// @Failure 404 {object} common.ProblemDetails
// @Failure 500 {object} common.ProblemDetails
// @Router /api/sessions/{id}/date/{field} [put]
func SetDateField(mgr *conversion.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, field, err := dateField(c, mgr)
		if s == nil {
			return err
		}
		input, err := common.BindAndValidate[DateFieldRequest](c)
		if input == nil {
			return err
		}
		pending, err := s.SetDateField(c.UserContext(), field, input.Value)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid date", err)
		}
		return respondPending(c, s, pending, fiber.StatusOK)
	}
}

// selection resolves the session and the requested currency index. A nil
// session means the response has already been written.
func selection(c *fiber.Ctx, mgr *conversion.Manager) (*conversion.Session, int, error) {
	s, err := mgr.Get(c.Params("id"))
	if err != nil {
		return nil, 0, common.ProblemDetailsJSON(c, "Session not found", err)
	}
	input, err := common.BindAndValidate[SelectCurrencyRequest](c)
	if input == nil {
		return nil, 0, err
	}
	if input.Index != nil {
		return s, *input.Index, nil
	}
	index, err := currency.IndexOf(currency.Code(strings.ToUpper(input.Code)))
	if err != nil {
		return nil, 0, common.ProblemDetailsJSON(c, "Unsupported currency", err)
	}
	return s, index, nil
}

func dateField(c *fiber.Ctx, mgr *conversion.Manager) (*conversion.Session, calendar.Field, error) {
	s, err := mgr.Get(c.Params("id"))
	if err != nil {
		return nil, "", common.ProblemDetailsJSON(c, "Session not found", err)
	}
	field, err := calendar.ParseField(c.Params("field"))
	if err != nil {
		return nil, "", common.ProblemDetailsJSON(c, "Unknown date field", err)
	}
	return s, field, nil
}

// respondPending waits for a rate load unless the client asked not to with
// ?wait=false, in which case it answers 202 with the loading view. A load
// superseded by a newer edit answers with the session's current view.
func respondPending(c *fiber.Ctx, s *conversion.Session, pending *conversion.Pending, status int) error {
	if !c.QueryBool("wait", true) {
		return common.SuccessResponseJSON(c, fiber.StatusAccepted, "Rates loading", s.View())
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), WaitTimeout)
	defer cancel()
	view, err := pending.Wait(ctx)
	switch {
	case err == nil:
		return common.SuccessResponseJSON(c, status, "Rates loaded", view)
	case errors.Is(err, conversion.ErrSuperseded):
		return common.SuccessResponseJSON(c, status, "Superseded by a newer change", s.View())
	default:
		return common.ProblemDetailsJSON(c, "Failed to load rates", err, s.View())
	}
}
