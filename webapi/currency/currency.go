// Package currency exposes the supported currency list and raw rate tables.
package currency

import (
	"strings"

	"github.com/amirasaad/fxdate/pkg/calendar"
	"github.com/amirasaad/fxdate/pkg/currency"
	"github.com/amirasaad/fxdate/pkg/exchange/core"
	exchangesvc "github.com/amirasaad/fxdate/pkg/service/exchange"
	"github.com/amirasaad/fxdate/webapi/common"
	"github.com/gofiber/fiber/v2"
)

// CurrencyDTO is one entry of the selection list.
type CurrencyDTO struct {
	Index int    `json:"index"`
	Code  string `json:"code"`
}

// RatesDTO is a rate table as served to clients.
type RatesDTO struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

// Routes registers the currency and rate endpoints.
func Routes(app *fiber.App, svc *exchangesvc.Service) {
	app.Get("/api/currencies", ListCurrencies())
	app.Get("/api/rates/:base", GetRates(svc))
}

// ListCurrencies returns the supported codes in selection order.
// @Summary List currencies
// @Description Return the supported currency codes in selection order
// @Tags currencies
// @Produce json
// @Success 200 {object} common.Response
// @Router /api/currencies [get]
func ListCurrencies() fiber.Handler {
	return func(c *fiber.Ctx) error {
		codes := currency.All()
		out := make([]CurrencyDTO, len(codes))
		for i, code := range codes {
			out[i] = CurrencyDTO{Index: i, Code: string(code)}
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Currencies fetched successfully", out)
	}
}

// GetRates returns the table for a base currency, as of ?date=YYYY-MM-DD
// or the latest one.
// @Summary Get exchange rates
// @Description Return the rate table for a base currency, as of a date or the latest one
// @Tags currencies
// @Produce json
// @Param base path string true "Base currency code"
// @Param date query string false "Date in YYYY-MM-DD form"
// @Success 200 {object} common.Response
// @Failure 400 {object} common.ProblemDetails
// @Failure 422 {object} common.ProblemDetails
// @Failure 502 {object} common.ProblemDetails
// @Router /api/rates/{base} [get]
func GetRates(svc *exchangesvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		base := currency.Code(strings.ToUpper(strings.TrimSpace(c.Params("base"))))
		date := strings.TrimSpace(c.Query("date"))
		if date != "" {
			if _, err := calendar.ParseCanonical(date); err != nil {
				return common.ProblemDetailsJSON(c, "Invalid date", err, "date must be a real calendar date in YYYY-MM-DD form")
			}
		}

		table, err := svc.EnsureRates(c.UserContext(), base, date)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to fetch exchange rates", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Rates fetched successfully", toDTO(table))
	}
}

func toDTO(t *core.RateTable) RatesDTO {
	return RatesDTO{Base: string(t.Base()), Date: t.Date(), Rates: t.Rates()}
}
