package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/amirasaad/fxdate/infra/initializer"
	"github.com/amirasaad/fxdate/pkg/app"
	"github.com/amirasaad/fxdate/pkg/calendar"
	"github.com/amirasaad/fxdate/pkg/config"
	"github.com/amirasaad/fxdate/pkg/currency"
	"github.com/amirasaad/fxdate/pkg/exchange/core"
	exchangesvc "github.com/amirasaad/fxdate/pkg/service/exchange"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
)

const usage = `Usage: cli <command> [arguments]
Commands:
  currencies                              list supported currencies
  rates <BASE> [YYYY-MM-DD]               print the rate table for BASE
  convert <BASE> <TARGET> <AMOUNT> [date] convert AMOUNT of BASE into TARGET`

var errUsage = errors.New("invalid arguments")

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575"))
	codeStyle   = lipgloss.NewStyle().Width(5)
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		return
	}

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal("failed to load application configuration", "err", err)
	}
	// One-shot commands never warm the cache in the background.
	cfg.Warmer.Enabled = false

	deps, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		log.Fatal("failed to initialize dependencies", "err", err)
	}
	a, err := app.New(deps, cfg)
	if err != nil {
		log.Fatal("failed to create application", "err", err)
	}
	defer a.Close() //nolint: errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, a.Exchange, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usage)
		}
		log.Error("command failed", "err", err)
		os.Exit(1) //nolint: gocritic
	}
}

func run(ctx context.Context, svc *exchangesvc.Service, args []string, w io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "currencies":
		for i, code := range currency.All() {
			fmt.Fprintf(w, "%2d %s\n", i, code)
		}
		return nil
	case "rates":
		if len(args) < 2 || len(args) > 3 {
			return fmt.Errorf("%w: rates <BASE> [date]", errUsage)
		}
		table, err := fetch(ctx, svc, args[1], optional(args, 2))
		if err != nil {
			return err
		}
		printTable(w, table)
		return nil
	case "convert":
		if len(args) < 4 || len(args) > 5 {
			return fmt.Errorf("%w: convert <BASE> <TARGET> <AMOUNT> [date]", errUsage)
		}
		return convert(ctx, svc, args[1], args[2], args[3], optional(args, 4), w)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func convert(ctx context.Context, svc *exchangesvc.Service, base, target, amountText, date string, w io.Writer) error {
	targetCode, err := currency.Parse(target)
	if err != nil {
		return err
	}
	targetIndex, err := currency.IndexOf(targetCode)
	if err != nil {
		return err
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(amountText))
	if err != nil {
		return &core.ParseError{Field: "amount", Input: amountText, Err: err}
	}

	table, err := fetch(ctx, svc, base, date)
	if err != nil {
		return err
	}
	converted := decimal.NewFromFloat(exchangesvc.Convert(amount.InexactFloat64(), table, targetIndex))
	rate, _ := table.RateAt(targetIndex)

	fmt.Fprintf(w, "%s %s = %s %s\n",
		amount.Round(4).String(), table.Base(),
		converted.Round(4).String(), targetCode)
	fmt.Fprintf(w, "rate %s as of %s\n", decimal.NewFromFloat(rate).Round(4).String(), table.Date())
	return nil
}

func fetch(ctx context.Context, svc *exchangesvc.Service, base, date string) (*core.RateTable, error) {
	code, err := currency.Parse(base)
	if err != nil {
		return nil, err
	}
	if date != "" {
		if _, err := calendar.ParseCanonical(date); err != nil {
			return nil, err
		}
	}
	return svc.EnsureRates(ctx, code, date)
}

func printTable(w io.Writer, table *core.RateTable) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%s rates as of %s", table.Base(), table.Date())))
	rates := table.Rates()
	codes := make([]string, 0, len(rates))
	for code := range rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "%s %s\n", codeStyle.Render(code), decimal.NewFromFloat(rates[code]).Round(4).String())
	}
}

func optional(args []string, i int) string {
	if len(args) > i {
		return strings.TrimSpace(args[i])
	}
	return ""
}
