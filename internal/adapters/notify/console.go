package notify

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/alejandrodnm/swaproute/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier.
type Console struct {
	out      io.Writer
	table    bool
	validate bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table, validate bool) *Console {
	return &Console{out: os.Stdout, table: table, validate: validate}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table, validate bool) *Console {
	return &Console{out: w, table: table, validate: validate}
}

// Notify imprime el ranking de quotes en el modo configurado.
func (c *Console) Notify(_ context.Context, ranked []domain.RankedQuote) error {
	if len(ranked) == 0 {
		fmt.Fprintf(c.out, "[%s] no quotes available\n", time.Now().Format("15:04:05"))
		return nil
	}

	if c.table {
		c.printFull(ranked)
	} else {
		c.printCompact(ranked)
	}

	if c.validate {
		c.printBreakdown(ranked)
	}

	return nil
}

// printCompact imprime lo esencial en una línea.
func (c *Console) printCompact(ranked []domain.RankedQuote) {
	now := time.Now().Format("15:04:05")
	best := ranked[0]

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s→%s: %d quotes, best %s net=%s",
		now,
		best.Quote.TokenIn.Symbol, best.Quote.TokenOut.Symbol,
		len(ranked),
		best.Quote.Venue,
		formatUnits(best.NetOutput, best.Quote.TokenOut.Decimals))

	shown := 0
	for _, r := range ranked[1:] {
		if shown >= 3 {
			break
		}
		fmt.Fprintf(&sb, " | %s %s", r.Quote.Venue,
			formatUnits(r.NetOutput, r.Quote.TokenOut.Decimals))
		shown++
	}

	fmt.Fprintln(c.out, sb.String())
}

// printFull imprime la tabla completa del ranking.
func (c *Console) printFull(ranked []domain.RankedQuote) {
	now := time.Now().Format("15:04:05")
	best := ranked[0].Quote

	fmt.Fprintf(c.out, "\n[%s] %s → %s  in=%s  chain=%d  (%d venues)\n",
		now, best.TokenIn.Symbol, best.TokenOut.Symbol,
		formatUnits(best.AmountIn, best.TokenIn.Decimals),
		best.TokenIn.ChainID, len(ranked))

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Venue", "Gross out", "Net out", "Impact", "Gas", "Conf", "Hops", "Age")

	for i, r := range ranked {
		q := r.Quote

		netLabel := formatUnits(r.NetOutput, q.TokenOut.Decimals)
		if r.CostAdjusted {
			netLabel += "*"
		}

		table.Append(
			fmt.Sprintf("%d", i+1),
			q.Venue,
			formatUnits(q.AmountOut, q.TokenOut.Decimals),
			netLabel,
			fmt.Sprintf("%.2f%%", float64(q.PriceImpactBps)/100),
			fmt.Sprintf("%d", q.GasEstimate),
			fmt.Sprintf("%.2f", q.Confidence),
			routeLabel(q.Route),
			q.Age(time.Now()).Round(time.Second).String(),
		)
	}

	table.Render()

	fmt.Fprintln(c.out, "  Net out = gross - platform fee - gas cost | * = gas cost included")
	fmt.Fprintln(c.out, "  Ranking: net out desc > confidence desc > gas cost asc")
}

// printBreakdown imprime el desglose del cálculo de los top 3.
func (c *Console) printBreakdown(ranked []domain.RankedQuote) {
	top := ranked
	if len(top) > 3 {
		top = ranked[:3]
	}

	fmt.Fprintln(c.out, "=== BREAKDOWN — net output step-by-step ===")

	for i, r := range top {
		q := r.Quote

		fmt.Fprintf(c.out, "\n--- #%d: %s  [conf %.2f] ---\n", i+1, q.Venue, q.Confidence)
		fmt.Fprintf(c.out, "  1. GROSS OUTPUT: %s %s\n",
			formatUnits(q.AmountOut, q.TokenOut.Decimals), q.TokenOut.Symbol)

		fee := new(big.Int).Sub(q.AmountOut, feeAdjusted(q.AmountOut))
		fmt.Fprintf(c.out, "  2. PLATFORM FEE: -%s %s\n",
			formatUnits(fee, q.TokenOut.Decimals), q.TokenOut.Symbol)

		if q.CostNative != nil && q.CostNative.Sign() > 0 {
			fmt.Fprintf(c.out, "  3. GAS COST: %s wei (gas %d)\n", q.CostNative.String(), q.GasEstimate)
		} else {
			fmt.Fprintf(c.out, "  3. GAS COST: no estimate\n")
		}

		fmt.Fprintf(c.out, "  >>> NET OUTPUT: %s %s\n",
			formatUnits(r.NetOutput, q.TokenOut.Decimals), q.TokenOut.Symbol)

		if len(q.Route) > 1 {
			fmt.Fprintf(c.out, "  ROUTE:\n")
			for _, hop := range q.Route {
				fmt.Fprintf(c.out, "     %s → %s via %s (fee %dbps)\n",
					hop.TokenIn.Symbol, hop.TokenOut.Symbol, hop.Venue, hop.FeeBps)
			}
		}
	}
	fmt.Fprintln(c.out)
}

// --- helpers ---

// feeAdjusted replica el descuento estándar de 30bps para el desglose
// informativo. El cálculo autoritativo vive en pricing.
func feeAdjusted(amount *big.Int) *big.Int {
	v := new(big.Int).Mul(amount, big.NewInt(9970))
	return v.Quo(v, big.NewInt(10000))
}

// formatUnits convierte un amount en unidades mínimas a decimal humano,
// truncado a 6 decimales.
func formatUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	f := new(big.Float).SetInt(amount)
	div := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	f.Quo(f, div)
	s := f.Text('f', 6)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

// routeLabel resume la ruta: "direct" o "WETH>DAI>USDC".
func routeLabel(route []domain.RouteHop) string {
	if len(route) <= 1 {
		return "direct"
	}
	parts := make([]string, 0, len(route)+1)
	parts = append(parts, route[0].TokenIn.Symbol)
	for _, hop := range route {
		parts = append(parts, hop.TokenOut.Symbol)
	}
	return strings.Join(parts, ">")
}
