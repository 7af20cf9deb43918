package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/macrolens/shelfprice/internal/domain"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	searchStores []string
	searchSort   string
	searchJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search [term]",
	Short: "Search every enabled store once and print the ranked result",
	Long: `Runs one aggregated search. Products are merged across stores, deduplicated
and sorted by price per unit unless --sort price is given. Stores that failed
are reported on stderr.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringSliceVarP(&searchStores, "store", "s", nil, "restrict to these stores (ah, jumbo, plus)")
	searchCmd.Flags().StringVar(&searchSort, "sort", string(domain.SortByPricePerUnit), "sort key: price_per_unit or price")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	request, err := newSearchRequest(args, searchStores, searchSort)
	if err != nil {
		return err
	}

	// stdout is reserved for results
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	application, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	result, err := application.search.Search(ctx, request)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	printFailures(cmd.ErrOrStderr(), result.Failures)
	if searchJSON {
		return outputSearchJSON(cmd.OutOrStdout(), result)
	}
	return outputSearchTable(cmd.OutOrStdout(), result, isTerminal(cmd.OutOrStdout()))
}

// newSearchRequest joins the term arguments and validates the store names
func newSearchRequest(args, stores []string, sortBy string) (*domain.SearchRequest, error) {
	request := &domain.SearchRequest{
		Term:   strings.Join(args, " "),
		SortBy: domain.SortKey(sortBy),
	}
	if _, err := domain.ParseSortKey(sortBy); err != nil {
		return nil, err
	}
	for _, name := range stores {
		id, err := domain.ParseSourceID(name)
		if err != nil {
			return nil, err
		}
		request.Sources = append(request.Sources, id)
	}
	return request, nil
}

func outputSearchJSON(w io.Writer, result *domain.SearchResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func outputSearchTable(w io.Writer, result *domain.SearchResult, styled bool) error {
	if len(result.Products) == 0 {
		_, err := fmt.Fprintln(w, "No products found.")
		return err
	}

	rows := make([][]string, 0, len(result.Products))
	for i, p := range result.Products {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			string(p.Source),
			p.Name,
			"€ " + domain.FormatPrice(p.Price),
			p.UnitSize,
			formatPerUnit(p.PricePerUnit),
			promoLabel(p),
		})
	}

	t := table.New().
		Headers("#", "STORE", "PRODUCT", "PRICE", "UNIT", "PER UNIT", "PROMO").
		Rows(rows...)
	if styled {
		header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
		cell := lipgloss.NewStyle().Padding(0, 1)
		t = t.Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return header
				}
				return cell
			})
	} else {
		t = t.Border(lipgloss.HiddenBorder())
	}

	_, err := fmt.Fprintf(w, "%s\n%d products\n", t.String(), result.Count)
	return err
}

func printFailures(w io.Writer, failures []domain.SourceFailure) {
	for _, f := range failures {
		fmt.Fprintf(w, "warning: %s failed: %s\n", f.Source, f.Error)
	}
}

func formatPerUnit(ppu *domain.PricePerUnit) string {
	if ppu == nil {
		return "-"
	}
	unit := strings.TrimPrefix(string(ppu.Kind), "per-")
	return "€ " + domain.FormatPrice(ppu.Value) + "/" + unit
}

func promoLabel(p domain.Product) string {
	switch {
	case !p.IsPromotional:
		return ""
	case p.OriginalPrice != nil:
		return "was € " + domain.FormatPrice(*p.OriginalPrice)
	default:
		return "yes"
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
