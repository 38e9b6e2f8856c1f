package cmd

import (
	"fmt"
	"io"
	"math/big"

	"curvebond/domain/config"
	"curvebond/domain/curve"
	"curvebond/domain/model"
	"curvebond/domain/util"

	"github.com/spf13/cobra"
)

var quoteCmd = &cobra.Command{
	Use:   "quote [supply...]",
	Short: "Prints prices of the configured curve",
	Long: `Prints the spot price, the reserve backing the supply and the supply bought
back by that reserve, for each raw supply amount given. Without arguments a few
whole-token supplies are quoted. Works offline.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := config.GetCurve()

		supplies, err := quoteSupplies(c, args)
		if err != nil {
			return err
		}
		return printQuotes(cmd.OutOrStdout(), c, config.GetReserveDenom(), supplies)
	},
}

func quoteSupplies(c *curve.Curve, args []string) ([]model.Amount, error) {
	supplies := make([]model.Amount, 0, len(args))
	for _, arg := range args {
		a, err := model.ParseAmount(arg)
		if err != nil {
			return nil, fmt.Errorf("supply %q: %w", arg, err)
		}
		supplies = append(supplies, a)
	}
	if len(supplies) > 0 {
		return supplies, nil
	}

	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(c.Places().Supply)), nil)
	for _, whole := range []int64{1, 10, 100, 1_000, 10_000, 100_000} {
		a, err := model.AmountFromBig(new(big.Int).Mul(unit, big.NewInt(whole)))
		if err != nil {
			break
		}
		supplies = append(supplies, a)
	}
	return supplies, nil
}

func printQuotes(w io.Writer, c *curve.Curve, denom string, supplies []model.Amount) error {
	places := c.Places()
	fmt.Fprintf(w, "------------- %v CURVE -----------------\n", c.Shape().Type())
	for i, supply := range supplies {
		reserve, err := c.ReserveForSupply(supply)
		if err != nil {
			return fmt.Errorf("supply %v: %w", supply, err)
		}
		back, err := c.SupplyForReserve(reserve)
		if err != nil {
			return fmt.Errorf("reserve %v: %w", reserve, err)
		}
		fmt.Fprintf(w, "#%03d - supply %v | price %v | reserve %v (%v) | buys back %v\n",
			i+1,
			util.HumanAmount(supply, places.Supply, ""),
			util.HumanDecimal(c.SpotPrice(supply)),
			util.HumanAmount(reserve, places.Reserve, denom),
			util.RawString(reserve, "raw"),
			util.HumanAmount(back, places.Supply, ""))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(quoteCmd)
}
