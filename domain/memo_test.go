package domain

import (
	"testing"

	"curvebond/domain/curve"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCurveMemo(t *testing.T) {
	require := require.New(t)

	c, err := curve.New(curve.SquareRoot{Slope: decimal.RequireFromString("0.35"), Power: decimal.RequireFromString("0.5")}, curve.NewDecimalPlaces(6, 6))
	require.NoError(err)
	memo := NewCurveMemo(c, "ustake")

	var decoded CurveMemo
	require.NoError(decoded.FromJson(memo.ToJson()))
	require.True(memo.Matches(&decoded))

	decoded.Params.Slope = decimal.RequireFromString("0.350")
	require.True(memo.Matches(&decoded))

	decoded.Params.Slope = decimal.RequireFromString("0.36")
	require.False(memo.Matches(&decoded))

	decoded = *NewCurveMemo(c, "uother")
	require.False(memo.Matches(&decoded))
}

func TestPayoutIsTriable(t *testing.T) {
	require.True(t, (&Payout{State: PayoutStateNew}).IsTriable(3))
	require.True(t, (&Payout{State: PayoutStateError, Retried: 2}).IsTriable(3))
	require.False(t, (&Payout{State: PayoutStateError, Retried: 3}).IsTriable(3))
	require.False(t, (&Payout{State: PayoutStateDone}).IsTriable(3))
	require.False(t, (&Payout{State: PayoutStateInProgress}).IsTriable(3))
}
