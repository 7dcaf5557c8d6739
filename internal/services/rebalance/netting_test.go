package rebalance

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

func adjustmentsOf(pairs ...any) []domain.Adjustment {
	out := make([]domain.Adjustment, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.Adjustment{
			CoinType:        pairs[i].(string),
			DeltaPercentage: dec(pairs[i+1].(string)),
		})
	}
	return out
}

type legView struct {
	from, to, points string
	kind             domain.TradeKind
}

func viewLegs(legs []Leg) []legView {
	out := make([]legView, 0, len(legs))
	for _, l := range legs {
		out = append(out, legView{from: l.From, to: l.To, points: l.Points.String(), kind: l.Kind})
	}
	return out
}

func TestDeque_FrontReinsertion(t *testing.T) {
	q := newDeque([]position{{coinType: "A"}, {coinType: "B"}})
	require.Equal(t, 2, q.Len())

	a := q.PopFront()
	require.Equal(t, "A", a.coinType)
	q.PushFront(a)
	require.Equal(t, "A", q.PopFront().coinType)
	require.Equal(t, "B", q.PopFront().coinType)
	require.Equal(t, 0, q.Len())

	q.PushFront(position{coinType: "C"})
	q.PushFront(position{coinType: "D"})
	require.Equal(t, []position{{coinType: "D"}, {coinType: "C"}}, q.Remaining())
}

func TestNet_Scenario(t *testing.T) {
	result, err := net(adjustmentsOf("A", "-12", "B", "-4", "C", "9", "D", "7"), "USDC")
	require.NoError(t, err)

	require.Equal(t, []legView{
		{from: "A", to: "D", points: "7", kind: domain.TradeKindNetting},
		{from: "A", to: "C", points: "5", kind: domain.TradeKindNetting},
		{from: "B", to: "C", points: "4", kind: domain.TradeKindNetting},
	}, viewLegs(result.legs))
	require.Empty(t, result.residualDeficits)
	require.Empty(t, result.residualSurpluses)
}

func TestNet_ExactExhaustionDropsBothSides(t *testing.T) {
	result, err := net(adjustmentsOf("A", "-5", "B", "5"), "USDT")
	require.NoError(t, err)
	require.Equal(t, []legView{{from: "A", to: "B", points: "5", kind: domain.TradeKindNetting}}, viewLegs(result.legs))
	require.Empty(t, result.residualDeficits)
	require.Empty(t, result.residualSurpluses)
}

func TestNet_PartialFillKeepsFrontPriority(t *testing.T) {
	// a re-sort after step three would pair B(-8) with Z(+9); front re-insertion keeps A(-3) first
	result, err := net(adjustmentsOf("A", "-10", "B", "-8", "X", "3", "Y", "4", "Z", "9"), "USDT")
	require.NoError(t, err)

	require.Equal(t, []legView{
		{from: "A", to: "X", points: "3", kind: domain.TradeKindNetting},
		{from: "A", to: "Y", points: "4", kind: domain.TradeKindNetting},
		{from: "A", to: "Z", points: "3", kind: domain.TradeKindNetting},
		{from: "B", to: "Z", points: "6", kind: domain.TradeKindNetting},
		{from: "B", to: "USDT", points: "2", kind: domain.TradeKindLiquidation},
	}, viewLegs(result.legs))
	require.Len(t, result.residualDeficits, 1)
	require.Empty(t, result.residualSurpluses)
}

func TestNet_ResidualCupsFundedFromNumeraire(t *testing.T) {
	result, err := net(adjustmentsOf("A", "-3", "B", "4", "C", "6"), "USDT")
	require.NoError(t, err)

	require.Equal(t, []legView{
		{from: "A", to: "B", points: "3", kind: domain.TradeKindNetting},
		{from: "USDT", to: "B", points: "1", kind: domain.TradeKindFunding},
		{from: "USDT", to: "C", points: "6", kind: domain.TradeKindFunding},
	}, viewLegs(result.legs))
	require.Empty(t, result.residualDeficits)
	require.Len(t, result.residualSurpluses, 2)
}

func TestNet_OnlyDeficits(t *testing.T) {
	result, err := net(adjustmentsOf("A", "-3", "B", "-6"), "USDT")
	require.NoError(t, err)
	require.Equal(t, []legView{
		{from: "B", to: "USDT", points: "6", kind: domain.TradeKindLiquidation},
		{from: "A", to: "USDT", points: "3", kind: domain.TradeKindLiquidation},
	}, viewLegs(result.legs))
}

func TestNet_StableOrderOnTies(t *testing.T) {
	result, err := net(adjustmentsOf("A", "-4", "B", "-4", "C", "4", "D", "4"), "USDT")
	require.NoError(t, err)
	require.Equal(t, []legView{
		{from: "A", to: "C", points: "4", kind: domain.TradeKindNetting},
		{from: "B", to: "D", points: "4", kind: domain.TradeKindNetting},
	}, viewLegs(result.legs))
}

func TestNet_IgnoresNumeraireAndZeroDeltas(t *testing.T) {
	result, err := net(adjustmentsOf("USDT", "-20", "A", "0", "B", "3"), "USDT")
	require.NoError(t, err)
	require.Equal(t, []legView{
		{from: "USDT", to: "B", points: "3", kind: domain.TradeKindFunding},
	}, viewLegs(result.legs))
}
