package contract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/contract-engine/contract"
	"github.com/warp/contract-engine/generic"
)

func d(s string) generic.Date { return generic.MustParseDate(s) }

func TestResolveValidity(t *testing.T) {
	th := contract.DefaultThresholds()
	today := d("2024-11-20")

	tests := []struct {
		name string
		end  *generic.Date
		typ  contract.Type
		want contract.ValidityState
	}{
		{"open-ended", nil, contract.TypeIndefinite, contract.ValidityActive},
		{"41 days left", d("2024-12-31").Ptr(), contract.TypeFixedTerm, contract.ValidityAboutToExpire},
		{"45 days left is still a warning", d("2025-01-04").Ptr(), contract.TypeFixedTerm, contract.ValidityAboutToExpire},
		{"46 days left", d("2025-01-05").Ptr(), contract.TypeFixedTerm, contract.ValidityActive},
		{"35 days left is critical", d("2024-12-25").Ptr(), contract.TypeFixedTerm, contract.ValidityCritical},
		{"1 day left", d("2024-11-21").Ptr(), contract.TypeFixedTerm, contract.ValidityCritical},
		{"ends today", d("2024-11-20").Ptr(), contract.TypeFixedTerm, contract.ValidityActive},
		{"ended yesterday", d("2024-11-19").Ptr(), contract.TypeFixedTerm, contract.ValidityTerminated},
		{"non fixed-term near end", d("2024-12-01").Ptr(), contract.TypePerTask, contract.ValidityActive},
		{"non fixed-term ended", d("2024-01-01").Ptr(), contract.TypeInternship, contract.ValidityTerminated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, contract.ResolveValidity(tt.end, tt.typ, today, th))
		})
	}
}

func TestDaysRemaining(t *testing.T) {
	today := d("2024-11-20")

	left := contract.DaysRemaining(d("2024-12-31").Ptr(), today)
	require.NotNil(t, left)
	assert.Equal(t, 41, *left)

	zero := contract.DaysRemaining(d("2024-11-20").Ptr(), today)
	require.NotNil(t, zero)
	assert.Equal(t, 0, *zero)

	assert.Nil(t, contract.DaysRemaining(nil, today))
	assert.Nil(t, contract.DaysRemaining(d("2024-11-01").Ptr(), today))
}

func TestResolveValidity_CustomThresholds(t *testing.T) {
	th := contract.Thresholds{CriticalDays: 10, WarningDays: 20}

	got := contract.ResolveValidity(d("2024-12-05").Ptr(), contract.TypeFixedTerm, d("2024-11-20"), th)

	assert.Equal(t, contract.ValidityAboutToExpire, got)
}
