package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "farmtrace/internal/errors"
)

var (
	allStatuses = []BatchStatus{StatusHarvested, StatusInTransit, StatusAtDistributor, StatusAtRetailer, StatusSold}
	allRoles    = []Role{RoleFarmer, RoleDistributor, RoleRetailer, RoleConsumer}
)

func TestNextTransition_Table(t *testing.T) {
	valid := map[BatchStatus]map[Role]Transition{
		StatusHarvested:     {RoleDistributor: {Next: StatusAtDistributor, Event: EventPickup}},
		StatusInTransit:     {RoleDistributor: {Next: StatusAtDistributor, Event: EventPickup}},
		StatusAtDistributor: {RoleRetailer: {Next: StatusAtRetailer, Event: EventDelivery}},
		StatusAtRetailer:    {RoleConsumer: {Next: StatusSold, Event: EventSale}},
	}

	for _, status := range allStatuses {
		for _, role := range allRoles {
			t.Run(string(status)+"/"+string(role), func(t *testing.T) {
				got, err := NextTransition(status, role)
				want, ok := valid[status][role]
				if ok {
					require.NoError(t, err)
					assert.Equal(t, want, got)
					assert.Greater(t, got.Next.Code(), status.Code())
					return
				}
				require.Error(t, err)
				assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
				assert.Equal(t, Transition{}, got)
			})
		}
	}
}

func TestNextTransition_ConsumerCannotBuyFromFarmer(t *testing.T) {
	_, err := NextTransition(StatusHarvested, RoleConsumer)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestTransitTransition(t *testing.T) {
	got, err := TransitTransition(StatusHarvested, RoleFarmer)
	require.NoError(t, err)
	assert.Equal(t, Transition{Next: StatusInTransit, Event: EventTransit}, got)

	for _, status := range allStatuses {
		for _, role := range allRoles {
			if status == StatusHarvested && role == RoleFarmer {
				continue
			}
			_, err := TransitTransition(status, role)
			assert.ErrorIs(t, err, apperrors.ErrInvalidTransition, "%s/%s", status, role)
		}
	}
}

func TestSoldIsTerminal(t *testing.T) {
	for _, role := range allRoles {
		_, err := NextTransition(StatusSold, role)
		assert.Error(t, err)
	}
	assert.True(t, StatusSold.Terminal())
	assert.False(t, StatusAtRetailer.Terminal())
}

func TestParseRoleAndStatus(t *testing.T) {
	r, ok := ParseRole("retailer")
	assert.True(t, ok)
	assert.Equal(t, RoleRetailer, r)
	_, ok = ParseRole("admin")
	assert.False(t, ok)

	s, ok := ParseBatchStatus("in_transit")
	assert.True(t, ok)
	assert.Equal(t, uint8(1), s.Code())
	_, ok = ParseBatchStatus("lost")
	assert.False(t, ok)
}
