package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/AshkanYarmoradi/go-strand/adapters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApprovalService_CreateGate(t *testing.T) {
	service := NewApprovalService()

	gate, err := service.CreateGate(context.Background(), adapters.GateRequest{
		TenantID:       "tenant-a",
		SagaInstanceID: "inst-1",
		SagaName:       "payout",
		StepName:       "manager-approval",
		Title:          "Approve payout",
	})

	require.NoError(t, err)
	require.NotNil(t, gate)
	assert.NotEmpty(t, gate.ID)
	assert.False(t, gate.CreatedAt.IsZero())

	recorded := service.Gates()
	require.Len(t, recorded, 1)
	assert.Equal(t, gate.ID, recorded[0].Gate.ID)
	assert.Equal(t, "manager-approval", recorded[0].Request.StepName)
}

func TestApprovalService_CreateGate_RequiresInstanceID(t *testing.T) {
	service := NewApprovalService()

	_, err := service.CreateGate(context.Background(), adapters.GateRequest{
		SagaName: "payout",
	})

	assert.Error(t, err)
}

func TestApprovalService_FailWith(t *testing.T) {
	service := NewApprovalService()
	boom := errors.New("approval backend down")
	service.FailWith(boom)

	_, err := service.CreateGate(context.Background(), adapters.GateRequest{
		SagaInstanceID: "inst-1",
	})
	assert.ErrorIs(t, err, boom)

	service.FailWith(nil)
	_, err = service.CreateGate(context.Background(), adapters.GateRequest{
		SagaInstanceID: "inst-1",
	})
	assert.NoError(t, err)
}
