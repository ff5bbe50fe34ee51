package repository

import (
	"context"
	"testing"

	"github.com/Arseniidemydov/Relo-Radar-Dialer/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLeadRepositorySeedLead(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryLeadRepository()

	leads, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "1", leads[0].ID)
	assert.Equal(t, "arsenii", leads[0].Name)
	assert.Equal(t, "+41762693103", leads[0].Phone)
}

func TestMemoryLeadRepositoryCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryLeadRepository()

	created, err := repo.Create(ctx, &domain.CreateLeadRequest{
		Name:  "Jane Doe",
		Phone: "+41761112233",
		Notes: "from website",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, domain.LeadStatusNotContacted, created.Status)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", got.Name)

	_, err = repo.GetByID(ctx, "does-not-exist")
	assert.Error(t, err)
}

func TestMemoryLeadRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryLeadRepository()

	leads, err := repo.GetAll(ctx)
	require.NoError(t, err)
	leads[0].Name = "mutated"

	again, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "arsenii", again[0].Name)
}

func TestMemoryLeadRepositoryBulkCreateOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryLeadRepository()

	created, err := repo.BulkCreate(ctx, []*domain.CreateLeadRequest{
		{Name: "First", Phone: "+1000"},
		{Name: "Second", Phone: "+2000"},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)

	leads, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, leads, 3)
	assert.Equal(t, "Second", leads[0].Name)
	assert.Equal(t, "First", leads[1].Name)
}
