package service

import (
	"context"
	"testing"

	"grape-store/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProduct(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, err := env.catalog.CreateProduct(ctx, &ProductRequest{Name: "  Flame Seedless ", Price: 140, Stock: 20})
	require.NoError(t, err)
	assert.Equal(t, "Flame Seedless", p.Name)
	assert.Equal(t, "kg", p.Unit)
	assert.True(t, p.IsActive)

	_, err = env.catalog.CreateProduct(ctx, &ProductRequest{Name: "", Price: 10})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.catalog.CreateProduct(ctx, &ProductRequest{Name: "x", Price: -1})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.catalog.CreateProduct(ctx, &ProductRequest{Name: "x", Stock: -1})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestInactiveProductsHiddenFromStorefront(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.addProduct(t, "Manik Chaman", 80, 5)
	env.addProduct(t, "Sonaka", 90, 5)

	require.NoError(t, env.catalog.DeactivateProduct(ctx, p.ID))

	_, err := env.catalog.GetProduct(ctx, p.ID, false)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := env.catalog.GetProduct(ctx, p.ID, true)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	list, err := env.catalog.ListProducts(ctx, store.ProductFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Sonaka", list[0].Name)
}

func TestUpdateProductNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.catalog.UpdateProduct(context.Background(), 99, &ProductRequest{Name: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}
