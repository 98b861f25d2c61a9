package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecommerce-platform/internal/models"
)

func newCartServiceFixture() (*CartService, *mockProductRepository, *mockCartRepository) {
	products := newMockProductRepository()
	carts := newMockCartRepository(products)
	return NewCartService(carts, products), products, carts
}

func TestCartService_AddAndUpdate(t *testing.T) {
	svc, products, _ := newCartServiceFixture()
	product := products.add("Widget", 10.00, 5)

	cart, err := svc.CreateCart(nil)
	require.NoError(t, err)

	cart, err = svc.AddProduct(cart.ID, product.ID, 2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)

	// Adding again merges into the existing line
	cart, err = svc.AddProduct(cart.ID, product.ID, 1)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)

	cart, err = svc.UpdateItemQuantity(cart.ID, product.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, cart.Items[0].Quantity)

	// Zero quantity removes the line
	cart, err = svc.UpdateItemQuantity(cart.ID, product.ID, 0)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestCartService_Validation(t *testing.T) {
	svc, products, _ := newCartServiceFixture()
	product := products.add("Widget", 10.00, 5)

	cart, err := svc.CreateCart(nil)
	require.NoError(t, err)

	_, err = svc.AddProduct(cart.ID, product.ID, 0)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = svc.AddProduct(cart.ID, 999, 1)
	assert.ErrorIs(t, err, models.ErrProductNotFound)

	_, err = svc.CreateCart([]models.CartItemInput{{ProductID: 999, Quantity: 1}})
	assert.ErrorIs(t, err, models.ErrProductNotFound)

	_, err = svc.AddProduct(404, product.ID, 1)
	assert.ErrorIs(t, err, models.ErrCartNotFound)
}

func TestCartService_Replace(t *testing.T) {
	svc, products, _ := newCartServiceFixture()
	first := products.add("Widget", 10.00, 5)
	second := products.add("Gadget", 7.50, 5)

	cart, err := svc.CreateCart([]models.CartItemInput{{ProductID: first.ID, Quantity: 3}})
	require.NoError(t, err)

	cart, err = svc.ReplaceCart(cart.ID, []models.CartItemInput{{ProductID: second.ID, Quantity: 2}})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, second.ID, cart.Items[0].ProductID)
	assert.Equal(t, 2, cart.Items[0].Quantity)

	_, err = svc.ReplaceCart(cart.ID, []models.CartItemInput{{ProductID: 999, Quantity: 1}})
	assert.ErrorIs(t, err, models.ErrProductNotFound)
}

func TestCartService_UnavailableItems(t *testing.T) {
	svc, products, _ := newCartServiceFixture()
	ok := products.add("Widget", 10.00, 5)
	outOfStock := products.add("Gadget", 7.50, 1)
	disabled := products.add("Retired", 3.00, 10)
	disabled.Status = false

	cart, err := svc.CreateCart([]models.CartItemInput{
		{ProductID: ok.ID, Quantity: 2},
		{ProductID: outOfStock.ID, Quantity: 2},
		{ProductID: disabled.ID, Quantity: 1},
	})
	require.NoError(t, err)

	unavailable, err := svc.UnavailableItems(cart.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{outOfStock.ID, disabled.ID}, unavailable)
}
