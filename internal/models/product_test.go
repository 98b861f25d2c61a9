package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProductCreateRequestValidate(t *testing.T) {
	valid := func() *ProductCreateRequest {
		return &ProductCreateRequest{
			Title:    "Widget",
			Code:     "WID-001",
			Category: "tools",
			Price:    9.99,
			Stock:    10,
			Status:   true,
		}
	}

	assert.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*ProductCreateRequest)
	}{
		{"missing title", func(r *ProductCreateRequest) { r.Title = "" }},
		{"title too long", func(r *ProductCreateRequest) { r.Title = strings.Repeat("x", 201) }},
		{"missing code", func(r *ProductCreateRequest) { r.Code = " " }},
		{"code too long", func(r *ProductCreateRequest) { r.Code = strings.Repeat("c", 65) }},
		{"missing category", func(r *ProductCreateRequest) { r.Category = "" }},
		{"zero price", func(r *ProductCreateRequest) { r.Price = 0 }},
		{"negative price", func(r *ProductCreateRequest) { r.Price = -1 }},
		{"negative stock", func(r *ProductCreateRequest) { r.Stock = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(req)
			assert.Error(t, req.Validate())
		})
	}

	t.Run("zero stock is allowed", func(t *testing.T) {
		req := valid()
		req.Stock = 0
		assert.NoError(t, req.Validate())
	})
}

func TestProductAvailability(t *testing.T) {
	product := &Product{Stock: 3, Status: true}

	assert.True(t, product.HasStock(3))
	assert.False(t, product.HasStock(4))
	assert.True(t, product.IsAvailable())

	product.Stock = 0
	assert.False(t, product.IsAvailable())

	product.Stock = 3
	product.Status = false
	assert.False(t, product.IsAvailable())
}
