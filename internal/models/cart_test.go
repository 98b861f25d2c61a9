package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCartItemInputValidate(t *testing.T) {
	assert.NoError(t, (&CartItemInput{ProductID: 1, Quantity: 1}).Validate())
	assert.Error(t, (&CartItemInput{ProductID: 0, Quantity: 1}).Validate())
	assert.Error(t, (&CartItemInput{ProductID: 1, Quantity: 0}).Validate())
}
