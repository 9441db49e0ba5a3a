package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIdFromLocation reads the id of a new contact from the redirect after the POST.
func TestIdFromLocation(t *testing.T) {
	id, err := idFromLocation("/contacts/42")
	assert.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = idFromLocation("")
	assert.Error(t, err)
	_, err = idFromLocation("/contacts/create")
	assert.Error(t, err)
}
