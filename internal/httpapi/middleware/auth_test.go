package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

func TestAdminTokenOK(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-secret"), bcrypt.MinCost)
	assert.NoError(t, err)

	assert.True(t, adminTokenOK("plain", "plain", ""))
	assert.False(t, adminTokenOK("plai", "plain", ""))
	assert.True(t, adminTokenOK("hashed-secret", "", string(hash)))
	assert.True(t, adminTokenOK("hashed-secret", "plain", string(hash)))
	assert.False(t, adminTokenOK("wrong", "plain", string(hash)))
	assert.False(t, adminTokenOK("anything", "", ""))
}
