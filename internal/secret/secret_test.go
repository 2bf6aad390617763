package secret_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sldpreview/internal/secret"
)

func TestEnvName(t *testing.T) {
	assert.Equal(t, "SLDPREVIEW_SECRET_DB_1F2E_33", secret.EnvName("db:1f2e-33"))
}

func TestEnvStore_ReadsEnvironment(t *testing.T) {
	t.Setenv(secret.EnvName(secret.ProfileKey("abc")), "hunter2")
	s := secret.NewEnvStore()

	assert.Equal(t, "hunter2", secret.Password(s, "abc"))
	assert.Equal(t, "", secret.Password(s, "missing"))
	assert.Equal(t, "", secret.Password(s, ""))
}

func TestEnvStore_OverridesAndDelete(t *testing.T) {
	t.Setenv(secret.EnvName("db:x"), "from-env")
	s := secret.NewEnvStore()

	require.NoError(t, s.Set("db:x", []byte("typed")))
	v, err := s.Get("db:x")
	require.NoError(t, err)
	assert.Equal(t, "typed", string(v))

	require.NoError(t, s.Delete("db:x"))
	v, err = s.Get("db:x")
	require.NoError(t, err)
	assert.Nil(t, v, "deleted keys hide the environment value")
}

func TestNew(t *testing.T) {
	s, err := secret.New("env")
	require.NoError(t, err)
	assert.IsType(t, &secret.EnvStore{}, s)

	s, err = secret.New("")
	require.NoError(t, err)
	assert.IsType(t, &secret.KeychainStore{}, s)

	_, err = secret.New("vault")
	assert.Error(t, err)
}
