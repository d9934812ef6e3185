package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/cloudref/pkg/store"
)

func TestLoadAccount_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cloudinary-account.json",
		`{"cloudName": "demo", "apiKey": "123", "apiSecret": "shh"}`)

	creds, err := LoadAccount(path)
	require.NoError(t, err)
	assert.Equal(t, store.Credentials{CloudName: "demo", APIKey: "123", APISecret: "shh"}, creds)
}

func TestLoadAccount_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "account.yaml", "cloudName: demo\napiKey: \"123\"\napiSecret: file-secret\n")
	t.Setenv("CLOUDREF_ACCOUNT_API_SECRET", "env-secret")

	creds, err := LoadAccount(path)
	require.NoError(t, err)
	assert.Equal(t, "env-secret", creds.APISecret)
	assert.Equal(t, "demo", creds.CloudName)
}

func TestLoadAccount_EnvOnly(t *testing.T) {
	t.Setenv("CLOUDREF_ACCOUNT_CLOUD_NAME", "demo")
	t.Setenv("CLOUDREF_ACCOUNT_API_KEY", "k")
	t.Setenv("CLOUDREF_ACCOUNT_API_SECRET", "s")

	creds, err := LoadAccount(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "demo", creds.CloudName)
}

func TestLoadAccount_MissingFields(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cloudinary-account.json", `{"cloudName": "demo"}`)

	_, err := LoadAccount(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apiKey")
	assert.Contains(t, err.Error(), "apiSecret")
}

func TestLoadAccount_Malformed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cloudinary-account.json", `{"cloudName": `)
	_, err := LoadAccount(path)
	require.Error(t, err)
}
