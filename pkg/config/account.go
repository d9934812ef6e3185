package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/viper"

	"github.com/fulmenhq/cloudref/pkg/store"
)

// AccountEnvPrefix namespaces credential overrides, e.g. CLOUDREF_ACCOUNT_API_SECRET.
const AccountEnvPrefix = EnvPrefix + "_ACCOUNT"

// LoadAccount reads store credentials from path (JSON or YAML, keys
// cloudName, apiKey, apiSecret). Environment variables override file values;
// the file may be absent when the environment supplies every field.
func LoadAccount(path string) (store.Credentials, error) {
	v := viper.New()
	bindings := map[string]string{
		"cloudName": AccountEnvPrefix + "_CLOUD_NAME",
		"apiKey":    AccountEnvPrefix + "_API_KEY",
		"apiSecret": AccountEnvPrefix + "_API_SECRET",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return store.Credentials{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return store.Credentials{}, fmt.Errorf("read account file %s: %w", path, err)
		}
	}

	var creds store.Credentials
	if err := v.Unmarshal(&creds); err != nil {
		return store.Credentials{}, fmt.Errorf("decode account file %s: %w", path, err)
	}
	if err := creds.Validate(); err != nil {
		return store.Credentials{}, fmt.Errorf("account %s: %w", path, err)
	}
	return creds, nil
}
