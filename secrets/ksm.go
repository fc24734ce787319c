package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"

	ksm "github.com/keeper-security/secrets-manager-go/core"
)

const ksmConfigName = "KSM_CONFIG_BASE64"

// KSMProvider resolves secrets from Keeper Secrets Manager. A secret name
// matches the title of a record shared to the KSM application; the record's
// password field is the value.
type KSMProvider struct {
	sm *ksm.SecretsManager
}

// NewKSMProviderFromEnv bootstraps the Keeper client from the base64 KSM
// configuration in the environment.
func NewKSMProviderFromEnv() (*KSMProvider, error) {
	var configBase64 = os.Getenv(ksmConfigName)
	if len(configBase64) == 0 {
		return nil, fmt.Errorf("environment variable %q is not set", ksmConfigName)
	}
	var config = ksm.NewMemoryKeyValueStorage(configBase64)
	var sm = ksm.NewSecretsManager(&ksm.ClientOptions{
		Config: config,
	})
	return &KSMProvider{sm: sm}, nil
}

func (p *KSMProvider) GetPassword(_ context.Context, name string) (value string, err error) {
	var records []*ksm.Record
	if records, err = p.sm.GetSecrets(nil); err != nil {
		return
	}
	for _, r := range records {
		if r.Title() != name {
			continue
		}
		value = r.Password()
		if len(value) == 0 {
			err = errors.New("record " + name + " has an empty password field")
		}
		return
	}
	err = fmt.Errorf("record %q was not found. Make sure the record is shared to the KSM application", name)
	return
}
