package ghWeb

import (
	"fmt"
	"os"

	"github.com/MrEthical07/ghWeb/session"
	"gopkg.in/yaml.v3"
)

// credentialsFile is the on-disk YAML layout:
//
//	username: octocat
//	password: hunter2
//	otp_seed: JBSWY3DPEHPK3PXP
//	cookies:
//	  - name: user_session
//	    value: "..."
type credentialsFile struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	OTPSeed  string `yaml:"otp_seed"`
	Cookies  []struct {
		Name  string `yaml:"name"`
		Value string `yaml:"value"`
	} `yaml:"cookies"`
}

// LoadCredentials reads a YAML credentials file and validates that it
// carries at least one usable authentication path.
func LoadCredentials(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("read credentials file: %w", err)
	}

	var file credentialsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Credentials{}, fmt.Errorf("parse credentials file %s: %w", path, err)
	}

	creds := Credentials{
		Username: file.Username,
		Password: file.Password,
		OTPSeed:  file.OTPSeed,
	}
	for _, c := range file.Cookies {
		if c.Name == "" || c.Value == "" {
			return Credentials{}, fmt.Errorf("credentials file %s: cookie entries need name and value", path)
		}
		creds.Cookies = append(creds.Cookies, session.Cookie{Name: c.Name, Value: c.Value})
	}

	if err := creds.validate(); err != nil {
		return Credentials{}, fmt.Errorf("credentials file %s: %w", path, err)
	}
	return creds, nil
}
