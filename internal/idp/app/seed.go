package app

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/internal/idp/service"
	"gopkg.in/yaml.v3"
)

// seedFile is the YAML layout of IDP_SEED_FILE.
type seedFile struct {
	Clients []seedClient `yaml:"clients"`
	Users   []seedUser   `yaml:"users"`
}

type seedClient struct {
	ID                string   `yaml:"id"`
	Name              string   `yaml:"name"`
	Type              string   `yaml:"type"`
	Secret            string   `yaml:"secret"`
	Scopes            []string `yaml:"scopes"`
	DefaultScopes     []string `yaml:"default_scopes"`
	GrantTypes        []string `yaml:"grant_types"`
	ResponseTypes     []string `yaml:"response_types"`
	RedirectURIs      []string `yaml:"redirect_uris"`
	CORSOrigins       []string `yaml:"cors_origins"`
	AllowURIWildcards bool     `yaml:"allow_uri_wildcards"`
	SkipConsent       bool     `yaml:"skip_consent"`
}

type seedUser struct {
	Username      string `yaml:"username"`
	Name          string `yaml:"name"`
	Email         string `yaml:"email"`
	EmailVerified bool   `yaml:"email_verified"`
	Password      string `yaml:"password"`
	TOTP          bool   `yaml:"totp"`
}

// LoadSeedFile reads the seed file. Unknown keys are an error so typos do
// not silently drop settings.
func LoadSeedFile(path string) (service.SeedData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return service.SeedData{}, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(raw)
}

// ParseSeed decodes a seed document.
func ParseSeed(raw []byte) (service.SeedData, error) {
	var f seedFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return service.SeedData{}, fmt.Errorf("failed to parse seed file: %w", err)
	}

	var data service.SeedData
	for _, c := range f.Clients {
		responseTypes := c.ResponseTypes
		if len(responseTypes) == 0 && slices.Contains(c.GrantTypes, domain.GrantTypeAuthorizationCode) {
			responseTypes = []string{domain.ResponseTypeCode}
		}
		data.Clients = append(data.Clients, service.ClientParams{
			ID:                c.ID,
			Name:              c.Name,
			Type:              domain.ClientType(c.Type),
			Secret:            c.Secret,
			Scopes:            c.Scopes,
			DefaultScopes:     c.DefaultScopes,
			GrantTypes:        c.GrantTypes,
			ResponseTypes:     responseTypes,
			RedirectURIs:      c.RedirectURIs,
			CORSOrigins:       c.CORSOrigins,
			AllowURIWildcards: c.AllowURIWildcards,
			SkipConsent:       c.SkipConsent,
		})
	}
	for _, u := range f.Users {
		data.Users = append(data.Users, service.SeedUser{
			NewUser: service.NewUser{
				Username:      u.Username,
				Name:          u.Name,
				Email:         u.Email,
				EmailVerified: u.EmailVerified,
				Password:      u.Password,
			},
			EnrollTOTP: u.TOTP,
		})
	}
	return data, nil
}

