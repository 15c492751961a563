package config

import (
	"fmt"
	"os"
	"strings"
)

// Credential environment variables. All chat variables are always required;
// the Twitter set is required only when publishing is enabled.
const (
	EnvFlipsideEmail    = "FLIPSIDE_EMAIL"
	EnvFlipsidePassword = "FLIPSIDE_PASSWORD"

	EnvTwitterAPIKey       = "TWITTER_API_KEY"
	EnvTwitterAPISecret    = "TWITTER_API_SECRET"
	EnvTwitterAccessToken  = "TWITTER_ACCESS_TOKEN"
	EnvTwitterAccessSecret = "TWITTER_ACCESS_SECRET"
	EnvTwitterBearerToken  = "TWITTER_BEARER_TOKEN"
)

// Credentials carries every secret the pipeline uses. Loaded from the
// environment only; never serialized.
type Credentials struct {
	FlipsideEmail    string
	FlipsidePassword string

	TwitterAPIKey       string
	TwitterAPISecret    string
	TwitterAccessToken  string
	TwitterAccessSecret string
	TwitterBearerToken  string
}

// LoadCredentials reads every credential variable. Validation is separate so
// commands that never publish can skip the Twitter set.
func LoadCredentials() Credentials {
	return Credentials{
		FlipsideEmail:    os.Getenv(EnvFlipsideEmail),
		FlipsidePassword: os.Getenv(EnvFlipsidePassword),

		TwitterAPIKey:       os.Getenv(EnvTwitterAPIKey),
		TwitterAPISecret:    os.Getenv(EnvTwitterAPISecret),
		TwitterAccessToken:  os.Getenv(EnvTwitterAccessToken),
		TwitterAccessSecret: os.Getenv(EnvTwitterAccessSecret),
		TwitterBearerToken:  os.Getenv(EnvTwitterBearerToken),
	}
}

// Validate reports every missing required variable at once. Any absence is a
// fatal configuration error; callers abort without retry.
func (c Credentials) Validate(requireTwitter bool) error {
	var missing []string

	check := func(name, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}
	check(EnvFlipsideEmail, c.FlipsideEmail)
	check(EnvFlipsidePassword, c.FlipsidePassword)

	if requireTwitter {
		check(EnvTwitterAPIKey, c.TwitterAPIKey)
		check(EnvTwitterAPISecret, c.TwitterAPISecret)
		check(EnvTwitterAccessToken, c.TwitterAccessToken)
		check(EnvTwitterAccessSecret, c.TwitterAccessSecret)
		check(EnvTwitterBearerToken, c.TwitterBearerToken)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Flipside returns the chat surface credential pair.
func (c Credentials) Flipside() (email, password string) {
	return c.FlipsideEmail, c.FlipsidePassword
}
