package bridgy

import (
	"fmt"
	"strings"
)

const (
	// BaseURL is the public Bridgy instance
	BaseURL = "https://brid.gy"

	// PollEndpoint asks Bridgy to poll a source now
	PollEndpoint = "/browser/poll"

	// StatusEndpoint reports a source's state
	StatusEndpoint = "/browser/status"
)

// EndpointURL builds the browser endpoint URL for a silo
func EndpointURL(baseURL, silo, endpoint string) string {
	return fmt.Sprintf("%s/%s%s", strings.TrimRight(baseURL, "/"), silo, endpoint)
}
