package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

// IntegrationTestSuite runs against a live server with Redis behind it.
// Set TEST_SERVER_URL (e.g. http://localhost:3000) to enable it. Writes need
// TEST_BEARER_TOKEN when the server has AUTH_JWT_SECRET configured.
type IntegrationTestSuite struct {
	suite.Suite
	client  *http.Client
	baseURL string
	token   string
}

func (s *IntegrationTestSuite) SetupSuite() {
	s.baseURL = os.Getenv("TEST_SERVER_URL")
	if s.baseURL == "" {
		s.T().Skip("TEST_SERVER_URL not set; skipping integration tests")
	}
	s.token = os.Getenv("TEST_BEARER_TOKEN")
	s.client = &http.Client{Timeout: 5 * time.Second}
	if !waitForServerHealthy(s.client, s.baseURL, 30) {
		s.T().Fatal("server did not become healthy in time")
	}
}

// waitForServerHealthy polls the /health endpoint until it returns 200 or
// the timeout (in seconds) elapses.
func waitForServerHealthy(client *http.Client, baseURL string, timeoutSecs int) bool {
	fmt.Fprintf(os.Stdout, "Waiting up to %ds for test server to become healthy...\n", timeoutSecs)
	deadline := time.Now().Add(time.Duration(timeoutSecs) * time.Second)
	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return true
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return false
}

func (s *IntegrationTestSuite) do(method, path string, body any) (*http.Response, map[string]any) {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.baseURL+path, &buf)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (s *IntegrationTestSuite) key(name string) string {
	return "it:" + name + ":" + uuid.NewString()
}

func (s *IntegrationTestSuite) TestHealthCheck() {
	resp, health := s.do(http.MethodGet, "/health", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal(s.T(), "healthy", health["status"])
	assert.Equal(s.T(), "tiered-cache", health["service"])
}

func (s *IntegrationTestSuite) TestSetGetDelete() {
	key := s.key("session")

	resp, _ := s.do(http.MethodPut, "/api/v1/cache/"+key, map[string]any{"value": "alice", "ttl_seconds": 30})
	s.Require().Equal(http.StatusNoContent, resp.StatusCode)

	resp, body := s.do(http.MethodGet, "/api/v1/cache/"+key, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal("alice", body["value"])

	resp, _ = s.do(http.MethodDelete, "/api/v1/cache/"+key, nil)
	s.Require().Equal(http.StatusNoContent, resp.StatusCode)

	resp, _ = s.do(http.MethodGet, "/api/v1/cache/"+key, nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestEntryExpires() {
	key := s.key("short")

	resp, _ := s.do(http.MethodPut, "/api/v1/cache/"+key, map[string]any{"value": "v", "ttl_seconds": 1})
	s.Require().Equal(http.StatusNoContent, resp.StatusCode)

	s.Eventually(func() bool {
		resp, _ := s.do(http.MethodGet, "/api/v1/cache/"+key, nil)
		return resp.StatusCode == http.StatusNotFound
	}, 5*time.Second, 200*time.Millisecond)
}

func (s *IntegrationTestSuite) TestResolveKeepsExistingValue() {
	key := s.key("resolve")

	resp, body := s.do(http.MethodPost, "/api/v1/cache/"+key+"/resolve", map[string]any{"value": "first", "ttl_seconds": 30})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal("first", body["value"])

	resp, body = s.do(http.MethodPost, "/api/v1/cache/"+key+"/resolve", map[string]any{"value": "second", "ttl_seconds": 30})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal("first", body["value"])
}

func (s *IntegrationTestSuite) TestInvalidTTLRejected() {
	resp, _ := s.do(http.MethodPut, "/api/v1/cache/"+s.key("bad"), map[string]any{"value": "v", "ttl_seconds": 0})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationTestSuite))
}
