package integration

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

const servicePort = 8003

// webhookSecret must match PAYMENT_WEBHOOK_SECRET of the running service.
func webhookSecret() []byte {
	if v := os.Getenv("PAYMENT_WEBHOOK_SECRET"); v != "" {
		return []byte(v)
	}
	return []byte("dev-webhook-secret")
}

// baseURL returns the base URL of the ordering service.
func baseURL() string {
	if v := os.Getenv("ORDERS_BASE_URL"); v != "" {
		return v
	}
	return fmt.Sprintf("http://localhost:%d", servicePort)
}

// uniqueIdentity generates a unique buyer identity to avoid test collisions.
func uniqueIdentity(prefix string) string {
	return fmt.Sprintf("%s-%d-%d@test.example.com", prefix, time.Now().UnixNano(), rand.Intn(100000))
}

// buyerHeaders are the trusted identity-proxy headers for a shop client.
func buyerHeaders(identity string) map[string]string {
	return map[string]string{
		"X-User-Identity": identity,
		"X-User-Role":     "shop_client",
		"X-Session-Id":    fmt.Sprintf("sess-%d", rand.Intn(100000)),
	}
}

// signWebhook computes the hex HMAC-SHA256 signature over the notification
// payload the same way the payment processor does.
func signWebhook(paymentRequestID, state string, amount int64, referenceID, extraData string) string {
	payload := paymentRequestID + state + strconv.FormatInt(amount, 10) + referenceID + extraData
	mac := hmac.New(sha256.New, webhookSecret())
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// skipIfNotRunning performs a quick health check against the service.
// If the service is unreachable, the test is skipped (not failed).
func skipIfNotRunning(t *testing.T) {
	t.Helper()
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL() + "/health/live")
	if err != nil {
		t.Skipf("ordering service not reachable (Docker not running?): %v", err)
	}
	resp.Body.Close()
}

// httpGet performs an HTTP GET request and returns the status code and decoded JSON body.
func httpGet(t *testing.T, url string) (int, map[string]interface{}) {
	t.Helper()
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, decodeBody(t, resp.Body)
}

// httpGetWithHeaders performs an HTTP GET request with custom headers.
func httpGetWithHeaders(t *testing.T, url string, headers map[string]string) (int, map[string]interface{}) {
	t.Helper()
	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("creating GET request for %s failed: %v", url, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("GET %s with headers failed: %v", url, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, decodeBody(t, resp.Body)
}

// httpPost performs an HTTP POST request with a JSON body.
func httpPost(t *testing.T, url string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	return doJSONRequest(t, http.MethodPost, url, body, nil)
}

// httpPostWithHeaders performs an HTTP POST request with a JSON body and custom headers.
func httpPostWithHeaders(t *testing.T, url string, body interface{}, headers map[string]string) (int, map[string]interface{}) {
	t.Helper()
	return doJSONRequest(t, http.MethodPost, url, body, headers)
}

// doJSONRequest is the internal helper for JSON HTTP requests.
func doJSONRequest(t *testing.T, method, url string, body interface{}, headers map[string]string) (int, map[string]interface{}) {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshalling request body failed: %v", err)
		}
		bodyReader = bytes.NewReader(jsonBytes)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		t.Fatalf("creating %s request for %s failed: %v", method, url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, decodeBody(t, resp.Body)
}

// decodeBody reads the response body and attempts to decode it as JSON.
// If the body is empty or not JSON, it returns an empty map.
func decodeBody(t *testing.T, body io.Reader) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("reading response body failed: %v", err)
	}
	if len(raw) == 0 {
		return map[string]interface{}{}
	}
	var result map[string]interface{}
	if err := json.Unmarshal(raw, &result); err != nil {
		// Not JSON; return the raw string in a "raw" key for debugging.
		return map[string]interface{}{"raw": string(raw)}
	}
	return result
}

// requireStatus asserts that the HTTP status code matches the expected value.
func requireStatus(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Fatalf("expected status %d, got %d", want, got)
	}
}

// extractField extracts a value from a nested map using a dot-separated path.
// For example, extractField(data, "data.order.id") navigates data["data"]["order"]["id"].
func extractField(data map[string]interface{}, path string) interface{} {
	parts := strings.Split(path, ".")
	var current interface{} = data
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current, ok = m[part]
		if !ok {
			return nil
		}
	}
	return current
}

// pollOrderStatus polls the public status endpoint until the status leaves
// "pending" or the deadline elapses, and returns the last observed status.
func pollOrderStatus(t *testing.T, orderID string, deadline time.Duration) string {
	t.Helper()
	url := fmt.Sprintf("%s/api/v1/orders/%s/status", baseURL(), orderID)
	stop := time.Now().Add(deadline)
	last := ""
	for time.Now().Before(stop) {
		status, data := httpGet(t, url)
		requireStatus(t, status, 200)
		if s, ok := extractField(data, "data.status").(string); ok {
			last = s
			if s != "pending" {
				return s
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return last
}
