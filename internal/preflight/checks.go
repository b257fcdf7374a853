package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"watchlist/internal/providerstore"
)

const (
	probeTimeout  = 5 * time.Second
	tmdbCheckName = "TMDB"
	ntfyCheckName = "Notifications"
)

// CheckTMDB requests the configuration endpoint once to confirm TMDB is
// reachable and accepts the key.
func CheckTMDB(ctx context.Context, baseURL, apiKey string) Result {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	key := strings.TrimSpace(apiKey)
	switch {
	case base == "":
		return fail(tmdbCheckName, "missing base url")
	case key == "":
		return fail(tmdbCheckName, "missing api key")
	}

	status, err := probe(ctx, base+"/configuration?"+url.Values{"api_key": {key}}.Encode())
	if err != nil {
		return fail(tmdbCheckName, describeProbeError(err, "TMDB"))
	}
	switch status {
	case http.StatusOK:
		return pass(tmdbCheckName, "Reachable")
	case http.StatusUnauthorized, http.StatusForbidden:
		return fail(tmdbCheckName, "auth failed (invalid api key)")
	case http.StatusTooManyRequests:
		return fail(tmdbCheckName, "rate limited (try again shortly)")
	}
	return fail(tmdbCheckName, fmt.Sprintf("check failed (%d)", status))
}

// CheckNtfy asks the ntfy server hosting topicURL for its health endpoint.
// Nothing is published to the topic.
func CheckNtfy(ctx context.Context, topicURL string) Result {
	parsed, err := url.Parse(strings.TrimSpace(topicURL))
	if err != nil || parsed.Host == "" {
		return fail(ntfyCheckName, fmt.Sprintf("invalid topic url %q", topicURL))
	}
	health := url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/v1/health"}
	status, err := probe(ctx, health.String())
	if err != nil {
		return fail(ntfyCheckName, describeProbeError(err, "ntfy"))
	}
	if status != http.StatusOK {
		return fail(ntfyCheckName, fmt.Sprintf("%s (health check returned %d)", parsed.Host, status))
	}
	return pass(ntfyCheckName, parsed.Host+" reachable")
}

func probe(ctx context.Context, target string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func describeProbeError(err error, service string) string {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Sprintf("check timed out (%s unresponsive)", service)
	}
	return fmt.Sprintf("unreachable (%v)", err)
}

// CheckCache opens the availability cache and reports how many records it
// holds.
func CheckCache(ctx context.Context, path string) Result {
	const name = "Availability cache"

	store, err := providerstore.Open(path)
	if err != nil {
		return fail(name, fmt.Sprintf("%s (error: %v)", path, err))
	}
	defer store.Close()

	stats, err := store.Stats(ctx, time.Now(), time.Hour)
	if err != nil {
		return fail(name, fmt.Sprintf("%s (error: %v)", path, err))
	}
	return pass(name, fmt.Sprintf("%s (%d records)", path, stats.Records))
}

// CheckDirectoryAccess confirms path is a directory the process can list and
// write into.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fail(name, path+" (error: does not exist)")
	case err != nil:
		return fail(name, fmt.Sprintf("%s (error: stat: %v)", path, err))
	case !info.IsDir():
		return fail(name, path+" (error: is not a directory)")
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fail(name, fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err))
	}
	return pass(name, path+" (read/write ok)")
}
