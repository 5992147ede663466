package legacy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/framelink/internal/origin"
)

// FragmentHeader carries the address fragment on HTTP navigations, which
// never transmit fragments themselves.
const FragmentHeader = "X-Framelink-Fragment"

var ErrNoFrame = errors.New("legacy: frame factory returned nil")

// Frame loads addresses, one at a time.
type Frame interface {
	Navigate(ctx context.Context, address string) error
}

// FrameFactory creates the frame for one candidate host origin.
type FrameFactory func(candidate string) (Frame, error)

// HTTPFrame navigates by issuing a GET to the address.
type HTTPFrame struct {
	client     *http.Client
	selfOrigin string
}

func NewHTTPFrame(client *http.Client, selfOrigin string) *HTTPFrame {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	self, _ := origin.Normalize(selfOrigin)
	return &HTTPFrame{client: client, selfOrigin: self}
}

// HTTPFrames returns a factory handing every candidate its own HTTPFrame.
func HTTPFrames(client *http.Client, selfOrigin string) FrameFactory {
	return func(string) (Frame, error) {
		return NewHTTPFrame(client, selfOrigin), nil
	}
}

func (f *HTTPFrame) Navigate(ctx context.Context, address string) error {
	target, fragment, _ := strings.Cut(address, "#")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set(FragmentHeader, fragment)
	if f.selfOrigin != "" {
		req.Header.Set("Referer", f.selfOrigin+"/")
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("legacy: receiver responded %s", resp.Status)
	}
	return nil
}
