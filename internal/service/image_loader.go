package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Image load defaults.
const (
	DefaultImageTimeout     = 5 * time.Second
	DefaultImageMaxAttempts = 2
	DefaultImageRetryBase   = time.Second
	DefaultImageRootMargin  = 300
	DefaultImagePlaceholder = "/static/img/image-unavailable.svg"
)

// Image load outcomes.
const (
	ImageLoaded      = "loaded"
	ImageUnavailable = "unavailable"
	ImageCancelled   = "cancelled"
)

// ViewportEvent reports how far, in pixels, an element is from the viewport.
type ViewportEvent struct {
	Distance int
}

type ImageRequest struct {
	ID       string
	Src      string
	Priority bool
}

type ImageResult struct {
	Status   string
	Src      string
	Attempts int
}

// ImageFailure is passed to the caller's error callback after the last attempt fails.
type ImageFailure struct {
	ID       string
	Src      string
	Attempts int
	Err      error
}

// ImageProber checks that src can be loaded and decoded as an image.
type ImageProber interface {
	Probe(ctx context.Context, src string) error
}

// ImageLoaderConfig tunes an ImageLoader; zero fields take the defaults above.
type ImageLoaderConfig struct {
	Timeout     time.Duration
	MaxAttempts int
	RetryBase   time.Duration
	RootMargin  int
	Placeholder string
	Clock       clockwork.Clock
}

// ImageLoader defers image loads until they are near the viewport and retries failed probes.
type ImageLoader struct {
	prober  ImageProber
	cfg     ImageLoaderConfig
	metrics *MetricsService
	logger  *zap.Logger
}

func NewImageLoader(prober ImageProber, cfg ImageLoaderConfig, metrics *MetricsService, logger *zap.Logger) *ImageLoader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultImageTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultImageMaxAttempts
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultImageRetryBase
	}
	if cfg.RootMargin <= 0 {
		cfg.RootMargin = DefaultImageRootMargin
	}
	if cfg.Placeholder == "" {
		cfg.Placeholder = DefaultImagePlaceholder
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageLoader{prober: prober, cfg: cfg, metrics: metrics, logger: logger}
}

// Placeholder is the source shown for images that could not be loaded.
func (l *ImageLoader) Placeholder() string {
	return l.cfg.Placeholder
}

// Load waits until req may load, then probes it. Priority requests and a nil visibility channel
// load immediately; otherwise loading starts at the first event within the root margin.
// A closed visibility channel or a done ctx cancels the load without calling onError.
// onError is called exactly once when every attempt fails.
func (l *ImageLoader) Load(ctx context.Context, req ImageRequest, visibility <-chan ViewportEvent, onError func(ImageFailure)) ImageResult {
	if !req.Priority && visibility != nil {
		if !l.awaitVisible(ctx, visibility) {
			return ImageResult{Status: ImageCancelled, Src: l.cfg.Placeholder}
		}
	}

	attempts := 0
	backoff := LinearBackoff(l.cfg.RetryBase, l.cfg.MaxAttempts-1)
	var err error
	for {
		attempts++
		if err = l.probe(ctx, req.Src); err == nil || ctx.Err() != nil || errors.Is(err, ErrImageSourceBlocked) {
			break
		}
		l.logger.Debug("image probe failed", zap.String("src", truncateSrc(req.Src)), zap.Int("attempt", attempts), zap.Error(err))

		delay, stop := backoff.Next()
		if stop {
			break
		}
		timer := l.cfg.Clock.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ImageResult{Status: ImageCancelled, Src: l.cfg.Placeholder, Attempts: attempts}
		case <-timer.Chan():
		}
	}

	if err == nil {
		l.metrics.RecordImageProbe(ImageLoaded)
		return ImageResult{Status: ImageLoaded, Src: req.Src, Attempts: attempts}
	}
	if ctx.Err() != nil {
		return ImageResult{Status: ImageCancelled, Src: l.cfg.Placeholder, Attempts: attempts}
	}

	l.metrics.RecordImageProbe(ImageUnavailable)
	l.logger.Warn("image unavailable", zap.String("id", req.ID), zap.String("src", truncateSrc(req.Src)), zap.Int("attempts", attempts), zap.Error(err))
	if onError != nil {
		onError(ImageFailure{ID: req.ID, Src: req.Src, Attempts: attempts, Err: err})
	}
	return ImageResult{Status: ImageUnavailable, Src: l.cfg.Placeholder, Attempts: attempts}
}

func (l *ImageLoader) probe(ctx context.Context, src string) error {
	attemptCtx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()
	return l.prober.Probe(attemptCtx, src)
}

func (l *ImageLoader) awaitVisible(ctx context.Context, visibility <-chan ViewportEvent) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-visibility:
			if !ok {
				return false
			}
			if ev.Distance <= l.cfg.RootMargin {
				return true
			}
		}
	}
}

func truncateSrc(src string) string {
	if len(src) > 96 {
		return src[:96] + "..."
	}
	return src
}

// ErrImageSourceBlocked marks sources the prober refuses to fetch. Loads stop without retrying.
var ErrImageSourceBlocked = errors.New("image source not allowed")

const maxImageRedirects = 3

// cgnatPrefix is the shared address space of RFC 6598, not covered by netip.Addr.IsPrivate.
var cgnatPrefix = netip.MustParsePrefix("100.64.0.0/10")

// HTTPImageProber fetches remote images and decodes inline ones. Remote fetches only reach public
// addresses, and only the allowed hosts when that list is non-empty. Redirects are checked the same way.
// maxBytes bounds how much of a response body is read for decoding; allowPrivate lifts the address check.
type HTTPImageProber struct {
	client       *http.Client
	allowedHosts []string
	allowPrivate bool
	maxBytes     int64
}

var errNotImage = errors.New("source is not an image")

// NewHTTPImageProber builds a prober with its own guarded transport. Entries in allowedHosts match a
// host exactly, or any subdomain when they start with a dot.
func NewHTTPImageProber(allowedHosts []string) *HTTPImageProber {
	p := &HTTPImageProber{maxBytes: 4 << 20}
	for _, h := range allowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			p.allowedHosts = append(p.allowedHosts, h)
		}
	}

	dialer := &net.Dialer{Timeout: DefaultImageTimeout, Control: p.checkDial}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	p.client = &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxImageRedirects {
				return fmt.Errorf("%w: too many redirects", ErrImageSourceBlocked)
			}
			return p.checkURL(req.URL)
		},
	}
	return p
}

// Probe accepts data: URIs, bare base64 payloads, site-relative paths and http(s) URLs.
func (p *HTTPImageProber) Probe(ctx context.Context, src string) error {
	src = strings.TrimSpace(src)
	switch {
	case src == "":
		return errNotImage
	case strings.HasPrefix(src, "data:"):
		return decodeDataURI(src)
	case strings.HasPrefix(src, "//"):
		return fmt.Errorf("%w: protocol-relative source", ErrImageSourceBlocked)
	case strings.HasPrefix(src, "/"):
		return nil
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		u, err := url.Parse(src)
		if err != nil {
			return fmt.Errorf("%w: %v", errNotImage, err)
		}
		if err := p.checkURL(u); err != nil {
			return err
		}
		return p.fetch(ctx, u.String())
	default:
		return decodeBase64Image(src)
	}
}

// checkURL applies the scheme, host allow list and literal address checks before any connection.
func (p *HTTPImageProber) checkURL(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrImageSourceBlocked, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrImageSourceBlocked)
	}
	if !p.hostAllowed(host) {
		return fmt.Errorf("%w: host %q", ErrImageSourceBlocked, host)
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return p.checkAddr(addr)
	}
	return nil
}

func (p *HTTPImageProber) hostAllowed(host string) bool {
	if len(p.allowedHosts) == 0 {
		return true
	}
	for _, allowed := range p.allowedHosts {
		if host == allowed || (strings.HasPrefix(allowed, ".") && strings.HasSuffix(host, allowed)) {
			return true
		}
	}
	return false
}

// checkDial runs on the resolved address of every connection, including redirect hops.
func (p *HTTPImageProber) checkDial(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrImageSourceBlocked, err)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrImageSourceBlocked, err)
	}
	return p.checkAddr(addr)
}

func (p *HTTPImageProber) checkAddr(addr netip.Addr) error {
	if p.allowPrivate {
		return nil
	}
	addr = addr.Unmap()
	if !addr.IsGlobalUnicast() || addr.IsPrivate() || cgnatPrefix.Contains(addr) {
		return fmt.Errorf("%w: address %s", ErrImageSourceBlocked, addr)
	}
	return nil
}

func (p *HTTPImageProber) fetch(ctx context.Context, src string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("image request returned %d", resp.StatusCode)
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "image/") {
		return fmt.Errorf("%w: content type %q", errNotImage, mediaType)
	}
	if mediaType == "image/svg+xml" {
		return nil
	}
	if _, _, err := image.DecodeConfig(io.LimitReader(resp.Body, p.maxBytes)); err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	return nil
}

func decodeDataURI(src string) error {
	header, payload, ok := strings.Cut(src, ",")
	if !ok || !strings.HasPrefix(header, "data:image/") {
		return errNotImage
	}
	if !strings.HasSuffix(header, ";base64") {
		return nil
	}
	return decodeBase64Image(payload)
}

func decodeBase64Image(payload string) error {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", errNotImage, err)
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	return nil
}
