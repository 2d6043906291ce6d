package intelligence

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"

	"github.com/veilscan/veilscan/pkg/models"
)

// SourceChecker screens candidate findings whose source URL points at a
// domain that no longer resolves. A broker listing on a dead domain cannot
// be verified or acted on, so it is dropped before validation. Findings
// without a resolvable host concern (onion services, bare breach names) pass
// through untouched.
type SourceChecker struct {
	resolvers []string
	timeout   time.Duration
	logger    *logrus.Logger

	mu    sync.Mutex
	cache map[string]bool // registered domain -> resolvable
}

func NewSourceChecker(resolvers []string, timeout time.Duration, logger *logrus.Logger) *SourceChecker {
	if logger == nil {
		logger = logrus.New()
	}
	if len(resolvers) == 0 {
		resolvers = []string{"1.1.1.1:53", "8.8.8.8:53"}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SourceChecker{
		resolvers: resolvers,
		timeout:   timeout,
		logger:    logger,
		cache:     make(map[string]bool),
	}
}

// Screen returns the findings whose source domains still resolve, plus the
// count of dropped findings. Resolution results are cached per registered
// domain for the lifetime of the checker.
func (s *SourceChecker) Screen(ctx context.Context, findings []models.RawFinding) ([]models.RawFinding, int) {
	kept := make([]models.RawFinding, 0, len(findings))
	dropped := 0

	for _, f := range findings {
		domain, ok := registeredDomain(f.SourceURL)
		if !ok {
			kept = append(kept, f)
			continue
		}
		if s.resolvable(ctx, domain) {
			kept = append(kept, f)
		} else {
			dropped++
			s.logger.Debugf("Dropping finding from %s: domain %s does not resolve", f.SourceName, domain)
		}
	}
	return kept, dropped
}

func (s *SourceChecker) resolvable(ctx context.Context, domain string) bool {
	s.mu.Lock()
	if ok, cached := s.cache[domain]; cached {
		s.mu.Unlock()
		return ok
	}
	s.mu.Unlock()

	ok := s.query(ctx, domain)

	s.mu.Lock()
	s.cache[domain] = ok
	s.mu.Unlock()
	return ok
}

// query asks each resolver for an A record until one answers. NXDOMAIN from
// any resolver is taken as authoritative; transport errors fall through to
// the next resolver, and a domain is treated as resolvable when every
// resolver errors so network trouble never discards findings.
func (s *SourceChecker) query(ctx context.Context, domain string) bool {
	client := &dns.Client{Timeout: s.timeout}
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeA)
	msg.RecursionDesired = true

	for _, resolver := range s.resolvers {
		resp, _, err := client.ExchangeContext(ctx, msg, resolver)
		if err != nil {
			continue
		}
		switch resp.Rcode {
		case dns.RcodeSuccess:
			return true
		case dns.RcodeNameError:
			return false
		}
	}
	return true
}

// registeredDomain extracts the eTLD+1 from a source URL. Returns false when
// the URL has no checkable host (empty, IP literal, .onion, localhost).
func registeredDomain(rawURL string) (string, bool) {
	if strings.TrimSpace(rawURL) == "" {
		return "", false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	if net.ParseIP(host) != nil {
		return "", false
	}
	if host == "localhost" || strings.HasSuffix(host, ".onion") {
		return "", false
	}
	if !strings.Contains(host, ".") {
		return "", false
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", false
	}
	return domain, true
}

// CheckStats reports cache contents for the stats command.
func (s *SourceChecker) CheckStats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	resolvable, dead := 0, 0
	for _, ok := range s.cache {
		if ok {
			resolvable++
		} else {
			dead++
		}
	}
	return map[string]interface{}{
		"domains_checked": len(s.cache),
		"resolvable":      resolvable,
		"dead":            dead,
		"resolvers":       fmt.Sprintf("%v", s.resolvers),
	}
}
