package services

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ghadeerreda0-lab/Bot-New/internal/config"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/errors"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/utils"
)

// ParsedEvent is a provider notification reduced to the fields reconciliation needs.
type ParsedEvent struct {
	Provider     string
	Amount       int64
	Counterparty string
	Reference    string
	Pattern      int // 1-based index of the strategy that matched
}

// ParseStrategy recognises one message layout. It returns an error with code
// NO_MATCH when the text is not in its layout.
type ParseStrategy interface {
	Parse(text string) (*ParsedEvent, error)
}

type regexStrategy struct {
	provider string
	index    int
	re       *regexp.Regexp
}

func (s *regexStrategy) Parse(text string) (*ParsedEvent, error) {
	m := s.re.FindStringSubmatch(text)
	if m == nil {
		return nil, noMatch(fmt.Sprintf("%s pattern %d did not match", s.provider, s.index))
	}
	amount, err := parseWholeAmount(m[1])
	if err != nil {
		return nil, err
	}
	return &ParsedEvent{
		Provider:     s.provider,
		Amount:       amount,
		Counterparty: m[2],
		Reference:    m[3],
		Pattern:      s.index,
	}, nil
}

// Parser holds the ordered strategy list for every provider.
type Parser struct {
	strategies map[string][]ParseStrategy
}

func NewParser() *Parser {
	p := &Parser{strategies: make(map[string][]ParseStrategy)}
	p.register(config.MethodSyriatelCash,
		`تم تحويل (\d+(?:\.\d+)?) ل\.س الى رقم (\d+) برقم عملية (\d+)`,
		`تحويل مبلغ (\d+(?:\.\d+)?) ل\.س الى (\d+) رقم العمليه (\d+)`,
		`تحويل (\d+(?:\.\d+)?) ل\.س لرقم (\d+) عملية (\d+)`,
	)
	p.register(config.MethodShamCash,
		`تم استلام (\d+(?:\.\d+)?) ل\.س من (\d+) رقم العمليه (\w+)`,
		`تحويل (\d+(?:\.\d+)?) ل\.س من (\d+) رقم (\w+)`,
	)
	return p
}

func (p *Parser) register(provider string, patterns ...string) {
	for i, pattern := range patterns {
		p.strategies[provider] = append(p.strategies[provider], &regexStrategy{
			provider: provider,
			index:    i + 1,
			re:       regexp.MustCompile(pattern),
		})
	}
}

// Parse tries the provider's strategies in order and returns the first match.
func (p *Parser) Parse(provider, raw string) (*ParsedEvent, error) {
	key, ok := NormalizeProvider(provider)
	if !ok {
		return nil, errors.New(errors.ErrCodeUnknownProvider, fmt.Sprintf("unknown provider %q", provider))
	}
	strategies := p.strategies[key]
	if len(strategies) == 0 {
		return nil, errors.New(errors.ErrCodeUnknownProvider, fmt.Sprintf("no parser for provider %q", key))
	}

	text := utils.StripThousands(utils.NormalizeArabicNumbers(strings.TrimSpace(raw)))
	for _, s := range strategies {
		event, err := s.Parse(text)
		if err == nil {
			return event, nil
		}
		if !errors.Is(err, errors.ErrCodeNoMatch) {
			return nil, err
		}
	}
	return nil, noMatch(fmt.Sprintf("no %s layout matched", key))
}

// Providers lists the providers with at least one strategy.
func (p *Parser) Providers() []string {
	var out []string
	for k := range p.strategies {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var providerAliases = map[string]string{
	"syriatel":      config.MethodSyriatelCash,
	"syriatel_cash": config.MethodSyriatelCash,
	"cham":          config.MethodShamCash,
	"cham_cash":     config.MethodShamCash,
	"sham":          config.MethodShamCash,
	"sham_cash":     config.MethodShamCash,
}

// NormalizeProvider maps the names SMS forwarders use onto payment method ids.
func NormalizeProvider(name string) (string, bool) {
	key, ok := providerAliases[strings.ToLower(strings.TrimSpace(name))]
	return key, ok
}

// parseWholeAmount accepts "1500" and "1500.00" but not "1500.50".
func parseWholeAmount(s string) (int64, error) {
	whole, frac, _ := strings.Cut(s, ".")
	if strings.Trim(frac, "0") != "" {
		return 0, noMatch(fmt.Sprintf("fractional amount %s", s))
	}
	amount, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || amount <= 0 {
		return 0, noMatch(fmt.Sprintf("invalid amount %s", s))
	}
	return amount, nil
}

func noMatch(msg string) error {
	return errors.New(errors.ErrCodeNoMatch, msg)
}
