// Package registry holds the reference data kept per ISIN and the
// validation rules applied when it is loaded.
package registry

import (
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"QuoteKeeper/internal/csvfile"
)

// ISINLength is the fixed length of a canonical identifier.
const ISINLength = 12

// Column names of the registry file.
const (
	ColISIN         = "ISIN"
	ColName         = "Name"
	ColEPS          = "EPS"
	ColMonths       = "Months in Report"
	ColExpiry       = "Report Expiry Date"
	ColInvestorLink = "Own Investor Link"
	ColExchangeLink = "Stock Exchange Link"
)

// Security is the reference data of one ISIN.
type Security struct {
	ISIN         string
	Name         string
	EPS          decimal.NullDecimal
	Months       int
	ReportExpiry time.Time
	InvestorLink string
	ExchangeLink string
}

// Report lists the problems found while loading.
type Report struct {
	MissingISINs   int
	FaultyISINs    []string
	MissingNames   []string
	FaultyMonths   []string
	FaultyExpiries []string
	FaultyEPS      []string
}

// HasErrors reports whether any problem was found.
func (r *Report) HasErrors() bool {
	return r.MissingISINs > 0 ||
		len(r.FaultyISINs) > 0 ||
		len(r.MissingNames) > 0 ||
		len(r.FaultyMonths) > 0 ||
		len(r.FaultyExpiries) > 0 ||
		len(r.FaultyEPS) > 0
}

func (r *Report) String() string {
	if !r.HasErrors() {
		return "no errors found"
	}
	var b strings.Builder
	if r.MissingISINs > 0 {
		fmt.Fprintf(&b, "missing ISINs: %d\n", r.MissingISINs)
	}
	list := func(label string, items []string) {
		if len(items) > 0 {
			fmt.Fprintf(&b, "%s: %s\n", label, strings.Join(items, ", "))
		}
	}
	list("faulty ISINs", r.FaultyISINs)
	list("missing names", r.MissingNames)
	list("faulty months in report", r.FaultyMonths)
	list("faulty report expiry dates", r.FaultyExpiries)
	list("faulty EPS", r.FaultyEPS)
	return strings.TrimSuffix(b.String(), "\n")
}

func (r *Report) sort() {
	for _, s := range [][]string{r.FaultyISINs, r.MissingNames, r.FaultyMonths, r.FaultyExpiries, r.FaultyEPS} {
		sort.Strings(s)
	}
}

// Registry is the set of securities keyed by ISIN.
type Registry struct {
	securities map[string]*Security
	report     Report
}

// Load reads the registry file. dateFormat is the layout of the expiry date column.
func Load(path, dateFormat string) (*Registry, error) {
	recs, err := csvfile.Read(path)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	reg := Build(recs, dateFormat)
	switch {
	case len(reg.securities) == 0:
		log.Printf("[ERROR] registry: no ISIN loaded from %s", path)
	case reg.report.HasErrors():
		log.Printf("[WARN] registry: %d ISIN(s) loaded, errors found:\n%s", len(reg.securities), &reg.report)
	default:
		log.Printf("[INFO] registry: %d ISIN(s) loaded, no errors found", len(reg.securities))
	}
	return reg, nil
}

// Build validates records and keeps the addable ones.
func Build(recs []csvfile.Record, dateFormat string) *Registry {
	reg := &Registry{securities: make(map[string]*Security, len(recs))}
	for _, rec := range recs {
		if sec, ok := reg.validate(rec, dateFormat); ok {
			reg.securities[sec.ISIN] = sec
		}
	}
	reg.report.sort()
	return reg
}

// validate checks one record. Records without a well-formed ISIN are not
// addable; other problems are reported but the record is kept.
func (reg *Registry) validate(rec csvfile.Record, dateFormat string) (*Security, bool) {
	rep := &reg.report
	isin := strings.TrimSpace(rec[ColISIN])
	if isin == "" {
		rep.MissingISINs++
		return nil, false
	}
	if len(isin) != ISINLength {
		rep.FaultyISINs = append(rep.FaultyISINs, isin)
		return nil, false
	}

	sec := &Security{
		ISIN:         isin,
		Name:         strings.TrimSpace(rec[ColName]),
		InvestorLink: strings.TrimSpace(rec[ColInvestorLink]),
		ExchangeLink: strings.TrimSpace(rec[ColExchangeLink]),
	}
	if sec.Name == "" {
		rep.MissingNames = append(rep.MissingNames, isin)
	}

	months, err := strconv.Atoi(strings.TrimSpace(rec[ColMonths]))
	switch {
	case err == nil && (months == 3 || months == 6 || months == 9 || months == 12):
		sec.Months = months
	default:
		rep.FaultyMonths = append(rep.FaultyMonths, isin)
	}

	if v := strings.TrimSpace(rec[ColExpiry]); v != "" {
		expiry, err := time.Parse(dateFormat, v)
		if err != nil {
			rep.FaultyExpiries = append(rep.FaultyExpiries, isin)
		} else {
			sec.ReportExpiry = expiry
		}
	}

	if v := strings.TrimSpace(rec[ColEPS]); v != "" {
		eps, err := decimal.NewFromString(strings.ReplaceAll(v, ",", "."))
		if err != nil {
			rep.FaultyEPS = append(rep.FaultyEPS, isin)
		} else {
			sec.EPS = decimal.NewNullDecimal(eps)
		}
	}
	return sec, true
}

// Get returns the security for isin.
func (reg *Registry) Get(isin string) (*Security, bool) {
	s, ok := reg.securities[isin]
	return s, ok
}

// Len returns the number of securities.
func (reg *Registry) Len() int { return len(reg.securities) }

// ISINs returns all identifiers, sorted.
func (reg *Registry) ISINs() []string {
	out := make([]string, 0, len(reg.securities))
	for isin := range reg.securities {
		out = append(out, isin)
	}
	sort.Strings(out)
	return out
}

// Report returns the validation report.
func (reg *Registry) Report() *Report { return &reg.report }

// Unknown returns the identifiers of ids that are not in the registry, sorted.
func (reg *Registry) Unknown(ids []string) []string {
	var out []string
	for _, id := range ids {
		if _, ok := reg.securities[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
