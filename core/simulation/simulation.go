// Package simulation drives a run: it owns the firms, consumers and random
// stream, advances them one period at a time through the offer, policy,
// demand and usage phases, and appends one report record per period.
//
// A run is single threaded and fully determined by its parameters, policy
// and seed.
package simulation

import (
	"context"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/evpolicy/core/consumer"
	"github.com/kilianp07/evpolicy/core/events"
	"github.com/kilianp07/evpolicy/core/firm"
	"github.com/kilianp07/evpolicy/core/logger"
	"github.com/kilianp07/evpolicy/core/model"
	"github.com/kilianp07/evpolicy/core/params"
	"github.com/kilianp07/evpolicy/core/pricing"
	"github.com/kilianp07/evpolicy/core/report"
	"github.com/kilianp07/evpolicy/core/rng"
)

// Observer is notified after every completed period.
type Observer interface {
	ObservePeriod(ctx context.Context, rec report.Record) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, rec report.Record) error

// ObservePeriod calls f.
func (f ObserverFunc) ObservePeriod(ctx context.Context, rec report.Record) error { return f(ctx, rec) }

// Option configures a Simulation.
type Option func(*Simulation)

// WithLogger sets the logger used for run events.
func WithLogger(l logger.Logger) Option {
	return func(s *Simulation) { s.log = logger.OrNop(l) }
}

// WithObserver registers an observer. Observers run in registration order.
func WithObserver(o Observer) Option {
	return func(s *Simulation) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// WithEvents publishes market structure changes to p.
func WithEvents(p events.Publisher) Option {
	return func(s *Simulation) { s.events = p }
}

// Simulation is one run of the market model.
type Simulation struct {
	params *params.Params
	policy model.PolicyConfig
	rng    *rng.Stream
	log    logger.Logger

	observers []Observer
	events    events.Publisher

	period    int
	firms     []*firm.Firm
	consumers []*consumer.Consumer
	nextFirm  int

	units      unitLedger
	greenPeak  float64
	greenShare float64
	benchmark  float64
	cap        float64

	baselineEmissions float64
	// cumulativeExpenditure sums public expenditure from the baseline period
	// on; referenceExpenditure is the first non-zero period amount in it.
	cumulativeExpenditure float64
	referenceExpenditure  float64

	report report.Sequence
}

// New validates the inputs and builds the initial population. No period is
// executed.
func New(p params.Params, policy model.PolicyConfig, seed uint64, opts ...Option) (*Simulation, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}
	p = p.Clone()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	s := &Simulation{
		params: &p,
		policy: policy.Normalized(),
		rng:    rng.New(seed),
		log:    logger.Nop{},
		cap:    math.Inf(1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.populate()
	s.log.Infof("simulation ready: policy=%s seed=%d firms=%d consumers=%d horizon=%d",
		s.policy, seed, len(s.firms), len(s.consumers), p.Horizon)
	return s, nil
}

// populate creates the initial firms, region by region, then the consumers.
// Consumers are split across regions in proportion to their weights; the
// rounding remainder goes to the first regions.
func (s *Simulation) populate() {
	p := s.params
	for _, r := range p.Regions {
		for i := 0; i < p.Population.FirmsPerRegion; i++ {
			s.firms = append(s.firms, firm.New(s.newFirmID(), r.Name, s.rng.Uniform(0, p.Firm.BudgetMax), 0, p))
		}
	}
	counts := make([]int, len(p.Regions))
	assigned := 0
	for i, r := range p.Regions {
		counts[i] = int(math.Floor(r.Weight * float64(p.Population.ConsumersTotal)))
		assigned += counts[i]
	}
	for i := 0; assigned < p.Population.ConsumersTotal; i = (i + 1) % len(counts) {
		counts[i]++
		assigned++
	}
	id := 0
	for i, r := range p.Regions {
		for j := 0; j < counts[i]; j++ {
			s.consumers = append(s.consumers, consumer.New(id, r, p, s.rng))
			id++
		}
	}
}

func (s *Simulation) newFirmID() int {
	id := s.nextFirm
	s.nextFirm++
	return id
}

// Period returns the next period to execute.
func (s *Simulation) Period() int { return s.period }

// Done reports whether the horizon has been reached.
func (s *Simulation) Done() bool { return s.period >= s.params.Horizon }

// Firms returns the live firms in ascending id order.
func (s *Simulation) Firms() []*firm.Firm { return slices.Clone(s.firms) }

// Consumers returns the consumers.
func (s *Simulation) Consumers() []*consumer.Consumer { return slices.Clone(s.consumers) }

// Report returns the records of the executed periods.
func (s *Simulation) Report() report.Sequence { return slices.Clone(s.report) }

// Units returns the market-wide units of tech sold in period t.
func (s *Simulation) Units(tech model.Technology, t int) int { return s.units.Units(tech, t) }

// Benchmark returns the benchmark emission of the last executed period.
func (s *Simulation) Benchmark() float64 { return s.benchmark }

// Cap returns the emissions cap of the last executed period, +Inf if none.
func (s *Simulation) Cap() float64 { return s.cap }

// Step executes one period and returns its record. It returns false once
// the horizon has been reached.
func (s *Simulation) Step(ctx context.Context) (report.Record, bool) {
	if s.Done() {
		return report.Record{}, false
	}
	t := s.period
	s.units.open(t)
	gov := newGovernment(s.regionNames())

	bankrupt := s.offer(t, &gov)
	s.applyPolicy(t)
	entrantUnits := s.demand(t, &gov)
	emissions := s.usage()

	rec := s.record(t, emissions, entrantUnits, bankrupt, gov)
	s.report = append(s.report, rec)
	s.period++

	s.log.Debugw("period closed", map[string]any{
		"period":       t,
		"units":        rec.TotalUnits(),
		"green_share":  rec.GreenMarketShare,
		"emissions":    rec.Emissions,
		"benchmark":    rec.BenchmarkE,
		"firms":        rec.Firms,
		"bankruptcies": rec.Bankruptcies,
		"gov_revenue":  rec.GovernmentRevenue,
		"gov_spending": rec.PublicExpenditure,
	})
	for _, o := range s.observers {
		if err := o.ObservePeriod(ctx, rec); err != nil {
			s.log.Warnf("observer failed for period %d: %v", t, err)
		}
	}
	return rec, true
}

func (s *Simulation) publish(e events.MarketEvent) {
	if s.events != nil {
		s.events.Publish(e)
	}
}

func (s *Simulation) regionNames() []string {
	names := make([]string, len(s.params.Regions))
	for i, r := range s.params.Regions {
		names[i] = r.Name
	}
	return names
}

func (s *Simulation) firmContext(t int) firm.Context {
	return firm.Context{
		Period:     t,
		Params:     s.params,
		Policy:     s.policy,
		RNG:        s.rng,
		Log:        s.log,
		GreenShare: s.greenShare,
		Market:     &s.units,
		Peers:      s.firms,
	}
}

// offer updates firm accounts from the last closed period, lets firms
// reshape their portfolios and invest in R&D, and replaces bankrupt firms.
// It returns the number of bankruptcies.
func (s *Simulation) offer(t int, gov *government) int {
	s.greenShare = s.units.share(model.Green, t-1)
	s.greenPeak = math.Max(s.greenPeak, s.greenShare)

	ctx := s.firmContext(t)
	failed := make(map[int]bool)
	for _, i := range s.rng.Order(len(s.firms)) {
		f := s.firms[i]
		f.UpdateProfit(ctx)
		f.UpdateMarketShare(ctx)
		f.UpdateBudget(ctx)
		if f.IsBankrupt() {
			failed[f.ID] = true
			continue
		}
		if t > s.params.Firm.StabilizationAt {
			if tech, ok := f.ChangePortfolio(ctx); ok {
				s.publish(events.MarketEvent{Kind: events.TechAdopted, Period: t, FirmID: f.ID, Region: f.Region, Technology: tech})
			}
			if tech, ok := f.AbandonPortfolio(ctx); ok {
				s.publish(events.MarketEvent{Kind: events.TechAbandoned, Period: t, FirmID: f.ID, Region: f.Region, Technology: tech})
			}
		}
		rd := f.InvestRD(ctx)
		gov.spend(f.Region, rd.Cashback)
		for _, tech := range rd.Improved {
			s.publish(events.MarketEvent{Kind: events.TechImproved, Period: t, FirmID: f.ID, Region: f.Region, Technology: tech})
		}
	}
	if len(failed) > 0 {
		s.replace(t, failed)
	}
	return len(failed)
}

// replace swaps every bankrupt firm for an entrant. Entrants imitate a
// survivor picked in proportion to its total market share.
func (s *Simulation) replace(t int, failed map[int]bool) {
	var survivors, gone []*firm.Firm
	for _, f := range s.firms {
		if failed[f.ID] {
			gone = append(gone, f)
		} else {
			survivors = append(survivors, f)
		}
	}
	weights := make([]float64, len(survivors))
	for i, f := range survivors {
		weights[i] = f.TotalShare.At(t)
	}

	ctx := s.firmContext(t)
	ctx.Peers = survivors
	next := survivors
	for _, f := range gone {
		budget := s.rng.Uniform(0, s.params.Firm.BudgetMax)
		var entrant *firm.Firm
		if len(survivors) == 0 {
			entrant = firm.New(s.newFirmID(), f.Region, budget, t, s.params)
			entrant.Entrant = true
		} else {
			imitated := survivors[s.rng.Weighted(weights)]
			entrant = firm.NewEntrant(ctx, s.newFirmID(), budget, imitated)
		}
		s.log.Infof("firm %d went bankrupt in period %d, replaced by firm %d (%s)",
			f.ID, t, entrant.ID, entrant.Region)
		s.publish(events.MarketEvent{Kind: events.FirmBankrupt, Period: t, FirmID: f.ID, Region: f.Region, Peer: entrant.ID})
		s.publish(events.MarketEvent{Kind: events.FirmEntered, Period: t, FirmID: entrant.ID, Region: entrant.Region, Peer: f.ID})
		next = append(next, entrant)
	}
	s.firms = next
}

// applyPolicy computes the benchmark and cap of period t and reprices every
// offered vehicle.
func (s *Simulation) applyPolicy(t int) {
	s.benchmark = s.benchmarkEmission(t)
	s.cap = math.Inf(1)
	if s.policy.Kind == model.PolicyEmissionsCap {
		switch {
		case s.policy.Cap > 0:
			s.cap = s.policy.Cap
		case s.benchmark > 0:
			s.cap = s.benchmark * (1 + s.policy.Level*s.rng.Float64())
		}
	}
	for _, f := range s.firms {
		f.Portfolio.Each(func(_ model.Technology, v *model.Vehicle) {
			pricing.Apply(v, s.params, s.policy, s.benchmark)
		})
	}
}

// benchmarkEmission is the mean emission of the offered vehicles weighted by
// what each sold in the last closed period.
func (s *Simulation) benchmarkEmission(t int) float64 {
	var values, weights []float64
	var sold float64
	for _, f := range s.firms {
		f.Portfolio.Each(func(tech model.Technology, v *model.Vehicle) {
			u := float64(f.UnitsSold[tech].At(t - 1))
			values = append(values, pricing.Emissions(*v, s.params))
			weights = append(weights, u)
			sold += u
		})
	}
	if sold == 0 {
		return 0
	}
	return stat.Mean(values, weights)
}

// demand lets every consumer, in random order, try to buy from the
// catalogue. It returns the units sold by entrant firms.
func (s *Simulation) demand(t int, gov *government) int {
	byID := make(map[int]*firm.Firm, len(s.firms))
	var catalogue []consumer.Offer
	for _, f := range s.firms {
		byID[f.ID] = f
		f.Portfolio.Each(func(tech model.Technology, v *model.Vehicle) {
			catalogue = append(catalogue, consumer.NewOffer(f.ID, f.Region, v, f.MarketShare[tech].At(t), s.params))
		})
	}

	ctx := consumer.Context{
		Period:              t,
		Params:              s.params,
		RNG:                 s.rng,
		Log:                 s.log,
		Cap:                 s.cap,
		GreenInfrastructure: 1 + s.greenPeak,
	}
	entrantUnits := 0
	for _, i := range s.rng.Order(len(s.consumers)) {
		c := s.consumers[i]
		choice, ok := c.Purchase(ctx, catalogue)
		if !ok {
			continue
		}
		v := *choice.Offer.Vehicle
		f := byID[choice.Offer.FirmID]
		f.Sales(v.Technology, t)
		s.units.add(v.Technology, t)
		gov.sale(c.Region, v)
		if f.Entrant {
			entrantUnits++
		}
	}
	return entrantUnits
}

// usage returns the emissions of this period's driving.
func (s *Simulation) usage() float64 {
	var total float64
	for _, c := range s.consumers {
		total += c.Driving()
	}
	return total
}

func (s *Simulation) record(t int, emissions float64, entrantUnits, bankrupt int, gov government) report.Record {
	if t == s.params.BaselinePeriod {
		s.baselineEmissions = emissions
	}
	if t >= s.params.BaselinePeriod {
		s.cumulativeExpenditure += gov.expenditure
		if s.referenceExpenditure == 0 {
			s.referenceExpenditure = gov.expenditure
		}
	}
	rec := report.Record{
		Period:                    t,
		GreenMarketShare:          s.units.share(model.Green, t),
		HybridMarketShare:         s.units.share(model.Hybrid, t),
		Emissions:                 emissions,
		BenchmarkE:                s.benchmark,
		PublicExpenditure:         gov.expenditure,
		PublicExpenditureByRegion: gov.byRegion,
		GovernmentRevenue:         gov.revenue,
		Firms:                     len(s.firms),
		Bankruptcies:              bankrupt,
	}
	if total := s.units.Total(t); total > 0 {
		rec.NewFirmsShare = float64(entrantUnits) / float64(total)
	}
	if t >= s.params.BaselinePeriod {
		rec.EmissionsIndex = index(emissions, s.baselineEmissions)
		rec.PublicExpenditureIndex = index(s.cumulativeExpenditure, s.referenceExpenditure)
	}
	if !math.IsInf(s.cap, 1) {
		rec.EmissionsCap = s.cap
	}
	for _, tech := range model.Technologies {
		rec.UnitsSold[tech] = s.units.Units(tech, t)
	}
	return rec
}

// Run executes a complete run. The context is checked between periods; a
// cancelled run returns the context error and no partial report.
func Run(ctx context.Context, p params.Params, policy model.PolicyConfig, seed uint64, opts ...Option) (report.Sequence, error) {
	s, err := New(p, policy, seed, opts...)
	if err != nil {
		return nil, err
	}
	for !s.Done() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run aborted at period %d: %w", s.Period(), err)
		}
		s.Step(ctx)
	}
	return s.Report(), nil
}
