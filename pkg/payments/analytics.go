package payments

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"betihari-backend/pkg/models"
)

const (
	reportCacheKey   = "donations"
	reportTTL        = 60 * time.Second
	reportWindow     = 365 * 24 * time.Hour
	timelineDays     = 30
	recentDonations  = 10
	topDonors        = 5
	maxCustomerPages = 20
	unknownLocation  = "Unknown"
)

// Analytics caches donation reports built from gateway records.
type Analytics struct {
	gateway Gateway
	cache   *gocache.Cache
	now     func() time.Time
	mu      sync.Mutex
}

func NewAnalytics(gateway Gateway) *Analytics {
	return &Analytics{
		gateway: gateway,
		cache:   gocache.New(reportTTL, 2*reportTTL),
		now:     time.Now,
	}
}

// Report returns the cached report or builds a new one. Reports with fetch
// errors are returned but not cached.
func (a *Analytics) Report(ctx context.Context) *models.DonationReport {
	if cached, ok := a.cache.Get(reportCacheKey); ok {
		return cached.(*models.DonationReport)
	}
	return a.Refresh(ctx)
}

// Refresh rebuilds the report regardless of the cache.
func (a *Analytics) Refresh(ctx context.Context) *models.DonationReport {
	a.mu.Lock()
	defer a.mu.Unlock()

	report := BuildReport(ctx, a.gateway, a.now())
	if len(report.Errors) == 0 {
		a.cache.SetDefault(reportCacheKey, report)
	} else {
		log.WithField("errors", report.Errors).Warn("donation report is incomplete")
	}
	return report
}

// Invalidate drops the cached report, for example after a completed donation.
func (a *Analytics) Invalidate() {
	a.cache.Delete(reportCacheKey)
}

// BuildReport fetches charges and customers concurrently and aggregates them.
// A failed fetch leaves its part of the report empty and is listed in Errors.
func BuildReport(ctx context.Context, gateway Gateway, now time.Time) *models.DonationReport {
	var (
		charges   []models.Charge
		customers []models.Customer
		mu        sync.Mutex
		errs      []string
	)
	fail := func(part string, err error) {
		log.WithError(err).WithField("part", part).Error("donation analytics fetch failed")
		mu.Lock()
		errs = append(errs, part+": "+err.Error())
		mu.Unlock()
	}

	var g errgroup.Group
	g.Go(func() error {
		list, err := gateway.ListCharges(ctx, now.Add(-reportWindow))
		if err != nil {
			fail("charges", err)
			return nil
		}
		charges = list
		return nil
	})
	g.Go(func() error {
		list, err := listAllCustomers(ctx, gateway)
		if err != nil {
			fail("customers", err)
			return nil
		}
		customers = list
		return nil
	})
	_ = g.Wait()

	report := Aggregate(charges, customers, now)
	sort.Strings(errs)
	report.Errors = errs
	return report
}

func listAllCustomers(ctx context.Context, gateway Gateway) ([]models.Customer, error) {
	all := []models.Customer{}
	q := models.CustomerQuery{Limit: maxCustomersPage}
	for i := 0; i < maxCustomerPages; i++ {
		page, err := gateway.ListCustomers(ctx, q)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Customers...)
		if !page.HasMore || page.NextAfter == "" {
			break
		}
		q.StartingAfter = page.NextAfter
	}
	return all, nil
}

// Succeeded reports whether a charge counts as a donation.
func Succeeded(c models.Charge) bool {
	return c.Paid && !c.Refunded && (c.Status == "" || c.Status == "succeeded")
}

func donorKey(c models.Charge) string {
	switch {
	case c.CustomerID != "":
		return c.CustomerID
	case c.Email != "":
		return strings.ToLower(c.Email)
	case c.Name != "":
		return "name:" + strings.ToLower(c.Name)
	default:
		return "anonymous"
	}
}

func location(v string) string {
	if v = strings.TrimSpace(v); v == "" {
		return unknownLocation
	}
	return v
}

// Aggregate computes the donation report from already fetched records.
func Aggregate(charges []models.Charge, customers []models.Customer, now time.Time) *models.DonationReport {
	now = now.UTC()
	report := &models.DonationReport{
		Summary:         &models.DonationSummary{},
		RecentDonations: []models.Charge{},
		TopDonors:       []models.DonorTotal{},
		ByCountry:       map[string]int64{},
		ByRegion:        map[string]int64{},
		Timeline:        []models.TimelinePoint{},
		Donors:          []models.DonorTotal{},
		GeneratedAt:     now,
	}
	sum := report.Summary

	for _, c := range customers {
		if c.Metadata[MetaCommunityMember] == "true" {
			sum.CommunityMembers++
		}
	}

	days := make(map[string]*models.TimelinePoint, timelineDays)
	for i := timelineDays - 1; i >= 0; i-- {
		d := now.AddDate(0, 0, -i).Format("2006-01-02")
		report.Timeline = append(report.Timeline, models.TimelinePoint{Date: d})
	}
	for i := range report.Timeline {
		days[report.Timeline[i].Date] = &report.Timeline[i]
	}

	donors := map[string]*models.DonorTotal{}
	var succeeded []models.Charge
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	for _, c := range charges {
		if c.Refunded {
			sum.RefundedAmount += c.Amount
		}
		if !Succeeded(c) {
			continue
		}
		succeeded = append(succeeded, c)

		sum.TotalAmount += c.Amount
		sum.DonationCount++
		if c.Amount > sum.LargestDonation {
			sum.LargestDonation = c.Amount
		}
		if !c.Created.Before(monthStart) {
			sum.ThisMonthAmount += c.Amount
			sum.ThisMonthCount++
		}
		report.ByCountry[location(c.Country)] += c.Amount
		report.ByRegion[location(c.Region)] += c.Amount
		if p, ok := days[c.Created.UTC().Format("2006-01-02")]; ok {
			p.Amount += c.Amount
			p.Count++
		}

		key := donorKey(c)
		d, ok := donors[key]
		if !ok {
			d = &models.DonorTotal{Key: key}
			donors[key] = d
		}
		d.TotalAmount += c.Amount
		d.DonationCount++
		if c.Created.After(d.LastDonation) {
			d.LastDonation = c.Created
			if c.Name != "" {
				d.Name = c.Name
			}
			if c.Email != "" {
				d.Email = c.Email
			}
			if c.Country != "" {
				d.Country = c.Country
			}
		}
	}

	if sum.DonationCount > 0 {
		sum.AverageAmount = sum.TotalAmount / int64(sum.DonationCount)
	}
	sum.DonorCount = len(donors)

	sort.SliceStable(succeeded, func(i, j int) bool { return succeeded[i].Created.After(succeeded[j].Created) })
	if len(succeeded) > recentDonations {
		succeeded = succeeded[:recentDonations]
	}
	report.RecentDonations = append(report.RecentDonations, succeeded...)

	for _, d := range donors {
		report.Donors = append(report.Donors, *d)
	}
	sort.Slice(report.Donors, func(i, j int) bool {
		a, b := report.Donors[i], report.Donors[j]
		if a.TotalAmount != b.TotalAmount {
			return a.TotalAmount > b.TotalAmount
		}
		return a.Key < b.Key
	})
	n := len(report.Donors)
	if n > topDonors {
		n = topDonors
	}
	report.TopDonors = append(report.TopDonors, report.Donors[:n]...)

	return report
}

// Warm refreshes the cached report and fails when it is incomplete.
func (a *Analytics) Warm(ctx context.Context) error {
	if r := a.Refresh(ctx); len(r.Errors) > 0 {
		return fmt.Errorf("donation report incomplete: %s", strings.Join(r.Errors, "; "))
	}
	return nil
}
