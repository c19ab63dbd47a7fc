// Package marketplace lists issued credits for resale, records purchases and
// reports market price statistics.
package marketplace

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"carbon-scribe/credit-registry-backend/internal/apperr"
	"carbon-scribe/credit-registry-backend/internal/database"
	"carbon-scribe/credit-registry-backend/internal/events"
	"carbon-scribe/credit-registry-backend/internal/ids"
	"carbon-scribe/credit-registry-backend/internal/metrics"
	"carbon-scribe/credit-registry-backend/internal/models"
	"carbon-scribe/credit-registry-backend/internal/store"
)

// quantityEpsilon absorbs float rounding when a listing is bought out.
const quantityEpsilon = 1e-9

type Service struct {
	stores          *database.Stores
	publisher       events.Publisher
	defaultCurrency string
	logger          *zap.Logger
	now             func() time.Time
}

func NewService(stores *database.Stores, publisher events.Publisher, defaultCurrency string, logger *zap.Logger) *Service {
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}
	return &Service{
		stores:          stores,
		publisher:       publisher,
		defaultCurrency: defaultCurrency,
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// CreateListing offers the unsold part of a credit for sale. The credit is
// claimed for the new listing with a compare-and-swap before the listing is
// written, so a credit never has two active listings.
func (s *Service) CreateListing(ctx context.Context, actor string, req *CreateListingRequest) (*models.MarketplaceListing, error) {
	if req.Price <= 0 {
		return nil, apperr.Field("price", "must be greater than 0")
	}
	if req.ExpiryDate != nil && !req.ExpiryDate.After(s.now()) {
		return nil, apperr.Field("expiry_date", "must be in the future")
	}
	minimum := 1.0
	if req.MinimumQuantity != nil {
		minimum = *req.MinimumQuantity
	}
	if minimum <= 0 {
		return nil, apperr.Field("minimum_quantity", "must be greater than 0")
	}
	if req.SellerID != "" {
		if _, err := s.stores.Stakeholders.Get(ctx, req.SellerID); err != nil {
			return nil, apperr.FromStore(err, "stakeholder", req.SellerID)
		}
	}

	listingID := ids.New(ids.PrefixListing)
	var available float64
	credit, err := s.stores.Credits.Update(ctx, req.CreditID, func(c *models.CarbonCredit) error {
		if c.Status.Terminal() {
			return apperr.StateConflict("credit %s is %s and cannot be listed", c.ID, c.Status)
		}
		if c.ListingID != "" {
			return apperr.StateConflict("credit %s is already listed as %s", c.ID, c.ListingID)
		}
		available = c.Unsold()
		if available < quantityEpsilon {
			return apperr.StateConflict("credit %s has been sold in full", c.ID)
		}
		if minimum > available+quantityEpsilon {
			return apperr.Field("minimum_quantity", fmt.Sprintf("must not exceed the unsold amount %g", available))
		}
		c.ListingID = listingID
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(err, "credit", req.CreditID)
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = s.defaultCurrency
	}

	listing := &models.MarketplaceListing{
		Meta:              store.Meta{ID: listingID},
		CreditID:          credit.ID,
		SellerID:          req.SellerID,
		Price:             req.Price,
		Currency:          currency,
		MinimumQuantity:   minimum,
		AvailableQuantity: available,
		ExpiryDate:        req.ExpiryDate,
		Description:       req.Description,
		Status:            models.ListingActive,
		Transactions:      []models.Transaction{},
	}
	id, err := s.stores.Listings.Insert(ctx, listing)
	if err != nil {
		s.settleCredit(ctx, credit.ID, listingID, 0, true)
		return nil, apperr.FromStore(err, "listing", listingID)
	}

	s.logger.Info("Marketplace listing created",
		zap.String("listing_id", id),
		zap.String("credit_id", credit.ID),
		zap.Float64("price", listing.Price),
		zap.Float64("quantity", listing.AvailableQuantity))
	s.publisher.Publish(ctx, events.New(events.ListingCreated, credit.ProjectID, id, actor, map[string]interface{}{
		"credit_id": credit.ID,
		"price":     listing.Price,
		"currency":  listing.Currency,
		"quantity":  listing.AvailableQuantity,
	}))
	return listing, nil
}

// Browse returns active listings. The category filter follows the listing's
// credit to its project.
func (s *Service) Browse(ctx context.Context, filter BrowseFilter) ([]*models.MarketplaceListing, error) {
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return nil, apperr.Field("min_price", "must not exceed max_price")
	}

	listings, err := s.stores.Listings.List(ctx, func(l *models.MarketplaceListing) bool {
		if l.Status != models.ListingActive {
			return false
		}
		if filter.MinPrice != nil && l.Price < *filter.MinPrice {
			return false
		}
		return filter.MaxPrice == nil || l.Price <= *filter.MaxPrice
	})
	if err != nil {
		return nil, apperr.Internal("failed to list marketplace listings", err)
	}
	if filter.Category == "" {
		return listings, nil
	}

	categories, err := s.creditCategories(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.MarketplaceListing, 0, len(listings))
	for _, l := range listings {
		if categories[l.CreditID] == filter.Category {
			out = append(out, l)
		}
	}
	return out, nil
}

// creditCategories maps every credit id to its project's category.
func (s *Service) creditCategories(ctx context.Context) (map[string]models.ProjectCategory, error) {
	projects, err := s.stores.Projects.List(ctx, nil)
	if err != nil {
		return nil, apperr.Internal("failed to load projects", err)
	}
	byProject := make(map[string]models.ProjectCategory, len(projects))
	for _, p := range projects {
		byProject[p.ID] = p.Category
	}

	credits, err := s.stores.Credits.List(ctx, nil)
	if err != nil {
		return nil, apperr.Internal("failed to load credits", err)
	}
	out := make(map[string]models.ProjectCategory, len(credits))
	for _, c := range credits {
		if category, ok := byProject[c.ProjectID]; ok {
			out[c.ID] = category
		}
	}
	return out, nil
}

// PriceStats aggregates over active listings. An empty market reports zeros.
func (s *Service) PriceStats(ctx context.Context) (*PriceStats, error) {
	listings, err := s.stores.Listings.List(ctx, func(l *models.MarketplaceListing) bool {
		return l.Status == models.ListingActive
	})
	if err != nil {
		return nil, apperr.Internal("failed to list marketplace listings", err)
	}

	stats := &PriceStats{TotalListings: len(listings)}
	if len(listings) == 0 {
		return stats, nil
	}

	stats.MinPrice = math.Inf(1)
	stats.MaxPrice = math.Inf(-1)
	var sum float64
	for _, l := range listings {
		sum += l.Price
		stats.MinPrice = math.Min(stats.MinPrice, l.Price)
		stats.MaxPrice = math.Max(stats.MaxPrice, l.Price)
		switch {
		case l.Price < lowPriceCeiling:
			stats.Distribution.Low++
		case l.Price < mediumPriceCeiling:
			stats.Distribution.Medium++
		default:
			stats.Distribution.High++
		}
	}
	stats.AveragePrice = sum / float64(len(listings))
	return stats, nil
}

func (s *Service) GetListing(ctx context.Context, id string) (*models.MarketplaceListing, error) {
	listing, err := s.stores.Listings.Get(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "listing", id)
	}
	return listing, nil
}

func (s *Service) CancelListing(ctx context.Context, id, actor string) (*models.MarketplaceListing, error) {
	listing, err := s.stores.Listings.Update(ctx, id, func(l *models.MarketplaceListing) error {
		if l.Status != models.ListingActive {
			return apperr.StateConflict("listing %s is %s", l.ID, l.Status)
		}
		l.Status = models.ListingCancelled
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(err, "listing", id)
	}

	s.settleCredit(ctx, listing.CreditID, listing.ID, 0, true)

	s.logger.Info("Marketplace listing cancelled", zap.String("listing_id", id))
	s.publisher.Publish(ctx, events.New(events.ListingCancelled, "", id, actor, map[string]interface{}{
		"credit_id": listing.CreditID,
	}))
	return listing, nil
}

// Purchase buys part or all of a listing. The quantity check and the
// decrement happen in one store update.
func (s *Service) Purchase(ctx context.Context, id, actor string, req *PurchaseRequest) (*PurchaseResult, error) {
	if req.Quantity <= 0 {
		return nil, apperr.Field("quantity", "must be greater than 0")
	}
	if req.BuyerID == "" {
		return nil, apperr.Field("buyer_id", "is required")
	}
	if _, err := s.stores.Stakeholders.Get(ctx, req.BuyerID); err != nil {
		return nil, apperr.FromStore(err, "stakeholder", req.BuyerID)
	}

	var tx models.Transaction
	listing, err := s.stores.Listings.Update(ctx, id, func(l *models.MarketplaceListing) error {
		now := s.now()
		if l.Status != models.ListingActive {
			return apperr.StateConflict("listing %s is %s", l.ID, l.Status)
		}
		if l.ExpiryDate != nil && !l.ExpiryDate.After(now) {
			return apperr.StateConflict("listing %s has expired", l.ID)
		}
		if l.SellerID != "" && l.SellerID == req.BuyerID {
			return apperr.Field("buyer_id", "seller cannot buy their own listing")
		}
		if req.Quantity > l.AvailableQuantity+quantityEpsilon {
			return apperr.Field("quantity", fmt.Sprintf("only %g available", l.AvailableQuantity))
		}
		buysRemainder := math.Abs(req.Quantity-l.AvailableQuantity) < quantityEpsilon
		if req.Quantity < l.MinimumQuantity && !buysRemainder {
			return apperr.Field("quantity", fmt.Sprintf("minimum purchase is %g", l.MinimumQuantity))
		}

		tx = models.Transaction{
			ID:       ids.New(ids.PrefixTransaction),
			BuyerID:  req.BuyerID,
			Quantity: req.Quantity,
			Price:    l.Price,
			Total:    math.Round(req.Quantity*l.Price*100) / 100,
			Date:     now,
			Status:   models.TransactionCompleted,
		}
		l.Transactions = append(l.Transactions, tx)
		l.AvailableQuantity -= req.Quantity
		if buysRemainder || l.AvailableQuantity < quantityEpsilon {
			l.AvailableQuantity = 0
			l.Status = models.ListingSold
		}
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(err, "listing", id)
	}

	s.settleCredit(ctx, listing.CreditID, listing.ID, tx.Quantity, listing.Status == models.ListingSold)

	metrics.ListingsPurchased.Inc()
	s.logger.Info("Marketplace purchase completed",
		zap.String("listing_id", id),
		zap.String("transaction_id", tx.ID),
		zap.String("buyer_id", tx.BuyerID),
		zap.Float64("quantity", tx.Quantity),
		zap.Float64("total", tx.Total))
	s.publisher.Publish(ctx, events.New(events.ListingPurchased, "", id, actor, map[string]interface{}{
		"credit_id":      listing.CreditID,
		"transaction_id": tx.ID,
		"buyer_id":       tx.BuyerID,
		"quantity":       tx.Quantity,
		"total":          tx.Total,
		"status":         string(listing.Status),
	}))
	return &PurchaseResult{Listing: listing, Transaction: tx}, nil
}

// ExpireListings marks active listings whose expiry date has passed as
// expired and returns how many were changed.
func (s *Service) ExpireListings(ctx context.Context, now time.Time) (int, error) {
	due, err := s.stores.Listings.List(ctx, func(l *models.MarketplaceListing) bool {
		return l.Status == models.ListingActive && l.ExpiryDate != nil && !l.ExpiryDate.After(now)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to find expired listings: %w", err)
	}

	expired := 0
	for _, l := range due {
		_, err := s.stores.Listings.Update(ctx, l.ID, func(cur *models.MarketplaceListing) error {
			if cur.Status != models.ListingActive {
				return apperr.StateConflict("listing %s is %s", cur.ID, cur.Status)
			}
			cur.Status = models.ListingExpired
			return nil
		})
		if apperr.Is(err, apperr.KindStateConflict) {
			continue
		}
		if err != nil {
			s.logger.Warn("Failed to expire listing", zap.String("listing_id", l.ID), zap.Error(err))
			continue
		}
		s.settleCredit(ctx, l.CreditID, l.ID, 0, true)
		expired++
		metrics.ListingsExpired.Inc()
		s.publisher.Publish(ctx, events.New(events.ListingExpired, "", l.ID, "", map[string]interface{}{
			"credit_id": l.CreditID,
		}))
	}
	return expired, nil
}

// settleCredit books sold quantity against the listing's credit and, when
// release is set, frees the credit for its next listing. Listing and credit
// live in separate records, so a failure here is logged rather than undone.
func (s *Service) settleCredit(ctx context.Context, creditID, listingID string, sold float64, release bool) {
	_, err := s.stores.Credits.Update(ctx, creditID, func(c *models.CarbonCredit) error {
		c.SoldQuantity += sold
		if math.Abs(c.CreditsAmount-c.SoldQuantity) < quantityEpsilon {
			c.SoldQuantity = c.CreditsAmount
		}
		if release && c.ListingID == listingID {
			c.ListingID = ""
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to settle credit after listing change",
			zap.String("credit_id", creditID),
			zap.String("listing_id", listingID),
			zap.Float64("sold", sold),
			zap.Bool("release", release),
			zap.Error(err))
	}
}
