// Package credits issues carbon credits from approved verifications and
// manages their retirement, cancellation and certificates.
package credits

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"carbon-scribe/credit-registry-backend/internal/apperr"
	"carbon-scribe/credit-registry-backend/internal/database"
	"carbon-scribe/credit-registry-backend/internal/events"
	"carbon-scribe/credit-registry-backend/internal/ids"
	"carbon-scribe/credit-registry-backend/internal/metrics"
	"carbon-scribe/credit-registry-backend/internal/models"
	"carbon-scribe/credit-registry-backend/pkg/pdf"
)

// errNotApproved is returned whenever issuance is attempted from anything
// but an approved verification.
const errNotApproved = "valid approved verification required"

type Service struct {
	stores    *database.Stores
	serials   *ids.SerialGenerator
	renderer  *pdf.CertificateRenderer
	publisher events.Publisher
	baseURL   string
	logger    *zap.Logger
	now       func() time.Time
}

// NewService wires the credit service. baseURL is the public address used
// in certificate links.
func NewService(stores *database.Stores, serials *ids.SerialGenerator, renderer *pdf.CertificateRenderer, publisher events.Publisher, baseURL string, logger *zap.Logger) *Service {
	return &Service{
		stores:    stores,
		serials:   serials,
		renderer:  renderer,
		publisher: publisher,
		baseURL:   baseURL,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// IssueCredit creates a credit from an approved verification. The
// verification is moved to credit_issued with a compare-and-swap before the
// credit is written, so a verification yields at most one credit.
func (s *Service) IssueCredit(ctx context.Context, actor string, req *IssueCreditRequest) (*models.CarbonCredit, error) {
	if req.CreditsAmount <= 0 {
		return nil, apperr.Field("credits_amount", "must be greater than 0")
	}
	vintage := req.Vintage
	if vintage == "" {
		vintage = strconv.Itoa(s.now().Year())
	}
	if _, err := strconv.Atoi(vintage); err != nil || len(vintage) != 4 {
		return nil, apperr.Field("vintage", "must be a four digit year")
	}
	methodology := req.Methodology
	if methodology == "" {
		methodology = models.DefaultMethodology
	}

	project, err := s.stores.Projects.Get(ctx, req.ProjectID)
	if err != nil {
		return nil, apperr.FromStore(err, "project", req.ProjectID)
	}
	verification, err := s.stores.Verifications.Get(ctx, req.VerificationID)
	if err != nil {
		return nil, apperr.FromStore(err, "verification", req.VerificationID)
	}
	if verification.Status != models.VerificationApproved {
		return nil, apperr.StateConflict(errNotApproved)
	}
	if verification.ProjectID != project.ID {
		return nil, apperr.Field("verification_id", fmt.Sprintf("belongs to project %s", verification.ProjectID))
	}

	now := s.now()
	credit := &models.CarbonCredit{
		ProjectID:      project.ID,
		VerificationID: verification.ID,
		CreditsAmount:  req.CreditsAmount,
		Methodology:    methodology,
		Vintage:        vintage,
		SerialNumber:   s.serials.Next(project.ID, vintage),
		Description:    req.Description,
		Status:         models.CreditActive,
		IssuedAt:       now,
		IssuedBy:       actor,
	}
	credit.ID = ids.New(ids.PrefixCredit)

	_, err = s.stores.Verifications.Update(ctx, verification.ID, func(v *models.VerificationSubmission) error {
		if v.Status != models.VerificationApproved {
			return apperr.StateConflict(errNotApproved)
		}
		v.Status = models.VerificationCreditIssued
		v.CreditID = credit.ID
		v.History = append(v.History, models.Decision{
			Status:   models.VerificationCreditIssued,
			Actor:    actor,
			Comments: "credit " + credit.SerialNumber,
			At:       now,
		})
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(err, "verification", verification.ID)
	}

	if _, err := s.stores.Credits.Insert(ctx, credit); err != nil {
		s.releaseVerification(ctx, verification.ID, credit.ID)
		return nil, apperr.FromStore(err, "credit", credit.ID)
	}

	_, err = s.stores.Projects.Update(ctx, project.ID, func(p *models.Project) error {
		p.ActualCredits += credit.CreditsAmount
		return nil
	})
	if err != nil {
		s.logger.Warn("Credit issued but project totals not updated",
			zap.String("project_id", project.ID),
			zap.String("credit_id", credit.ID),
			zap.Error(err))
	}

	metrics.CreditsIssued.Inc()
	metrics.CreditVolumeIssued.Add(credit.CreditsAmount)
	s.logger.Info("Carbon credit issued",
		zap.String("credit_id", credit.ID),
		zap.String("serial_number", credit.SerialNumber),
		zap.String("project_id", project.ID),
		zap.String("verification_id", verification.ID),
		zap.Float64("credits_amount", credit.CreditsAmount))
	s.publisher.Publish(ctx, events.New(events.CreditIssued, project.ID, credit.ID, actor, map[string]interface{}{
		"serial_number":  credit.SerialNumber,
		"credits_amount": credit.CreditsAmount,
		"vintage":        credit.Vintage,
	}))
	return credit, nil
}

// releaseVerification puts a verification back to approved after the
// credit could not be stored.
func (s *Service) releaseVerification(ctx context.Context, verificationID, creditID string) {
	_, err := s.stores.Verifications.Update(ctx, verificationID, func(v *models.VerificationSubmission) error {
		if v.CreditID != creditID {
			return fmt.Errorf("verification now references credit %s", v.CreditID)
		}
		v.Status = models.VerificationApproved
		v.CreditID = ""
		v.History = v.History[:len(v.History)-1]
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to release verification after credit insert failure",
			zap.String("verification_id", verificationID),
			zap.String("credit_id", creditID),
			zap.Error(err))
	}
}

func (s *Service) GetCredit(ctx context.Context, id string) (*models.CarbonCredit, error) {
	credit, err := s.stores.Credits.Get(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "credit", id)
	}
	return credit, nil
}

func (s *Service) ListCredits(ctx context.Context, filter Filter) ([]*models.CarbonCredit, error) {
	out, err := s.stores.Credits.List(ctx, func(c *models.CarbonCredit) bool {
		if filter.ProjectID != "" && c.ProjectID != filter.ProjectID {
			return false
		}
		return filter.Status == "" || c.Status == filter.Status
	})
	if err != nil {
		return nil, apperr.Internal("failed to list credits", err)
	}
	return out, nil
}

// RetireCredit permanently claims a credit's offset for a beneficiary.
func (s *Service) RetireCredit(ctx context.Context, id, actor string, req *RetireRequest) (*models.CarbonCredit, error) {
	if req.Reason == "" {
		return nil, apperr.Field("reason", "is required")
	}
	credit, err := s.stores.Credits.Update(ctx, id, func(c *models.CarbonCredit) error {
		if c.Status.Terminal() {
			return apperr.StateConflict("credit %s is already %s", c.ID, c.Status)
		}
		if err := checkNotListed(c); err != nil {
			return err
		}
		now := s.now()
		c.Status = models.CreditRetired
		c.RetiredAt = &now
		c.RetirementReason = req.Reason
		c.Beneficiary = req.Beneficiary
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(err, "credit", id)
	}

	s.logger.Info("Carbon credit retired",
		zap.String("credit_id", id),
		zap.String("serial_number", credit.SerialNumber),
		zap.String("beneficiary", credit.Beneficiary))
	s.publisher.Publish(ctx, events.New(events.CreditRetired, credit.ProjectID, id, actor, map[string]interface{}{
		"serial_number": credit.SerialNumber,
		"beneficiary":   credit.Beneficiary,
		"reason":        credit.RetirementReason,
	}))
	return credit, nil
}

func (s *Service) CancelCredit(ctx context.Context, id, actor string, req *CancelRequest) (*models.CarbonCredit, error) {
	credit, err := s.stores.Credits.Update(ctx, id, func(c *models.CarbonCredit) error {
		if c.Status.Terminal() {
			return apperr.StateConflict("credit %s is already %s", c.ID, c.Status)
		}
		if err := checkNotListed(c); err != nil {
			return err
		}
		c.Status = models.CreditCancelled
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(err, "credit", id)
	}

	s.logger.Info("Carbon credit cancelled", zap.String("credit_id", id), zap.String("reason", req.Reason))
	s.publisher.Publish(ctx, events.New(events.CreditCancelled, credit.ProjectID, id, actor, map[string]interface{}{
		"serial_number": credit.SerialNumber,
		"reason":        req.Reason,
	}))
	return credit, nil
}

// checkNotListed refuses to take a credit off the market while a listing
// is still selling it.
func checkNotListed(c *models.CarbonCredit) error {
	if c.ListingID != "" {
		return apperr.StateConflict("credit %s has an active marketplace listing %s", c.ID, c.ListingID)
	}
	return nil
}

// Certificate describes the credit for display or download. No document is
// rendered here.
func (s *Service) Certificate(ctx context.Context, id string) (*models.Certificate, error) {
	credit, err := s.GetCredit(ctx, id)
	if err != nil {
		return nil, err
	}
	if credit.Status == models.CreditCancelled {
		return nil, apperr.StateConflict("credit %s is cancelled", id)
	}
	project, err := s.stores.Projects.Get(ctx, credit.ProjectID)
	if err != nil {
		return nil, apperr.FromStore(err, "project", credit.ProjectID)
	}

	link := fmt.Sprintf("%s/api/v1/credits/%s/certificate", s.baseURL, credit.ID)
	return &models.Certificate{
		CertificateNumber: "CERT-" + credit.SerialNumber,
		CreditID:          credit.ID,
		SerialNumber:      credit.SerialNumber,
		ProjectID:         project.ID,
		ProjectName:       project.Name,
		ProjectCategory:   string(project.Category),
		Country:           project.Location.Country,
		CreditsAmount:     credit.CreditsAmount,
		Methodology:       credit.Methodology,
		Vintage:           credit.Vintage,
		Status:            string(credit.Status),
		IssuedAt:          credit.IssuedAt,
		Beneficiary:       credit.Beneficiary,
		URL:               link,
		PDFURL:            link + ".pdf",
	}, nil
}

// CertificatePDF renders the certificate document.
func (s *Service) CertificatePDF(ctx context.Context, id string) ([]byte, *models.Certificate, error) {
	cert, err := s.Certificate(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	doc, err := s.renderer.Render(pdf.Certificate{
		CertificateNumber: cert.CertificateNumber,
		SerialNumber:      cert.SerialNumber,
		ProjectName:       cert.ProjectName,
		ProjectCategory:   cert.ProjectCategory,
		Country:           cert.Country,
		CreditsAmount:     cert.CreditsAmount,
		Methodology:       cert.Methodology,
		Vintage:           cert.Vintage,
		Status:            cert.Status,
		IssuedAt:          cert.IssuedAt,
		Beneficiary:       cert.Beneficiary,
		VerifyURL:         cert.URL,
	})
	if err != nil {
		return nil, nil, apperr.Internal("failed to render certificate", err)
	}
	return doc, cert, nil
}
