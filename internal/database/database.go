// Package database opens the configured record store backend and hands out
// one collection per registry entity.
package database

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"carbon-scribe/credit-registry-backend/internal/config"
	"carbon-scribe/credit-registry-backend/internal/ids"
	"carbon-scribe/credit-registry-backend/internal/models"
	"carbon-scribe/credit-registry-backend/internal/store"
)

var (
	ProjectKind      = store.Kind{Name: "projects", Prefix: ids.PrefixProject}
	StakeholderKind  = store.Kind{Name: "stakeholders", Prefix: ids.PrefixStakeholder}
	UploadKind       = store.Kind{Name: "data_uploads", Prefix: ids.PrefixUpload}
	VerificationKind = store.Kind{Name: "verifications", Prefix: ids.PrefixVerification}
	CreditKind       = store.Kind{Name: "carbon_credits", Prefix: ids.PrefixCredit}
	ListingKind      = store.Kind{Name: "marketplace_listings", Prefix: ids.PrefixListing}
)

// Stores bundles the collections of every registry entity.
type Stores struct {
	Projects      store.Collection[models.Project]
	Stakeholders  store.Collection[models.Stakeholder]
	Uploads       store.Collection[models.DataUpload]
	Verifications store.Collection[models.VerificationSubmission]
	Credits       store.Collection[models.CarbonCredit]
	Listings      store.Collection[models.MarketplaceListing]

	closers []func(context.Context) error
}

// NewMemoryStores returns empty in-memory collections.
func NewMemoryStores() *Stores {
	return &Stores{
		Projects:      store.NewMemory[models.Project](ProjectKind),
		Stakeholders:  store.NewMemory[models.Stakeholder](StakeholderKind),
		Uploads:       store.NewMemory[models.DataUpload](UploadKind),
		Verifications: store.NewMemory[models.VerificationSubmission](VerificationKind),
		Credits:       store.NewMemory[models.CarbonCredit](CreditKind),
		Listings:      store.NewMemory[models.MarketplaceListing](ListingKind),
	}
}

// Open connects to the backend named by cfg.Database.Driver.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, error) {
	switch cfg.Database.Driver {
	case "", "memory":
		logger.Warn("Using in-memory record store, data will not survive a restart")
		return NewMemoryStores(), nil
	case "postgres":
		return openPostgres(cfg, logger)
	case "mongo":
		return openMongo(ctx, cfg, logger)
	case "dynamodb":
		return openDynamo(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

func openPostgres(cfg *config.Config, logger *zap.Logger) (*Stores, error) {
	db, err := ConnectPostgres(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.MigratePostgres(db); err != nil {
		return nil, err
	}
	logger.Info("Connected to PostgreSQL", zap.String("database", cfg.Database.DBName))

	s := &Stores{
		Projects:      store.NewPostgres[models.Project](db, ProjectKind),
		Stakeholders:  store.NewPostgres[models.Stakeholder](db, StakeholderKind),
		Uploads:       store.NewPostgres[models.DataUpload](db, UploadKind),
		Verifications: store.NewPostgres[models.VerificationSubmission](db, VerificationKind),
		Credits:       store.NewPostgres[models.CarbonCredit](db, CreditKind),
		Listings:      store.NewPostgres[models.MarketplaceListing](db, ListingKind),
	}
	s.closers = append(s.closers, func(context.Context) error { return closeGorm(db) })
	return s, nil
}

// ConnectPostgres opens the pool described by cfg.Database.
func ConnectPostgres(cfg *config.Config) (*gorm.DB, error) {
	return store.OpenPostgres(store.PostgresOptions{
		DSN:            cfg.Database.GetDatabaseURL(),
		MaxConnections: cfg.Database.MaxConnections,
		MaxIdleConns:   cfg.Database.MaxIdleConns,
		MaxLifetime:    cfg.Database.MaxLifetime,
		LogSQL:         cfg.Database.LogSQL,
	})
}

func closeGorm(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func openMongo(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, error) {
	client, err := store.ConnectMongo(ctx, cfg.Database.MongoURI)
	if err != nil {
		return nil, err
	}
	db := client.Database(cfg.Database.MongoDatabase)
	logger.Info("Connected to MongoDB", zap.String("database", cfg.Database.MongoDatabase))

	s := &Stores{
		Projects:      store.NewMongo[models.Project](db, ProjectKind),
		Stakeholders:  store.NewMongo[models.Stakeholder](db, StakeholderKind),
		Uploads:       store.NewMongo[models.DataUpload](db, UploadKind),
		Verifications: store.NewMongo[models.VerificationSubmission](db, VerificationKind),
		Credits:       store.NewMongo[models.CarbonCredit](db, CreditKind),
		Listings:      store.NewMongo[models.MarketplaceListing](db, ListingKind),
	}
	s.closers = append(s.closers, client.Disconnect)
	return s, nil
}

func openDynamo(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, error) {
	awsCfg, err := config.LoadAWS(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}
	client := dynamodb.NewFromConfig(awsCfg)
	table := cfg.Database.DynamoTable
	if err := store.EnsureDynamoTable(ctx, client, table); err != nil {
		return nil, err
	}
	logger.Info("Using DynamoDB table", zap.String("table", table))

	return &Stores{
		Projects:      store.NewDynamo[models.Project](client, table, ProjectKind),
		Stakeholders:  store.NewDynamo[models.Stakeholder](client, table, StakeholderKind),
		Uploads:       store.NewDynamo[models.DataUpload](client, table, UploadKind),
		Verifications: store.NewDynamo[models.VerificationSubmission](client, table, VerificationKind),
		Credits:       store.NewDynamo[models.CarbonCredit](client, table, CreditKind),
		Listings:      store.NewDynamo[models.MarketplaceListing](client, table, ListingKind),
	}, nil
}

// Close releases the backend connections.
func (s *Stores) Close(ctx context.Context) error {
	var firstErr error
	for _, closeFn := range s.closers {
		if err := closeFn(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
