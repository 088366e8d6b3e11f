package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"ntrli-bot/internal/domain"
	"ntrli-bot/internal/store"

	"go.uber.org/zap"
)

var (
	ErrSectionNotFound = errors.New("section not found")
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidField    = errors.New("invalid field value")
	ErrAIUnavailable   = errors.New("no insight generator attached")
)

const (
	// MenuUnavailable is returned by RenderMenu when rendering fails
	MenuUnavailable = "Menu unavailable"

	DefaultBrand   = "🌒   N T R L I '   S E L E C T I O N"
	DefaultTagline = "Det her er ikke bare noget du tilvælger, det er noget du genkender."

	InfoOpeningHours = "opening_hours"
	InfoDelivery     = "delivery"
)

// InsightGenerator produces free text for a prompt. It never fails; a
// degraded backend answers with a fallback text.
type InsightGenerator interface {
	Generate(ctx context.Context, userID int64, prompt string) string
}

// Repository defines the interface for catalog data access
type Repository interface {
	AddSection(ctx context.Context, title, emoji, description string) error
	AddProduct(ctx context.Context, sectionTitle, name, specs, price, notes string) error
	UpdateProduct(ctx context.Context, sectionTitle, productName string, fields map[string]string) error
	DeleteProduct(ctx context.Context, sectionTitle, productName string) error
	RegisterProductNFT(ctx context.Context, sectionTitle, productName, nftID, nftFile string) error
	SetBrandInfo(ctx context.Context, key, value string) error
	SetInfo(ctx context.Context, key, value string) error
	SetOpeningHours(ctx context.Context, hours string) error
	SetDeliveryInfo(ctx context.Context, delivery string) error
	GenerateProductInsight(ctx context.Context, productName, specs string) (string, error)

	Section(title string) (*domain.Section, bool)
	Sections() []*domain.Section
	ProductByNFT(nftID string) (*domain.Product, string, bool)
	Info() map[string]string
	AIInsights() []domain.AIInsight
	NFTCatalog() []domain.NFTCatalogEntry
	Counts() (sections, products int)
	RenderMenu() string
}

// Defaults seeds a catalog document that does not exist yet
type Defaults struct {
	Brand   string
	Tagline string
}

type catalogRepository struct {
	mu     sync.RWMutex
	store  *store.JSONStore
	path   string
	doc    *domain.Catalog
	ai     InsightGenerator
	logger *zap.Logger
}

// NewRepository loads the catalog document at path. A missing or corrupt
// document is replaced by an empty catalog built from defaults.
func NewRepository(st *store.JSONStore, path string, defaults Defaults, ai InsightGenerator, logger *zap.Logger) Repository {
	if defaults.Brand == "" {
		defaults.Brand = DefaultBrand
	}
	if defaults.Tagline == "" {
		defaults.Tagline = DefaultTagline
	}

	doc, err := store.Load(st, path, func() *domain.Catalog {
		return &domain.Catalog{Brand: defaults.Brand, Tagline: defaults.Tagline}
	})
	if err != nil {
		logger.Warn("Catalog load failed, continuing with empty catalog",
			zap.String("path", path),
			zap.Error(err),
		)
	}
	normalize(doc)

	return &catalogRepository{
		store:  st,
		path:   path,
		doc:    doc,
		ai:     ai,
		logger: logger,
	}
}

func normalize(doc *domain.Catalog) {
	if doc.Sections == nil {
		doc.Sections = []*domain.Section{}
	}
	for _, s := range doc.Sections {
		if s.Products == nil {
			s.Products = []*domain.Product{}
		}
	}
	if doc.PremiumTiers == nil {
		doc.PremiumTiers = []string{}
	}
	if doc.Info == nil {
		doc.Info = map[string]string{}
	}
	if doc.AIInsights == nil {
		doc.AIInsights = []domain.AIInsight{}
	}
	if doc.NFTCatalog == nil {
		doc.NFTCatalog = []domain.NFTCatalogEntry{}
	}
}

// persist must be called with the write lock held
func (r *catalogRepository) persist() error {
	if err := r.store.Save(r.path, r.doc); err != nil {
		r.logger.Error("Catalog save failed", zap.String("path", r.path), zap.Error(err))
		return fmt.Errorf("failed to save catalog: %w", err)
	}
	return nil
}

// findSection must be called with a lock held
func (r *catalogRepository) findSection(title string) *domain.Section {
	for _, s := range r.doc.Sections {
		if s.Title == title {
			return s
		}
	}
	return nil
}

func findProduct(s *domain.Section, name string) *domain.Product {
	for _, p := range s.Products {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// AddSection appends a section. Titles are not checked for duplicates.
// The section stays in memory even when the save fails.
func (r *catalogRepository) AddSection(ctx context.Context, title, emoji, description string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.doc.Sections = append(r.doc.Sections, &domain.Section{
		Title:       title,
		Emoji:       emoji,
		Description: description,
		Products:    []*domain.Product{},
	})

	return r.persist()
}

// AddProduct appends an available product to the first section with the given title
func (r *catalogRepository) AddProduct(ctx context.Context, sectionTitle, name, specs, price, notes string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	section := r.findSection(sectionTitle)
	if section == nil {
		return fmt.Errorf("%w: %q", ErrSectionNotFound, sectionTitle)
	}

	section.Products = append(section.Products, &domain.Product{
		Name:   name,
		Specs:  specs,
		Price:  price,
		Notes:  notes,
		Status: domain.ProductStatusAvailable,
	})

	return r.persist()
}

// UpdateProduct overwrites the named fields of the first matching product.
// Unknown field names are ignored. No field is changed if any value is
// invalid.
func (r *catalogRepository) UpdateProduct(ctx context.Context, sectionTitle, productName string, fields map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	section := r.findSection(sectionTitle)
	if section == nil {
		return fmt.Errorf("%w: %q", ErrSectionNotFound, sectionTitle)
	}
	product := findProduct(section, productName)
	if product == nil {
		return fmt.Errorf("%w: %q in %q", ErrProductNotFound, productName, sectionTitle)
	}

	updated := product.Clone()
	for field, value := range fields {
		if err := applyField(updated, field, value); err != nil {
			return err
		}
	}
	*product = *updated

	return r.persist()
}

func applyField(p *domain.Product, field, value string) error {
	switch field {
	case "name":
		p.Name = value
	case "specs":
		p.Specs = value
	case "price":
		p.Price = value
	case "notes":
		p.Notes = value
	case "status":
		p.Status = value
	case "nft_id":
		if value == "" || value == "null" {
			p.NFTID = nil
		} else {
			id := value
			p.NFTID = &id
		}
	case "ai_generated":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: ai_generated=%q", ErrInvalidField, value)
		}
		p.AIGenerated = b
	}
	return nil
}

// DeleteProduct removes every product with the given name from the first
// matching section. Deleting a name that is not there still succeeds.
func (r *catalogRepository) DeleteProduct(ctx context.Context, sectionTitle, productName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	section := r.findSection(sectionTitle)
	if section == nil {
		return fmt.Errorf("%w: %q", ErrSectionNotFound, sectionTitle)
	}

	kept := make([]*domain.Product, 0, len(section.Products))
	for _, p := range section.Products {
		if p.Name != productName {
			kept = append(kept, p)
		}
	}
	section.Products = kept

	return r.persist()
}

// RegisterProductNFT links a product to an NFT and logs the conversion
func (r *catalogRepository) RegisterProductNFT(ctx context.Context, sectionTitle, productName, nftID, nftFile string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	section := r.findSection(sectionTitle)
	if section == nil {
		return fmt.Errorf("%w: %q", ErrSectionNotFound, sectionTitle)
	}
	product := findProduct(section, productName)
	if product == nil {
		return fmt.Errorf("%w: %q in %q", ErrProductNotFound, productName, sectionTitle)
	}

	id := nftID
	product.NFTID = &id
	r.doc.NFTCatalog = append(r.doc.NFTCatalog, domain.NFTCatalogEntry{
		Product: productName,
		NFTFile: nftFile,
		Section: sectionTitle,
	})

	return r.persist()
}

// SetBrandInfo sets the brand or tagline
func (r *catalogRepository) SetBrandInfo(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch key {
	case "brand":
		r.doc.Brand = value
	case "tagline":
		r.doc.Tagline = value
	default:
		return fmt.Errorf("%w: unknown brand key %q", ErrInvalidField, key)
	}

	return r.persist()
}

// SetInfo sets a free-form info entry
func (r *catalogRepository) SetInfo(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.doc.Info[key] = value
	return r.persist()
}

func (r *catalogRepository) SetOpeningHours(ctx context.Context, hours string) error {
	return r.SetInfo(ctx, InfoOpeningHours, hours)
}

func (r *catalogRepository) SetDeliveryInfo(ctx context.Context, delivery string) error {
	return r.SetInfo(ctx, InfoDelivery, delivery)
}

// GenerateProductInsight asks the insight generator to describe a product
// and appends the answer to the insight log
func (r *catalogRepository) GenerateProductInsight(ctx context.Context, productName, specs string) (string, error) {
	if r.ai == nil {
		return "", ErrAIUnavailable
	}

	prompt := fmt.Sprintf(
		"Generate a compelling, brief product insight for: %s (%s). Keep it 1-2 sentences, professional.",
		productName, specs,
	)
	insight := r.ai.Generate(ctx, 0, prompt)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.doc.AIInsights = append(r.doc.AIInsights, domain.AIInsight{
		Product:   productName,
		Insight:   insight,
		Timestamp: time.Now().UTC(),
	})

	if err := r.persist(); err != nil {
		return insight, err
	}
	return insight, nil
}

// Section returns a copy of the first section with the given title
func (r *catalogRepository) Section(title string) (*domain.Section, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.findSection(title)
	if s == nil {
		return nil, false
	}
	return s.Clone(), true
}

// Sections returns copies of all sections in insertion order
func (r *catalogRepository) Sections() []*domain.Section {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sections := make([]*domain.Section, 0, len(r.doc.Sections))
	for _, s := range r.doc.Sections {
		sections = append(sections, s.Clone())
	}
	return sections
}

// ProductByNFT finds the product linked to an NFT and its section title
func (r *catalogRepository) ProductByNFT(nftID string) (*domain.Product, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.doc.Sections {
		for _, p := range s.Products {
			if p.NFTID != nil && *p.NFTID == nftID {
				return p.Clone(), s.Title, true
			}
		}
	}
	return nil, "", false
}

func (r *catalogRepository) Info() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info := make(map[string]string, len(r.doc.Info))
	for k, v := range r.doc.Info {
		info[k] = v
	}
	return info
}

func (r *catalogRepository) AIInsights() []domain.AIInsight {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.AIInsight{}, r.doc.AIInsights...)
}

func (r *catalogRepository) NFTCatalog() []domain.NFTCatalogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.NFTCatalogEntry{}, r.doc.NFTCatalog...)
}

// Counts returns the number of sections and products
func (r *catalogRepository) Counts() (sections, products int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.doc.Sections {
		products += len(s.Products)
	}
	return len(r.doc.Sections), products
}

// RenderMenu renders sections and products in insertion order
func (r *catalogRepository) RenderMenu() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var buf bytes.Buffer
	if err := menuTemplate.Execute(&buf, r.doc); err != nil {
		r.logger.Error("Render menu failed", zap.Error(err))
		return MenuUnavailable
	}
	return buf.String()
}
