package domain

import "time"

// ProductStatusAvailable is the status every new product starts with
const ProductStatusAvailable = "available"

// Catalog is the root document persisted to the catalog file
type Catalog struct {
	Brand        string            `json:"brand"`
	Tagline      string            `json:"tagline"`
	Sections     []*Section        `json:"sections"`
	PremiumTiers []string          `json:"premium_tiers"`
	Info         map[string]string `json:"info"`
	AIInsights   []AIInsight       `json:"ai_insights"`
	NFTCatalog   []NFTCatalogEntry `json:"nft_catalog"`
}

// Section groups products under a title. Title is the lookup key; the
// first section with a given title wins.
type Section struct {
	Title       string     `json:"title"`
	Emoji       string     `json:"emoji"`
	Description string     `json:"description"`
	Products    []*Product `json:"products"`
}

// Product represents a product in a catalog section
type Product struct {
	Name        string  `json:"name"`
	Specs       string  `json:"specs"`
	Price       string  `json:"price"`
	Notes       string  `json:"notes"`
	Status      string  `json:"status"`
	NFTID       *string `json:"nft_id"`
	AIGenerated bool    `json:"ai_generated"`
}

// AIInsight is one entry of the append-only insight log
type AIInsight struct {
	Product   string    `json:"product"`
	Insight   string    `json:"insight"`
	Timestamp time.Time `json:"timestamp"`
}

// NFTCatalogEntry is one entry of the append-only NFT conversion log
type NFTCatalogEntry struct {
	Product string `json:"product"`
	NFTFile string `json:"nft_file"`
	Section string `json:"section"`
}

// Clone returns a deep copy of the product
func (p *Product) Clone() *Product {
	c := *p
	if p.NFTID != nil {
		id := *p.NFTID
		c.NFTID = &id
	}
	return &c
}

// Clone returns a deep copy of the section and its products
func (s *Section) Clone() *Section {
	c := *s
	c.Products = make([]*Product, 0, len(s.Products))
	for _, p := range s.Products {
		c.Products = append(c.Products, p.Clone())
	}
	return &c
}
