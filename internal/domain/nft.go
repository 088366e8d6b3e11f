package domain

import "time"

// EcosystemName is stamped on every exported NFT certificate
const EcosystemName = "NTRLI' Ecosystem"

// NFTRecord represents a generated NFT asset. A record is created without
// an owner and only ever changes by having Owner set.
type NFTRecord struct {
	NFTID            string         `json:"nft_id"`
	ProductName      string         `json:"product_name"`
	SectionName      string         `json:"section_name"`
	NFTFile          string         `json:"nft_file"`
	OriginalFile     string         `json:"original_file"`
	Metadata         map[string]any `json:"metadata"`
	CreatedTimestamp time.Time      `json:"created_timestamp"`
	Owner            *int64         `json:"owner"`
}

// Ownership is the ownership map entry for one NFT
type Ownership struct {
	OwnerID           int64     `json:"owner_id"`
	AcquiredTimestamp time.Time `json:"acquired_timestamp"`
	ProductName       string    `json:"product_name"`
}

// Registry is the root document persisted to the NFT registry file
type Registry struct {
	NFTs      []*NFTRecord          `json:"nfts"`
	Ownership map[string]*Ownership `json:"ownership"`
}

// NFTStats holds counts derived from the registry
type NFTStats struct {
	Total        int `json:"total_nfts_generated"`
	Owned        int `json:"nfts_with_ownership"`
	UniqueOwners int `json:"unique_owners"`
	Unowned      int `json:"unowned_nfts"`
}

// Certificate is the public projection of an NFT record
type Certificate struct {
	NFTID           string    `json:"nft_id"`
	ProductName     string    `json:"product_name"`
	ProductCategory string    `json:"product_category"`
	NFTFile         string    `json:"nft_file"`
	Created         time.Time `json:"created"`
	Owner           *int64    `json:"owner"`
	Verified        bool      `json:"verified"`
	Ecosystem       string    `json:"ecosystem"`
}

// IsOwned reports whether the record has left the CREATED state
func (r *NFTRecord) IsOwned() bool {
	return r.Owner != nil
}

// Clone returns a copy of the record safe to hand out of the registry
func (r *NFTRecord) Clone() *NFTRecord {
	c := *r
	if r.Owner != nil {
		owner := *r.Owner
		c.Owner = &owner
	}
	if r.Metadata != nil {
		c.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
