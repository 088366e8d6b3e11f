package nft

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"ntrli-bot/internal/domain"
	"ntrli-bot/internal/store"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var ErrNFTNotFound = errors.New("nft not found")

const registryFile = "registry.json"

// CatalogLinker receives NFT conversions so the catalog can point products at them
type CatalogLinker interface {
	RegisterProductNFT(ctx context.Context, sectionTitle, productName, nftID, nftFile string) error
}

// Registry defines the interface for NFT creation, ownership and lookup
type Registry interface {
	ConvertImage(ctx context.Context, imagePath, productName, sectionName string, metadata map[string]any) (nftID, nftPath string, err error)
	GenerateProductNFT(ctx context.Context, productName, sectionName, specs string) (nftID, nftPath string, err error)
	AssignOwnership(ctx context.Context, nftID string, ownerID int64) error
	Get(nftID string) (*domain.NFTRecord, error)
	UserNFTs(ownerID int64) []*domain.NFTRecord
	List() []*domain.NFTRecord
	Stats() domain.NFTStats
	Certificate(nftID string) (*domain.Certificate, error)
}

type registry struct {
	mu      sync.RWMutex
	fs      afero.Fs
	store   *store.JSONStore
	dir     string
	path    string
	doc     *domain.Registry
	catalog CatalogLinker
	logger  *zap.Logger
	now     func() time.Time
}

// NewRegistry loads the registry kept in dir, creating dir if needed.
// catalog may be nil.
func NewRegistry(st *store.JSONStore, dir string, catalog CatalogLinker, logger *zap.Logger) (Registry, error) {
	fs := st.Fs()
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create nft dir: %w", err)
	}

	path := filepath.Join(dir, registryFile)
	doc, err := store.Load(st, path, func() *domain.Registry {
		return &domain.Registry{}
	})
	if err != nil {
		logger.Warn("NFT registry load failed, continuing with empty registry",
			zap.String("path", path),
			zap.Error(err),
		)
	}
	if doc.NFTs == nil {
		doc.NFTs = []*domain.NFTRecord{}
	}
	if doc.Ownership == nil {
		doc.Ownership = map[string]*domain.Ownership{}
	}

	return &registry{
		fs:      fs,
		store:   st,
		dir:     dir,
		path:    path,
		doc:     doc,
		catalog: catalog,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// DeriveID computes the NFT identifier for a product conversion: the first
// 16 hex characters of sha256(product + section + mtime seconds). The same
// inputs always give the same id.
func DeriveID(productName, sectionName string, mtime time.Time) string {
	seconds := strconv.FormatFloat(float64(mtime.UnixNano())/1e9, 'f', -1, 64)
	sum := sha256.Sum256([]byte(productName + sectionName + seconds))
	return hex.EncodeToString(sum[:])[:16]
}

// ConvertImage turns an image file into an NFT asset and records it.
//
// The returned id and path are valid whenever the image was written, even
// if the registry could not be saved afterwards; err then wraps store.ErrIO.
func (r *registry) ConvertImage(ctx context.Context, imagePath, productName, sectionName string, metadata map[string]any) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	img, info, err := loadRGB(r.fs, imagePath)
	if err != nil {
		r.logger.Error("Convert image to NFT failed", zap.String("image", imagePath), zap.Error(err))
		return "", "", fmt.Errorf("%w: %v", store.ErrIO, err)
	}

	nftID := DeriveID(productName, sectionName, info.ModTime())
	nftPath := filepath.Join(r.dir, nftID+"_nft.png")

	if err := watermark(img, []string{"NFT:" + nftID[:8], "Product:" + productName}); err != nil {
		r.logger.Warn("Watermark skipped", zap.String("nft_id", nftID), zap.Error(err))
	}

	if err := writePNG(r.fs, nftPath, img); err != nil {
		r.logger.Error("Writing NFT image failed", zap.String("path", nftPath), zap.Error(err))
		return "", "", fmt.Errorf("%w: %v", store.ErrIO, err)
	}

	if r.catalog != nil {
		if err := r.catalog.RegisterProductNFT(ctx, sectionName, productName, nftID, nftPath); err != nil {
			r.logger.Warn("Catalog NFT link failed",
				zap.String("nft_id", nftID),
				zap.String("product", productName),
				zap.String("section", sectionName),
				zap.Error(err),
			)
		}
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	record := &domain.NFTRecord{
		NFTID:            nftID,
		ProductName:      productName,
		SectionName:      sectionName,
		NFTFile:          nftPath,
		OriginalFile:     imagePath,
		Metadata:         metadata,
		CreatedTimestamp: info.ModTime().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.doc.NFTs = append(r.doc.NFTs, record)
	if err := r.persist(); err != nil {
		return nftID, nftPath, err
	}

	r.logger.Info("NFT created",
		zap.String("nft_id", nftID),
		zap.String("product", productName),
		zap.String("section", sectionName),
	)
	return nftID, nftPath, nil
}

// GenerateProductNFT renders product fields onto a blank canvas and
// converts it. The intermediate canvas file is always removed.
func (r *registry) GenerateProductNFT(ctx context.Context, productName, sectionName, specs string) (string, string, error) {
	tmpPath := filepath.Join(r.dir, "tmp_"+uuid.NewString()+".png")
	defer func() {
		if err := r.fs.Remove(tmpPath); err != nil && !errors.Is(err, afero.ErrFileNotFound) {
			r.logger.Debug("Temp canvas cleanup failed", zap.String("path", tmpPath), zap.Error(err))
		}
	}()

	if err := writePNG(r.fs, tmpPath, productCanvas(sectionName, productName, specs)); err != nil {
		r.logger.Error("Generate product NFT failed", zap.Error(err))
		return "", "", fmt.Errorf("%w: %v", store.ErrIO, err)
	}

	return r.ConvertImage(ctx, tmpPath, productName, sectionName, map[string]any{
		"generated": true,
		"specs":     specs,
	})
}

// AssignOwnership sets the owner of an NFT, replacing any previous owner
func (r *registry) AssignOwnership(ctx context.Context, nftID string, ownerID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record := r.find(nftID)
	if record == nil {
		return fmt.Errorf("%w: %s", ErrNFTNotFound, nftID)
	}

	owner := ownerID
	record.Owner = &owner
	r.doc.Ownership[nftID] = &domain.Ownership{
		OwnerID:           ownerID,
		AcquiredTimestamp: r.now().UTC(),
		ProductName:       record.ProductName,
	}

	return r.persist()
}

// Get returns the first record with the given id
func (r *registry) Get(nftID string) (*domain.NFTRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record := r.find(nftID)
	if record == nil {
		return nil, fmt.Errorf("%w: %s", ErrNFTNotFound, nftID)
	}
	return record.Clone(), nil
}

// UserNFTs resolves the ownership map entries of ownerID, in creation order
func (r *registry) UserNFTs(ownerID int64) []*domain.NFTRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type owned struct {
		index  int
		record *domain.NFTRecord
	}
	var found []owned
	for nftID, o := range r.doc.Ownership {
		if o.OwnerID != ownerID {
			continue
		}
		for i, rec := range r.doc.NFTs {
			if rec.NFTID == nftID {
				found = append(found, owned{index: i, record: rec})
				break
			}
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].index < found[j].index })

	records := make([]*domain.NFTRecord, 0, len(found))
	for _, f := range found {
		records = append(records, f.record.Clone())
	}
	return records
}

// List returns every record in creation order
func (r *registry) List() []*domain.NFTRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]*domain.NFTRecord, 0, len(r.doc.NFTs))
	for _, rec := range r.doc.NFTs {
		records = append(records, rec.Clone())
	}
	return records
}

// Stats counts records, owned records and distinct owners. Ownership
// entries without a matching record are ignored.
func (r *registry) Stats() domain.NFTStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owners := make(map[int64]struct{}, len(r.doc.Ownership))
	owned := 0
	for _, rec := range r.doc.NFTs {
		o, ok := r.doc.Ownership[rec.NFTID]
		if !ok {
			continue
		}
		owned++
		owners[o.OwnerID] = struct{}{}
	}

	total := len(r.doc.NFTs)
	return domain.NFTStats{
		Total:        total,
		Owned:        owned,
		UniqueOwners: len(owners),
		Unowned:      total - owned,
	}
}

// Certificate projects a record into its public certificate
func (r *registry) Certificate(nftID string) (*domain.Certificate, error) {
	record, err := r.Get(nftID)
	if err != nil {
		return nil, err
	}

	return &domain.Certificate{
		NFTID:           record.NFTID,
		ProductName:     record.ProductName,
		ProductCategory: record.SectionName,
		NFTFile:         record.NFTFile,
		Created:         record.CreatedTimestamp,
		Owner:           record.Owner,
		Verified:        true,
		Ecosystem:       domain.EcosystemName,
	}, nil
}

// find must be called with a lock held
func (r *registry) find(nftID string) *domain.NFTRecord {
	for _, rec := range r.doc.NFTs {
		if rec.NFTID == nftID {
			return rec
		}
	}
	return nil
}

// persist must be called with the write lock held
func (r *registry) persist() error {
	if err := r.store.Save(r.path, r.doc); err != nil {
		r.logger.Error("NFT registry save failed", zap.String("path", r.path), zap.Error(err))
		return fmt.Errorf("failed to save nft registry: %w", err)
	}
	return nil
}
