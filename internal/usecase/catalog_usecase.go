package usecase

import (
	"context"
	"log"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"faindi/internal/domain/entity"
	ws "faindi/internal/infrastructure/websocket"
	"faindi/pkg/errors"
)

// likeMirror keeps the profile's liked products in step with catalog likes.
type likeMirror interface {
	ToggleLikeProduct(product entity.Product)
}

// CatalogUseCase caches the product and category lists for the session.
type CatalogUseCase struct {
	backend   CatalogBackend
	session   *SessionUseCase
	publisher Publisher
	likes     *tentativeSet
	mirror    likeMirror
	fetch     singleflight.Group

	mu         sync.RWMutex
	products   []entity.Product
	categories []entity.Category
	search     string
	loading    bool
	generation uint64
}

func NewCatalogUseCase(
	backend CatalogBackend,
	session *SessionUseCase,
	publisher Publisher,
	observer Observer,
) *CatalogUseCase {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &CatalogUseCase{
		backend:   backend,
		session:   session,
		publisher: publisher,
		likes:     newTentativeSet("product_like", observer),
	}
}

// MirrorLikesTo makes ToggleLike also toggle the product in m.
func (u *CatalogUseCase) MirrorLikesTo(m likeMirror) {
	u.mirror = m
}

// EnsureLoaded fetches the catalog once. Callers arriving while a fetch is
// in flight wait for that fetch instead of starting another.
func (u *CatalogUseCase) EnsureLoaded(ctx context.Context) error {
	u.mu.RLock()
	loaded := len(u.categories) > 0
	u.mu.RUnlock()
	if loaded {
		return nil
	}

	_, err, _ := u.fetch.Do("catalog", func() (interface{}, error) {
		u.mu.Lock()
		if len(u.categories) > 0 {
			u.mu.Unlock()
			return nil, nil
		}
		u.loading = true
		gen := u.generation
		u.mu.Unlock()

		items, err := u.backend.CatalogItems(ctx)

		u.mu.Lock()
		u.loading = false
		if err != nil {
			u.mu.Unlock()
			log.Printf("Catalog Error: failed to fetch items: %v", err)
			return nil, err
		}
		if gen != u.generation {
			// reset while fetching, the result belongs to an old session
			u.mu.Unlock()
			return nil, nil
		}
		u.products = items.Products
		u.categories = items.Categories
		u.mu.Unlock()

		log.Printf("Catalog: loaded %d products in %d categories", len(items.Products), len(items.Categories))
		u.notify()
		return nil, nil
	})
	return err
}

func (u *CatalogUseCase) Loading() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.loading
}

func (u *CatalogUseCase) Products() []entity.Product {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return entity.CloneProducts(u.products)
}

func (u *CatalogUseCase) Categories() []entity.Category {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return append([]entity.Category(nil), u.categories...)
}

func (u *CatalogUseCase) Product(productID string) (entity.Product, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if i := u.indexOf(productID); i >= 0 {
		return u.products[i].Clone(), true
	}
	return entity.Product{}, false
}

// TopProductOf returns the first cached product owned by userID.
func (u *CatalogUseCase) TopProductOf(userID string) *entity.Product {
	u.mu.RLock()
	defer u.mu.RUnlock()
	for _, p := range u.products {
		if p.Owner.ID == userID {
			top := p.Clone()
			return &top
		}
	}
	return nil
}

func (u *CatalogUseCase) SetSearch(search string) {
	u.mu.Lock()
	u.search = search
	u.mu.Unlock()
}

func (u *CatalogUseCase) Search() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.search
}

// Filter returns cached products in categoryID (all when empty) whose title
// contains the current search string, case-insensitively.
func (u *CatalogUseCase) Filter(categoryID string) []entity.Product {
	u.mu.RLock()
	defer u.mu.RUnlock()

	query := strings.ToUpper(u.search)
	result := []entity.Product{}
	for _, p := range u.products {
		if categoryID != "" && p.Category.ID != categoryID {
			continue
		}
		if query != "" && !strings.Contains(strings.ToUpper(p.Title), query) {
			continue
		}
		result = append(result, p.Clone())
	}
	return result
}

// UpdateLikes replaces the like set of the cached product with product's.
func (u *CatalogUseCase) UpdateLikes(product entity.Product) {
	u.mu.Lock()
	if i := u.indexOf(product.ID); i >= 0 {
		u.products[i].Likes = append([]entity.Like(nil), product.Likes...)
	}
	u.mu.Unlock()
	u.notify()
}

func (u *CatalogUseCase) MarkSold(productID string) {
	u.mu.Lock()
	if i := u.indexOf(productID); i >= 0 {
		u.products[i].Sold = true
	}
	u.mu.Unlock()
	u.notify()
}

func (u *CatalogUseCase) AddProduct(product entity.Product) {
	u.mu.Lock()
	u.products = append([]entity.Product{product.Clone()}, u.products...)
	u.mu.Unlock()
	u.notify()
}

// ReplaceProduct swaps the cached product with the same id in place, or
// appends it when the id is unknown.
func (u *CatalogUseCase) ReplaceProduct(product entity.Product) {
	u.mu.Lock()
	if i := u.indexOf(product.ID); i >= 0 {
		u.products[i] = product.Clone()
	} else {
		u.products = append(u.products, product.Clone())
	}
	u.mu.Unlock()
	u.notify()
}

// ToggleLike flips the current user's like on the product ahead of the
// server call and reverts it when the call fails.
func (u *CatalogUseCase) ToggleLike(ctx context.Context, productID string) (entity.Product, error) {
	userID := u.session.Snapshot().UserID
	if userID == "" {
		return entity.Product{}, errors.Unauthorized("Sign in to like products", nil)
	}

	product, ok := u.Product(productID)
	if !ok {
		return entity.Product{}, errors.NotFound("Product", nil)
	}

	// the profile mirror only follows a product still in the catalog
	toggle := func() {
		var current entity.Product
		u.mu.Lock()
		i := u.indexOf(productID)
		if i >= 0 {
			u.products[i].ToggleLike(userID)
			current = u.products[i].Clone()
		}
		u.mu.Unlock()
		if i >= 0 && u.mirror != nil {
			u.mirror.ToggleLikeProduct(current)
		}
		u.notify()
	}

	m := u.likes.begin(productID, toggle, toggle)
	if err := u.backend.LikeProduct(ctx, productID); err != nil {
		log.Printf("Catalog Error: like %s failed, rolling back: %v", productID, err)
		m.fail()
		u.publisher.Publish(ws.PushRollback, map[string]string{"entity": "product_like", "id": productID})
		return entity.Product{}, err
	}
	m.commit()

	product, _ = u.Product(productID)
	return product, nil
}

// Status reports the state of the latest like toggle on productID.
func (u *CatalogUseCase) Status(productID string) (entity.MutationStatus, bool) {
	return u.likes.statusOf(productID)
}

func (u *CatalogUseCase) Reset() {
	u.mu.Lock()
	u.products = nil
	u.categories = nil
	u.search = ""
	u.loading = false
	u.generation++
	u.mu.Unlock()
	u.likes.reset()
	u.notify()
}

func (u *CatalogUseCase) indexOf(productID string) int {
	for i := range u.products {
		if u.products[i].ID == productID {
			return i
		}
	}
	return -1
}

func (u *CatalogUseCase) notify() {
	u.mu.RLock()
	summary := map[string]int{"products": len(u.products), "categories": len(u.categories)}
	u.mu.RUnlock()
	u.publisher.Publish(ws.PushCatalog, summary)
}
