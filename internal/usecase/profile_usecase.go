package usecase

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"faindi/internal/domain/entity"
	ws "faindi/internal/infrastructure/websocket"
	"faindi/pkg/errors"
)

// systemMessenger appends client-side messages to a counterpart's chat.
type systemMessenger interface {
	AppendSystemMessage(counterpartID string, message entity.Message)
}

// ProfileUseCase caches the signed-in user's profile aggregate: own and
// liked products, feedbacks, followings, carts and orders.
type ProfileUseCase struct {
	backend   ProfileBackend
	session   *SessionUseCase
	catalog   *CatalogUseCase
	messenger systemMessenger
	publisher Publisher
	carts     *tentativeSet
	follows   *tentativeSet
	fetch     singleflight.Group
	now       func() time.Time

	mu         sync.RWMutex
	data       entity.ProfileAggregate
	loaded     bool
	generation uint64
}

func NewProfileUseCase(
	backend ProfileBackend,
	session *SessionUseCase,
	catalog *CatalogUseCase,
	messenger systemMessenger,
	publisher Publisher,
	observer Observer,
) *ProfileUseCase {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &ProfileUseCase{
		backend:   backend,
		session:   session,
		catalog:   catalog,
		messenger: messenger,
		publisher: publisher,
		carts:     newTentativeSet("cart", observer),
		follows:   newTentativeSet("following", observer),
		now:       time.Now,
	}
}

// EnsureLoaded fetches the aggregate once per authenticated session.
func (u *ProfileUseCase) EnsureLoaded(ctx context.Context) error {
	if !u.session.Authenticated() {
		return errors.Unauthorized("Not signed in", nil)
	}

	u.mu.RLock()
	loaded := u.loaded
	u.mu.RUnlock()
	if loaded {
		return nil
	}

	_, err, _ := u.fetch.Do("profile", func() (interface{}, error) {
		u.mu.RLock()
		gen, loaded := u.generation, u.loaded
		u.mu.RUnlock()
		if loaded {
			return nil, nil
		}

		items, err := u.backend.ProfileItems(ctx)
		if err != nil {
			log.Printf("Profile Error: failed to fetch items: %v", err)
			return nil, err
		}

		u.mu.Lock()
		if gen != u.generation {
			u.mu.Unlock()
			return nil, nil
		}
		u.data = *items
		u.loaded = true
		u.mu.Unlock()

		log.Printf("Profile: loaded %d own products, %d carts, %d orders",
			len(items.OwnProducts), len(items.Carts), len(items.Orders))
		u.notify()
		return nil, nil
	})
	return err
}

func (u *ProfileUseCase) Snapshot() entity.ProfileAggregate {
	u.mu.RLock()
	defer u.mu.RUnlock()

	d := u.data
	out := entity.ProfileAggregate{
		OwnProducts:        entity.CloneProducts(d.OwnProducts),
		LikeProducts:       entity.CloneProducts(d.LikeProducts),
		Feedbacks:          append([]entity.ProfileFeedback{}, d.Feedbacks...),
		Followings:         append([]entity.Following{}, d.Followings...),
		Carts:              make([]entity.Cart, len(d.Carts)),
		Orders:             append([]entity.Order{}, d.Orders...),
		TotalRate:          d.TotalRate,
		TotalFeedbackCount: d.TotalFeedbackCount,
	}
	for i, c := range d.Carts {
		out.Carts[i] = c.Clone()
	}
	return out
}

func (u *ProfileUseCase) AddOwnProduct(product entity.Product) {
	u.mutate(func(d *entity.ProfileAggregate) {
		d.OwnProducts = append([]entity.Product{product.Clone()}, d.OwnProducts...)
	})
}

// UpdateOwnProduct replaces the own product with the same id in place, or
// appends it when the id is unknown.
func (u *ProfileUseCase) UpdateOwnProduct(product entity.Product) {
	u.mutate(func(d *entity.ProfileAggregate) {
		for i := range d.OwnProducts {
			if d.OwnProducts[i].ID == product.ID {
				d.OwnProducts[i] = product.Clone()
				return
			}
		}
		d.OwnProducts = append(d.OwnProducts, product.Clone())
	})
}

func (u *ProfileUseCase) AddFollowing(following entity.Following) {
	u.mutate(func(d *entity.ProfileAggregate) {
		d.Followings = append([]entity.Following{following}, d.Followings...)
	})
}

func (u *ProfileUseCase) RemoveFollowing(userID string) {
	u.mutate(func(d *entity.ProfileAggregate) {
		d.Followings = removeFollowing(d.Followings, userID)
	})
}

func (u *ProfileUseCase) AddCart(cart entity.Cart) {
	u.mutate(func(d *entity.ProfileAggregate) {
		d.Carts = append([]entity.Cart{cart.Clone()}, d.Carts...)
	})
}

// ToggleCartProduct removes the product from the seller's cart when present
// and appends it otherwise. Carts left empty are dropped.
func (u *ProfileUseCase) ToggleCartProduct(sellerID string, product entity.Product) {
	u.mutate(func(d *entity.ProfileAggregate) {
		d.Carts = toggleCartProduct(d.Carts, sellerID, product)
	})
}

func (u *ProfileUseCase) RemoveCart(sellerID string) {
	u.mutate(func(d *entity.ProfileAggregate) {
		d.Carts = removeCart(d.Carts, sellerID)
	})
}

func (u *ProfileUseCase) AddOrders(orders []entity.Order) {
	u.mutate(func(d *entity.ProfileAggregate) {
		d.Orders = append(d.Orders, orders...)
	})
}

func (u *ProfileUseCase) MarkOrderDelivered(orderID string) {
	u.mutate(func(d *entity.ProfileAggregate) {
		for i := range d.Orders {
			if d.Orders[i].ID == orderID {
				d.Orders[i].Delivered = true
			}
		}
	})
}

// ToggleLikeProduct drops the product from the liked list when present and
// appends it otherwise.
func (u *ProfileUseCase) ToggleLikeProduct(product entity.Product) {
	u.mutate(func(d *entity.ProfileAggregate) {
		for i := range d.LikeProducts {
			if d.LikeProducts[i].ID == product.ID {
				d.LikeProducts = append(d.LikeProducts[:i:i], d.LikeProducts[i+1:]...)
				return
			}
		}
		d.LikeProducts = append(d.LikeProducts, product.Clone())
	})
}

// AddToCart puts the product in its seller's cart, creating the cart when
// needed, then confirms with the server. The local change is reverted when
// the server call fails.
func (u *ProfileUseCase) AddToCart(ctx context.Context, product entity.Product) error {
	if product.ID == "" || product.Owner.ID == "" {
		return errors.BadRequest("Product and seller are required", nil)
	}
	if product.Owner.ID == u.session.Snapshot().UserID {
		return errors.BadRequest("Cannot add your own product to cart", nil)
	}

	// presence is checked under the same lock that adds the product
	apply := func() bool {
		u.mu.Lock()
		i := cartIndexOf(u.data.Carts, product.Owner.ID)
		switch {
		case i >= 0 && u.data.Carts[i].Has(product.ID):
			u.mu.Unlock()
			return false
		case i >= 0:
			u.data.Carts[i].Products = append(u.data.Carts[i].Products, product.Clone())
		default:
			u.data.Carts = append([]entity.Cart{{Seller: product.Owner, Products: []entity.Product{product.Clone()}}}, u.data.Carts...)
		}
		u.mu.Unlock()
		u.notify()
		return true
	}
	undo := func() {
		u.mutate(func(d *entity.ProfileAggregate) {
			d.Carts = removeCartProduct(d.Carts, product.Owner.ID, product.ID)
		})
	}

	m, ok := u.carts.tryBegin(product.ID, apply, undo)
	if !ok {
		return errors.Conflict("already added to cart")
	}
	if err := u.backend.AddToCart(ctx, product.ID); err != nil {
		log.Printf("Profile Error: cart/add %s failed, rolling back: %v", product.ID, err)
		m.fail()
		u.publisher.Publish(ws.PushRollback, map[string]string{"entity": "cart", "id": product.ID})
		return err
	}
	m.commit()
	return nil
}

// RemoveFromCart takes the product out of the seller's cart and confirms
// with the server, restoring it on failure.
func (u *ProfileUseCase) RemoveFromCart(ctx context.Context, sellerID, productID string) error {
	u.mu.RLock()
	cartIndex := cartIndexOf(u.data.Carts, sellerID)
	var (
		product      entity.Product
		productIndex = -1
		seller       entity.User
	)
	if cartIndex >= 0 {
		seller = u.data.Carts[cartIndex].Seller
		for i, p := range u.data.Carts[cartIndex].Products {
			if p.ID == productID {
				product, productIndex = p.Clone(), i
				break
			}
		}
	}
	u.mu.RUnlock()
	if productIndex < 0 {
		return errors.NotFound("Cart product", nil)
	}

	apply := func() {
		u.mutate(func(d *entity.ProfileAggregate) {
			d.Carts = removeCartProduct(d.Carts, sellerID, productID)
		})
	}
	undo := func() {
		u.mutate(func(d *entity.ProfileAggregate) {
			d.Carts = restoreCartProduct(d.Carts, seller, product, cartIndex, productIndex)
		})
	}

	m := u.carts.begin(productID, apply, undo)
	if err := u.backend.UpdateCart(ctx, productID); err != nil {
		log.Printf("Profile Error: cart/update %s failed, rolling back: %v", productID, err)
		m.fail()
		u.publisher.Publish(ws.PushRollback, map[string]string{"entity": "cart", "id": productID})
		return err
	}
	m.commit()
	return nil
}

// Follow adds the user to followings ahead of the server call. The user's
// first cached catalog product becomes the following's top product.
func (u *ProfileUseCase) Follow(ctx context.Context, user entity.User) error {
	if user.ID == "" {
		return errors.BadRequest("User is required", nil)
	}
	if user.ID == u.session.Snapshot().UserID {
		return errors.BadRequest("Cannot follow yourself", nil)
	}
	following := entity.Following{User: user}
	if u.catalog != nil {
		following.TopProduct = u.catalog.TopProductOf(user.ID)
	}

	apply := func() bool {
		u.mu.Lock()
		for _, f := range u.data.Followings {
			if f.User.ID == user.ID {
				u.mu.Unlock()
				return false
			}
		}
		u.data.Followings = append([]entity.Following{following}, u.data.Followings...)
		u.mu.Unlock()
		u.notify()
		return true
	}

	m, ok := u.follows.tryBegin(user.ID, apply, func() { u.RemoveFollowing(user.ID) })
	if !ok {
		return errors.Conflict("already following")
	}
	if err := u.backend.Follow(ctx, user.ID); err != nil {
		log.Printf("Profile Error: follow %s failed, rolling back: %v", user.ID, err)
		m.fail()
		u.publisher.Publish(ws.PushRollback, map[string]string{"entity": "following", "id": user.ID})
		return err
	}
	m.commit()
	return nil
}

func (u *ProfileUseCase) Unfollow(ctx context.Context, userID string) error {
	u.mu.RLock()
	index := -1
	var following entity.Following
	for i, f := range u.data.Followings {
		if f.User.ID == userID {
			index, following = i, f
			break
		}
	}
	u.mu.RUnlock()
	if index < 0 {
		return errors.NotFound("Following", nil)
	}

	undo := func() {
		u.mutate(func(d *entity.ProfileAggregate) {
			if index > len(d.Followings) {
				index = len(d.Followings)
			}
			d.Followings = append(d.Followings[:index:index], append([]entity.Following{following}, d.Followings[index:]...)...)
		})
	}

	m := u.follows.begin(userID, func() { u.RemoveFollowing(userID) }, undo)
	if err := u.backend.Unfollow(ctx, userID); err != nil {
		log.Printf("Profile Error: unfollow %s failed, rolling back: %v", userID, err)
		m.fail()
		u.publisher.Publish(ws.PushRollback, map[string]string{"entity": "following", "id": userID})
		return err
	}
	m.commit()
	return nil
}

// PlaceOrder orders every product in the seller's cart. On success the
// products are marked sold in the catalog, the cart is dropped and the
// returned orders are appended.
func (u *ProfileUseCase) PlaceOrder(ctx context.Context, sellerID string) ([]entity.Order, error) {
	u.mu.RLock()
	cartIndex := cartIndexOf(u.data.Carts, sellerID)
	var productIDs []string
	if cartIndex >= 0 {
		for _, p := range u.data.Carts[cartIndex].Products {
			productIDs = append(productIDs, p.ID)
		}
	}
	u.mu.RUnlock()
	if cartIndex < 0 {
		return nil, errors.NotFound("Cart", nil)
	}

	orders, err := u.backend.MakeOrder(ctx, sellerID)
	if err != nil {
		log.Printf("Profile Error: order/make for seller %s failed: %v", sellerID, err)
		return nil, err
	}

	if u.catalog != nil {
		for _, id := range productIDs {
			u.catalog.MarkSold(id)
		}
	}
	u.RemoveCart(sellerID)
	u.AddOrders(orders)

	log.Printf("Profile: placed %d orders with seller %s", len(orders), sellerID)
	return orders, nil
}

// ConfirmDelivery marks the order delivered on the server, then locally,
// and drops a rating prompt into the seller's chat. Empty productID or
// sellerID are taken from the cached order.
func (u *ProfileUseCase) ConfirmDelivery(ctx context.Context, orderID, productID, sellerID string) error {
	u.mu.RLock()
	for _, o := range u.data.Orders {
		if o.ID == orderID {
			if productID == "" {
				productID = o.Product.ID
			}
			if sellerID == "" {
				sellerID = o.Seller.ID
			}
			break
		}
	}
	u.mu.RUnlock()
	if orderID == "" || productID == "" || sellerID == "" {
		return errors.BadRequest("Order, product and seller are required", nil)
	}

	if err := u.backend.MarkDelivered(ctx, orderID); err != nil {
		log.Printf("Profile Error: order/delivered %s failed: %v", orderID, err)
		return err
	}

	u.MarkOrderDelivered(orderID)
	if u.messenger != nil {
		prompt := entity.RatePrompt(u.session.Snapshot().UserID, productID, u.now())
		u.messenger.AppendSystemMessage(sellerID, prompt)
	}
	return nil
}

func (u *ProfileUseCase) CartStatus(productID string) (entity.MutationStatus, bool) {
	return u.carts.statusOf(productID)
}

func (u *ProfileUseCase) FollowStatus(userID string) (entity.MutationStatus, bool) {
	return u.follows.statusOf(userID)
}

func (u *ProfileUseCase) Reset() {
	u.mu.Lock()
	u.data = entity.ProfileAggregate{}
	u.loaded = false
	u.generation++
	u.mu.Unlock()
	u.carts.reset()
	u.follows.reset()
	u.notify()
}

func (u *ProfileUseCase) mutate(fn func(d *entity.ProfileAggregate)) {
	u.mu.Lock()
	fn(&u.data)
	u.mu.Unlock()
	u.notify()
}

func (u *ProfileUseCase) notify() {
	u.publisher.Publish(ws.PushProfile, u.Snapshot())
}

func cartIndexOf(carts []entity.Cart, sellerID string) int {
	for i := range carts {
		if carts[i].Seller.ID == sellerID {
			return i
		}
	}
	return -1
}

func toggleCartProduct(carts []entity.Cart, sellerID string, product entity.Product) []entity.Cart {
	i := cartIndexOf(carts, sellerID)
	if i < 0 {
		return carts
	}
	if carts[i].Has(product.ID) {
		return removeCartProduct(carts, sellerID, product.ID)
	}
	carts[i].Products = append(carts[i].Products, product.Clone())
	return carts
}

// removeCartProduct drops the product and prunes carts left empty.
func removeCartProduct(carts []entity.Cart, sellerID, productID string) []entity.Cart {
	out := carts[:0]
	for _, c := range carts {
		if c.Seller.ID == sellerID {
			kept := c.Products[:0:0]
			for _, p := range c.Products {
				if p.ID != productID {
					kept = append(kept, p)
				}
			}
			c.Products = kept
		}
		if len(c.Products) > 0 {
			out = append(out, c)
		}
	}
	return out
}

func restoreCartProduct(carts []entity.Cart, seller entity.User, product entity.Product, cartIndex, productIndex int) []entity.Cart {
	if i := cartIndexOf(carts, seller.ID); i >= 0 {
		if carts[i].Has(product.ID) {
			return carts
		}
		products := carts[i].Products
		if productIndex > len(products) {
			productIndex = len(products)
		}
		carts[i].Products = append(products[:productIndex:productIndex], append([]entity.Product{product}, products[productIndex:]...)...)
		return carts
	}

	if cartIndex > len(carts) {
		cartIndex = len(carts)
	}
	cart := entity.Cart{Seller: seller, Products: []entity.Product{product}}
	return append(carts[:cartIndex:cartIndex], append([]entity.Cart{cart}, carts[cartIndex:]...)...)
}

func removeCart(carts []entity.Cart, sellerID string) []entity.Cart {
	out := carts[:0:0]
	for _, c := range carts {
		if c.Seller.ID != sellerID {
			out = append(out, c)
		}
	}
	return out
}

func removeFollowing(followings []entity.Following, userID string) []entity.Following {
	out := followings[:0:0]
	for _, f := range followings {
		if f.User.ID != userID {
			out = append(out, f)
		}
	}
	return out
}
