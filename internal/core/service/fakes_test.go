package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/cropchain/internal/core/domain"
)

var errInjected = errors.New("injected failure")

// Mock CacheRepository
type mockCacheRepo struct {
	idempotencySet map[string]bool
	setErr         error
	mu             sync.Mutex
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{idempotencySet: make(map[string]bool)}
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.setErr != nil {
		return false, m.setErr
	}
	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) ClearIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotencySet, key)
	return nil
}

func (m *mockCacheRepo) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idempotencySet[key]
}

// memStore is an in-memory stand-in for the MySQL adapter.
type memStore struct {
	mu sync.Mutex

	nextID        int64
	users         map[int64]domain.User
	products      map[int64]domain.Product
	categories    map[int64]domain.Category
	carts         map[int64]*domain.Cart
	orders        map[int64]domain.Order
	lineItems     map[int64][]domain.OrderLineItem
	conversations map[[2]int64]domain.Conversation
	messages      map[int64][]domain.Message

	failAddLineItem map[int64]bool // product ids
	failLineOnce    map[int64]bool
	failAdjust      map[int64]error
	failRelease     map[int64]error
	failFinalize    error
	released        map[string]bool
	cartsCleared    []int64

	// insertHook runs before a conversation insert, outside the lock
	insertHook func()
}

func newMemStore() *memStore {
	return &memStore{
		users:           make(map[int64]domain.User),
		products:        make(map[int64]domain.Product),
		categories:      make(map[int64]domain.Category),
		carts:           make(map[int64]*domain.Cart),
		orders:          make(map[int64]domain.Order),
		lineItems:       make(map[int64][]domain.OrderLineItem),
		conversations:   make(map[[2]int64]domain.Conversation),
		messages:        make(map[int64][]domain.Message),
		failAddLineItem: make(map[int64]bool),
		failLineOnce:    make(map[int64]bool),
		failAdjust:      make(map[int64]error),
		failRelease:     make(map[int64]error),
		released:        make(map[string]bool),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addUser(isSeller bool) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := domain.User{ID: m.id(), Username: "user", IsSeller: isSeller}
	if !isSeller {
		cart := &domain.Cart{ID: m.id(), UserID: u.ID}
		m.carts[u.ID] = cart
		u.CartID = cart.ID
	}
	m.users[u.ID] = u
	return u
}

func (m *memStore) addProduct(price int64, quantity int) domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := domain.Product{ID: m.id(), Title: "p", Price: decimal.NewFromInt(price), QuantityAvailable: quantity}
	m.products[p.ID] = p
	return p
}

func (m *memStore) quantity(productID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[productID].QuantityAvailable
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memStore) lineItemCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, items := range m.lineItems {
		n += len(items)
	}
	return n
}

// InventoryRepository

func (m *memStore) AdjustStock(ctx context.Context, productID int64, fn func(p domain.Product) (int, error)) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failAdjust[productID]; err != nil {
		return domain.Product{}, err
	}
	p, ok := m.products[productID]
	if !ok {
		return domain.Product{}, domain.ErrInvalidProduct
	}
	next, err := fn(p)
	if err != nil {
		return domain.Product{}, err
	}
	p.QuantityAvailable = next
	m.products[productID] = p
	return p, nil
}

func (m *memStore) ReleaseStock(ctx context.Context, token string, productID int64, quantity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failRelease[productID]; err != nil {
		return false, err
	}
	if m.released[token] {
		return false, nil
	}
	p, ok := m.products[productID]
	if !ok {
		return false, domain.ErrInvalidProduct
	}
	p.QuantityAvailable += quantity
	m.products[productID] = p
	m.released[token] = true
	return true, nil
}

// OrderRepository

func (m *memStore) CreateOrder(ctx context.Context, order domain.Order) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order.ID = m.id()
	m.orders[order.ID] = order
	return order.ID, nil
}

func (m *memStore) AddLineItem(ctx context.Context, item domain.OrderLineItem) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAddLineItem[item.ProductID] {
		return 0, errInjected
	}
	if m.failLineOnce[item.ProductID] {
		delete(m.failLineOnce, item.ProductID)
		return 0, errInjected
	}
	item.ID = m.id()
	m.lineItems[item.OrderID] = append(m.lineItems[item.OrderID], item)
	return item.ID, nil
}

func (m *memStore) FinalizeOrder(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFinalize != nil {
		return m.failFinalize
	}
	stored := m.orders[order.ID]
	stored.OrderQuantity = order.OrderQuantity
	stored.TotalPrice = order.TotalPrice
	stored.Status = order.Status
	m.orders[order.ID] = stored
	return nil
}

func (m *memStore) DeleteOrder(ctx context.Context, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.orders, orderID)
	delete(m.lineItems, orderID)
	return nil
}

func (m *memStore) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	o.Items = append([]domain.OrderLineItem(nil), m.lineItems[orderID]...)
	return &o, nil
}

func (m *memStore) ListOrdersByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.UserID == userID && o.Status == domain.OrderStatusPlaced {
			o.Items = append([]domain.OrderLineItem(nil), m.lineItems[o.ID]...)
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListOrdersByStatus(ctx context.Context, status domain.OrderStatus, before time.Time, limit int) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.Status == status && !o.OrderDate.After(before) {
			o.Items = append([]domain.OrderLineItem(nil), m.lineItems[o.ID]...)
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) order(orderID int64) (domain.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	o.Items = append([]domain.OrderLineItem(nil), m.lineItems[orderID]...)
	return o, ok
}

func (m *memStore) onlyOrder() domain.Order {
	m.mu.Lock()
	var id int64
	for oid := range m.orders {
		id = oid
	}
	m.mu.Unlock()
	o, _ := m.order(id)
	return o
}

// UserRepository

func (m *memStore) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.ID = m.id()
	if !user.IsSeller {
		cart := &domain.Cart{ID: m.id(), UserID: user.ID}
		m.carts[user.ID] = cart
		user.CartID = cart.ID
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *memStore) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *memStore) GetUserByLogin(ctx context.Context, login string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == login || u.Email == login {
			return &u, nil
		}
	}
	return nil, nil
}

// ProductRepository

func (m *memStore) CreateProduct(ctx context.Context, product domain.Product) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	product.ID = m.id()
	m.products[product.ID] = product
	return product.ID, nil
}

func (m *memStore) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memStore) UpdateProduct(ctx context.Context, product domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.products[product.ID]
	product.QuantityAvailable = stored.QuantityAvailable
	m.products[product.ID] = product
	return nil
}

func (m *memStore) DeleteProduct(ctx context.Context, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products, productID)
	return nil
}

func (m *memStore) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Product
	for _, p := range m.products {
		if filter.CategoryID != 0 && p.CategoryID != filter.CategoryID {
			continue
		}
		if filter.Keyword != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(filter.Keyword)) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memStore) ListProductsByOwner(ctx context.Context, ownerID int64) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Product
	for _, p := range m.products {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

// CategoryRepository

func (m *memStore) CreateCategory(ctx context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.categories {
		if strings.EqualFold(c.Name, name) {
			return 0, domain.ErrCategoryExists
		}
	}
	c := domain.Category{ID: m.id(), Name: name}
	m.categories[c.ID] = c
	return c.ID, nil
}

func (m *memStore) GetCategory(ctx context.Context, categoryID int64) (*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[categoryID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Category
	for _, c := range m.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) RenameCategory(ctx context.Context, categoryID int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[categoryID] = domain.Category{ID: categoryID, Name: name}
	return nil
}

func (m *memStore) DeleteCategory(ctx context.Context, categoryID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.categories, categoryID)
	return nil
}

// CartRepository

func (m *memStore) GetCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return nil, nil
	}
	out := *c
	out.Items = append([]domain.CartItem(nil), c.Items...)
	return &out, nil
}

func (m *memStore) cartByID(cartID int64) *domain.Cart {
	for _, c := range m.carts {
		if c.ID == cartID {
			return c
		}
	}
	return nil
}

func (m *memStore) AddCartItem(ctx context.Context, cartID, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.cartByID(cartID)
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity += quantity
			return nil
		}
	}
	c.Items = append(c.Items, domain.CartItem{ProductID: productID, Quantity: quantity})
	return nil
}

func (m *memStore) RemoveCartItem(ctx context.Context, cartID, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.cartByID(cartID)
	kept := c.Items[:0]
	for _, it := range c.Items {
		if it.ProductID != productID {
			kept = append(kept, it)
		}
	}
	c.Items = kept
	return nil
}

func (m *memStore) ClearCart(ctx context.Context, cartID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cartsCleared = append(m.cartsCleared, cartID)
	if c := m.cartByID(cartID); c != nil {
		c.Items = nil
	}
	return nil
}

// ConversationRepository

func (m *memStore) FindConversation(ctx context.Context, a, b int64) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[[2]int64{a, b}]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memStore) InsertConversation(ctx context.Context, a, b int64) (domain.Conversation, error) {
	if m.insertHook != nil {
		m.insertHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]int64{a, b}
	if _, ok := m.conversations[key]; ok {
		return domain.Conversation{}, domain.ErrConversationExists
	}
	c := domain.Conversation{ID: m.id(), ParticipantA: a, ParticipantB: b, CreatedAt: time.Now()}
	m.conversations[key] = c
	return c, nil
}

func (m *memStore) GetConversation(ctx context.Context, conversationID int64) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.conversations {
		if c.ID == conversationID {
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memStore) conversationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conversations)
}

// MessageRepository

func (m *memStore) AppendMessage(ctx context.Context, msg domain.Message) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = m.id()
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	return msg, nil
}

func (m *memStore) RecentMessages(ctx context.Context, conversationID int64, limit int) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.messages[conversationID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]domain.Message(nil), all...), nil
}

func (m *memStore) storedMessages(conversationID int64) []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Message(nil), m.messages[conversationID]...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OrderEvent
}

func (p *recordingPublisher) PublishOrderEvent(ctx context.Context, event domain.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
