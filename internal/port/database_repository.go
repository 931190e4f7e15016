package port

import (
	"context"
	"time"

	"github.com/rl1809/cropchain/internal/core/domain"
)

type InventoryRepository interface {
	// AdjustStock locks the product row, passes the current product to fn and
	// stores the quantity fn returns. Returns (nil) ErrInvalidProduct when the
	// product does not exist.
	AdjustStock(ctx context.Context, productID int64, fn func(p domain.Product) (int, error)) (domain.Product, error)
	// ReleaseStock records the reservation token as released and adds quantity
	// back to the product in one transaction. It returns false when the token
	// was already released.
	ReleaseStock(ctx context.Context, token string, productID int64, quantity int) (bool, error)
}

type OrderRepository interface {
	// CreateOrder inserts an order with zero aggregates and returns its id
	CreateOrder(ctx context.Context, order domain.Order) (int64, error)

	AddLineItem(ctx context.Context, item domain.OrderLineItem) (int64, error)

	// FinalizeOrder writes the aggregates and status onto the order
	FinalizeOrder(ctx context.Context, order domain.Order) error

	// DeleteOrder removes the order and all of its line items
	DeleteOrder(ctx context.Context, orderID int64) error

	// GetOrder returns nil when the order does not exist
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)

	ListOrdersByUser(ctx context.Context, userID int64) ([]domain.Order, error)
	// ListOrdersByStatus returns orders with the status dated at or before the cutoff, oldest first
	ListOrdersByStatus(ctx context.Context, status domain.OrderStatus, before time.Time, limit int) ([]domain.Order, error)
}

type UserRepository interface {
	// CreateUser inserts the user and, for buyers, an empty cart
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)
	GetUser(ctx context.Context, userID int64) (*domain.User, error)
	// GetUserByLogin matches either the username or the email
	GetUserByLogin(ctx context.Context, login string) (*domain.User, error)
}

type ProductRepository interface {
	CreateProduct(ctx context.Context, product domain.Product) (int64, error)
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) error
	DeleteProduct(ctx context.Context, productID int64) error
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	ListProductsByOwner(ctx context.Context, ownerID int64) ([]domain.Product, error)
}

type CategoryRepository interface {
	CreateCategory(ctx context.Context, name string) (int64, error)
	GetCategory(ctx context.Context, categoryID int64) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	RenameCategory(ctx context.Context, categoryID int64, name string) error
	DeleteCategory(ctx context.Context, categoryID int64) error
}

type CartRepository interface {
	GetCart(ctx context.Context, userID int64) (*domain.Cart, error)
	AddCartItem(ctx context.Context, cartID, productID int64, quantity int) error
	RemoveCartItem(ctx context.Context, cartID, productID int64) error
	ClearCart(ctx context.Context, cartID int64) error
}

type ConversationRepository interface {
	// FindConversation expects a normalized pair and returns nil when absent
	FindConversation(ctx context.Context, participantA, participantB int64) (*domain.Conversation, error)

	// InsertConversation returns domain.ErrConversationExists when the pair is already stored
	InsertConversation(ctx context.Context, participantA, participantB int64) (domain.Conversation, error)

	GetConversation(ctx context.Context, conversationID int64) (*domain.Conversation, error)
}

type MessageRepository interface {
	AppendMessage(ctx context.Context, msg domain.Message) (domain.Message, error)

	// RecentMessages returns up to limit messages ordered by creation time ascending
	RecentMessages(ctx context.Context, conversationID int64, limit int) ([]domain.Message, error)
}
