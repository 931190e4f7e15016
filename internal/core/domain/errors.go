package domain

import "errors"

type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindAuthorization ErrorKind = "authorization"
	KindNotFound      ErrorKind = "not_found"
	KindInventory     ErrorKind = "inventory"
	KindConflict      ErrorKind = "conflict"
	KindInternal      ErrorKind = "internal"
)

// Error is a classified failure reported back to callers with a stable code.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrEmptyOrder           = newError(KindValidation, "empty_order", "no products in order")
	ErrSellerCannotOrder    = newError(KindValidation, "seller_cannot_order", "seller cannot place orders")
	ErrInvalidQuantity      = newError(KindValidation, "invalid_quantity", "invalid quantity of products")
	ErrInvalidParticipants  = newError(KindValidation, "invalid_participants", "sender and receiver must be distinct users")
	ErrInvalidMessage       = newError(KindValidation, "invalid_message", "message requires description and sender_id")
	ErrInvalidProductUpdate = newError(KindValidation, "invalid_product", "invalid product input")
	ErrMessageTooLong       = newError(KindValidation, "message_too_long", "message body is too long")
	ErrInvalidSort          = newError(KindValidation, "invalid_sort", "unsupported sort_by value")
	ErrInvalidCategory      = newError(KindValidation, "invalid_category", "category name is required")
	ErrInvalidRegistration  = newError(KindValidation, "invalid_registration", "username, email and password are required")
	ErrInvalidCredentials   = newError(KindAuthorization, "invalid_credentials", "incorrect username or password")
	ErrNotOrderOwner        = newError(KindAuthorization, "not_order_owner", "user not authorized")
	ErrNotProductOwner      = newError(KindAuthorization, "not_product_owner", "user not authorized")
	ErrNotSeller            = newError(KindAuthorization, "not_seller", "user is not a seller")
	ErrNotParticipant       = newError(KindAuthorization, "not_participant", "sender is not part of this conversation")
	ErrInvalidProduct       = newError(KindNotFound, "invalid_product", "invalid product id")
	ErrOrderNotFound        = newError(KindNotFound, "order_not_found", "order does not exist")
	ErrUserNotFound         = newError(KindNotFound, "user_not_found", "user does not exist")
	ErrCategoryNotFound     = newError(KindNotFound, "category_not_found", "category does not exist")
	ErrConversationNotFound = newError(KindNotFound, "conversation_not_found", "conversation does not exist")
	ErrCartNotFound         = newError(KindNotFound, "cart_not_found", "cart does not exist")
	ErrOutOfStock           = newError(KindInventory, "out_of_stock", "product out of stock")
	ErrInsufficientStock    = newError(KindInventory, "insufficient_stock", "not enough products available")
	ErrCategoryExists       = newError(KindConflict, "category_exists", "category already exists")
	ErrConversationExists   = newError(KindConflict, "conversation_exists", "conversation already exists")
	ErrUserExists           = newError(KindConflict, "user_exists", "user already exists")
	ErrDuplicateRequest     = newError(KindConflict, "duplicate_request", "duplicate request")
)

// KindOf reports the classification of err, or KindInternal when err is not a domain error.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// CodeOf returns the stable code of a domain error, or "internal".
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "internal"
}
