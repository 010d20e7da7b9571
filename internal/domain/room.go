package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var (
	ErrInvalidRoomKey  = errors.New("invalid room key")
	ErrRoomKeyMismatch = errors.New("room key does not belong to this product")
	ErrRoomKeyRequired = errors.New("room key required")
)

// ChatKind distinguishes the two conversation scopes
type ChatKind string

const (
	ChatKindPurchase ChatKind = "purchase"
	ChatKindProduct  ChatKind = "product"
)

// Role is the relationship of a sender to the room's owning entity
type Role string

const (
	RoleSeller Role = "seller"
	RoleBuyer  Role = "buyer"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleSeller || r == RoleBuyer || r == RoleViewer
}

var productRoomKeyRegex = regexp.MustCompile(`^pub-([0-9]+)-viewer-([A-Za-z0-9._-]{1,128})$`)

// ProductRoomKey identifies one prospective buyer's conversation about a product
type ProductRoomKey struct {
	ProductID int64
	ViewerID  string
}

// NewProductRoomKey builds the key for a product and a viewer (user id or guest id)
func NewProductRoomKey(productID int64, viewerID string) ProductRoomKey {
	return ProductRoomKey{ProductID: productID, ViewerID: viewerID}
}

// String renders pub-{productID}-viewer-{viewerID}
func (k ProductRoomKey) String() string {
	return fmt.Sprintf("pub-%d-viewer-%s", k.ProductID, k.ViewerID)
}

// ViewerUserID returns the numeric user id encoded in the key, if any.
func (k ProductRoomKey) ViewerUserID() (int64, bool) {
	id, err := strconv.ParseInt(k.ViewerID, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ParseProductRoomKey validates the shape of a product room key
func ParseProductRoomKey(s string) (ProductRoomKey, error) {
	m := productRoomKeyRegex.FindStringSubmatch(s)
	if m == nil {
		return ProductRoomKey{}, ErrInvalidRoomKey
	}
	productID, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || productID <= 0 {
		return ProductRoomKey{}, ErrInvalidRoomKey
	}
	return ProductRoomKey{ProductID: productID, ViewerID: m[2]}, nil
}
